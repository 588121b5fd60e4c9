package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/mattn/go-shellwords"

	"github.com/earshot-labs/earshot/internal/audio"
	"github.com/earshot-labs/earshot/internal/config"
)

// execEngine adapts a batch transcription command to the streaming Engine
// contract. WebRTC VAD segments the incoming chunks into utterances: voiced
// audio is buffered, and once trailing silence exceeds the configured hold
// the buffer is written to a temp WAV and handed to the command. The
// command prints JSON {"text": ..., "confidence": ...} on stdout; no
// word-level detail is available in this mode.
type execEngine struct {
	cmd        []string
	cfg        config.RecognizerConfig
	sampleRate int
	vad        *audio.VAD
	log        *slog.Logger

	buf      []byte
	voiced   bool
	silence  time.Duration
	maxBytes int

	pending    Result
	hasPending bool
}

func NewExecEngine(cfg config.RecognizerConfig, sampleRate int, log *slog.Logger) (Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse recognizer command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("recognizer command is empty")
	}

	vad, err := audio.NewVAD(cfg.VADMode, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	maxSec := cfg.MaxBufferSec
	if maxSec <= 0 {
		maxSec = 30
	}

	return &execEngine{
		cmd:        args,
		cfg:        cfg,
		sampleRate: sampleRate,
		vad:        vad,
		log:        log.With(slog.String("component", "exec-recognizer")),
		maxBytes:   int(maxSec * float64(sampleRate) * 2),
	}, nil
}

func (e *execEngine) AcceptChunk(pcm []byte) (bool, error) {
	speech, err := e.vad.IsSpeech(pcm)
	if err != nil {
		return false, err
	}

	switch {
	case speech:
		e.voiced = true
		e.silence = 0
		e.buf = append(e.buf, pcm...)
	case e.voiced:
		e.buf = append(e.buf, pcm...)
		e.silence += e.chunkDuration(pcm)
		if e.silence >= time.Duration(e.cfg.SilenceHoldMS)*time.Millisecond {
			return e.finalize()
		}
	default:
		// Leading silence carries no utterance; discard.
		return false, nil
	}

	if len(e.buf) >= e.maxBytes {
		e.log.Warn("utterance buffer full, forcing finalization",
			slog.Int("bytes", len(e.buf)))
		return e.finalize()
	}
	return false, nil
}

func (e *execEngine) chunkDuration(pcm []byte) time.Duration {
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / time.Duration(e.sampleRate)
}

func (e *execEngine) finalize() (bool, error) {
	buf := e.buf
	e.buf = nil
	e.voiced = false
	e.silence = 0

	res, err := e.transcribe(buf)
	if err != nil {
		return false, err
	}
	e.pending = res
	e.hasPending = true
	return true, nil
}

type execResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func (e *execEngine) transcribe(pcm []byte) (Result, error) {
	file, err := os.CreateTemp("", "earshot_utt_*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := audio.WriteWAV(file, pcm, e.sampleRate, 1); err != nil {
		return Result{}, err
	}

	args := append([]string{}, e.cmd[1:]...)
	args = append(args, "--audio", file.Name())
	if e.cfg.ModelPath != "" {
		args = append(args, "--model", e.cfg.ModelPath)
	}
	if e.cfg.Language != "" {
		args = append(args, "--language", e.cfg.Language)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	command := exec.CommandContext(ctx, e.cmd[0], args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Result{}, fmt.Errorf("recognizer command failed: %w: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, fmt.Errorf("decode recognizer response: %w", err)
	}
	return Result{Text: resp.Text}, nil
}

func (e *execEngine) Result() (Result, error) {
	if !e.hasPending {
		return Result{}, errors.New("no finalized hypothesis")
	}
	res := e.pending
	e.pending = Result{}
	e.hasPending = false
	return res, nil
}

func (e *execEngine) Close() error {
	e.buf = nil
	return nil
}
