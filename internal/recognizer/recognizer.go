// Package recognizer abstracts the stateful speech-recognition engine
// consuming PCM chunks and emitting finalized hypotheses.
package recognizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/earshot-labs/earshot/internal/config"
)

// ErrModelLoad marks failures to construct the engine or load its model.
// The process treats it as fatal at startup.
var ErrModelLoad = errors.New("model load failed")

// Word is a single recognized token with timing and confidence.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Conf  float64 `json:"conf"`
}

// Result is a finalized hypothesis. Words is nil when the engine produced
// no word-level detail (the exec backend, or an engine with word timing
// disabled); a consumer must treat nil and empty distinctly.
type Result struct {
	Text  string `json:"text"`
	Words []Word `json:"result"`
}

// Engine is the stateful transducer. AcceptChunk feeds one PCM block and
// reports whether an utterance boundary was finalized; Result fetches the
// finalized hypothesis and is only valid immediately after AcceptChunk
// returned true. An Engine is owned by a single goroutine.
type Engine interface {
	AcceptChunk(pcm []byte) (finalized bool, err error)
	Result() (Result, error)
	Close() error
}

// New constructs the engine selected by cfg.Mode.
func New(cfg config.RecognizerConfig, sampleRate int, log *slog.Logger) (Engine, error) {
	switch cfg.Mode {
	case "vosk":
		return NewVoskEngine(cfg, sampleRate)
	case "exec":
		return NewExecEngine(cfg, sampleRate, log)
	case "mock":
		return NewMockEngine(sampleRate), nil
	default:
		return nil, fmt.Errorf("unknown recognizer mode %q", cfg.Mode)
	}
}

// decodeResult parses the engine's JSON hypothesis. The word list is
// optional on the wire; absence decodes to a nil slice.
func decodeResult(data []byte) (Result, error) {
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, fmt.Errorf("decode recognition result: %w", err)
	}
	return res, nil
}
