// Package audio owns microphone input: a PortAudio capture stream that
// hands fixed-size PCM blocks to the recognition pipeline, plus VAD and
// WAV helpers used by the recognizer backends.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/earshot-labs/earshot/internal/config"
)

// ErrDevice marks failures to open or start the input stream. Callers
// match it with errors.Is to distinguish device trouble from other
// startup errors.
var ErrDevice = errors.New("audio device unavailable")

// Capture wraps a mono 16-bit PortAudio input stream. Each completed
// block is copied out of the callback and handed to push. The callback
// never blocks: push must be non-blocking (the chunk queue's Push is).
type Capture struct {
	mu      sync.Mutex
	cfg     config.AudioConfig
	log     *slog.Logger
	push    func(pcm []byte)
	stream  *portaudio.Stream
	running bool
}

func NewCapture(cfg config.AudioConfig, log *slog.Logger, push func(pcm []byte)) (*Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: initialize portaudio: %v", ErrDevice, err)
	}
	return &Capture{
		cfg:  cfg,
		log:  log.With(slog.String("component", "audio-capture")),
		push: push,
	}, nil
}

// Start opens and starts the input stream. Failure is surfaced
// synchronously so the caller can decide not to start the consumer loop.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("capture already running")
	}

	stream, err := c.open()
	if err != nil {
		return fmt.Errorf("%w: open input stream: %v", ErrDevice, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("%w: start input stream: %v", ErrDevice, err)
	}

	c.stream = stream
	c.running = true
	c.log.Info("capture started",
		slog.Int("sample_rate", c.cfg.SampleRate),
		slog.Int("block_size", c.cfg.BlockSize))
	return nil
}

func (c *Capture) open() (*portaudio.Stream, error) {
	if c.cfg.Device != "" && c.cfg.Device != "default" {
		device, err := findInputDevice(c.cfg.Device)
		if err != nil {
			return nil, err
		}
		params := portaudio.StreamParameters{
			Input: portaudio.StreamDeviceParameters{
				Device:   device,
				Channels: c.cfg.Channels,
				Latency:  device.DefaultLowInputLatency,
			},
			SampleRate:      float64(c.cfg.SampleRate),
			FramesPerBuffer: c.cfg.BlockSize,
		}
		return portaudio.OpenStream(params, c.onBlock)
	}
	return portaudio.OpenDefaultStream(
		c.cfg.Channels, 0,
		float64(c.cfg.SampleRate), c.cfg.BlockSize,
		c.onBlock,
	)
}

// onBlock runs in PortAudio's callback context. It copies the block into
// a fresh little-endian byte buffer and pushes it; the buffer is never
// mutated afterwards.
func (c *Capture) onBlock(in []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if flags != 0 {
		c.log.Warn("input stream status", slog.String("flags", flagString(flags)))
	}
	pcm := make([]byte, len(in)*2)
	for i, s := range in {
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}
	c.push(pcm)
}

func flagString(flags portaudio.StreamCallbackFlags) string {
	switch {
	case flags&portaudio.InputOverflow != 0:
		return "input overflow"
	case flags&portaudio.InputUnderflow != 0:
		return "input underflow"
	default:
		return fmt.Sprintf("0x%x", int(flags))
	}
}

// Stop stops and closes the stream. Safe to call when not running.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	if c.stream != nil {
		if err := c.stream.Stop(); err != nil {
			c.log.Warn("stop input stream", slog.String("error", err.Error()))
		}
		if err := c.stream.Close(); err != nil {
			return fmt.Errorf("close input stream: %w", err)
		}
		c.stream = nil
	}
	c.log.Info("capture stopped")
	return nil
}

// Close stops the stream and releases PortAudio.
func (c *Capture) Close() error {
	if err := c.Stop(); err != nil {
		return err
	}
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("terminate portaudio: %w", err)
	}
	return nil
}
