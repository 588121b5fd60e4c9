package audio

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// VAD detects voice activity in 16-bit mono PCM using WebRTC's detector.
// WebRTC VAD only accepts 8/16/32/48 kHz input and 10/20/30 ms frames;
// IsSpeech scans a block in 10 ms frames.
type VAD struct {
	vad        *webrtcvad.VAD
	sampleRate int
	frameBytes int
}

func NewVAD(mode, sampleRate int) (*VAD, error) {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("vad does not support sample rate %d", sampleRate)
	}
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("create vad: %w", err)
	}
	if err := vad.SetMode(mode); err != nil {
		return nil, fmt.Errorf("set vad mode: %w", err)
	}
	return &VAD{
		vad:        vad,
		sampleRate: sampleRate,
		frameBytes: sampleRate / 100 * 2, // 10ms of 16-bit samples
	}, nil
}

// IsSpeech reports whether any 10 ms frame in pcm is voiced. A trailing
// partial frame is ignored.
func (v *VAD) IsSpeech(pcm []byte) (bool, error) {
	for off := 0; off+v.frameBytes <= len(pcm); off += v.frameBytes {
		active, err := v.vad.Process(v.sampleRate, pcm[off:off+v.frameBytes])
		if err != nil {
			return false, fmt.Errorf("vad process: %w", err)
		}
		if active {
			return true, nil
		}
	}
	return false, nil
}
