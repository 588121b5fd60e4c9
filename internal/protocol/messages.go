package protocol

import "time"

// WordTiming carries per-word timing and confidence for a finalized utterance.
type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Conf  float64 `json:"conf"`
}

// Utterance represents one finalized span of recognized speech.
// Confidence and the time span are present only when the engine reported
// word-level detail; Scored distinguishes a real 0.0 from an absent score.
type Utterance struct {
	SessionID  string       `json:"session_id"`
	Text       string       `json:"text"`
	Scored     bool         `json:"scored"`
	Confidence float64      `json:"confidence,omitempty"`
	Start      float64      `json:"start,omitempty"`
	End        float64      `json:"end,omitempty"`
	Words      []WordTiming `json:"words,omitempty"`
	CapturedAt time.Time    `json:"captured_at"`
}

const (
	SubjectUtteranceFinal = "asr.utterance.final"
)
