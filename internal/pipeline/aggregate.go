package pipeline

import (
	"errors"

	"github.com/earshot-labs/earshot/internal/recognizer"
)

// ErrNoWords is returned when confidence aggregation is asked to average
// a present but empty word list. Callers recover locally by logging the
// utterance without a confidence figure.
var ErrNoWords = errors.New("utterance has no scored words")

// MeanConfidence averages the per-word confidences of an utterance.
func MeanConfidence(words []recognizer.Word) (float64, error) {
	if len(words) == 0 {
		return 0, ErrNoWords
	}
	var sum float64
	for _, w := range words {
		sum += w.Conf
	}
	return sum / float64(len(words)), nil
}

// Span reports the utterance time span: the first word's start and the
// last word's end. ok is false when there are no words and the span is
// undefined.
func Span(words []recognizer.Word) (start, end float64, ok bool) {
	if len(words) == 0 {
		return 0, 0, false
	}
	return words[0].Start, words[len(words)-1].End, true
}
