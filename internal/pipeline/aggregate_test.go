package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/earshot-labs/earshot/internal/recognizer"
)

func TestMeanConfidence(t *testing.T) {
	words := []recognizer.Word{
		{Word: "turn", Conf: 1.0},
		{Word: "up", Conf: 0.5},
	}
	conf, err := MeanConfidence(words)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(conf-0.75) > 1e-9 {
		t.Fatalf("expected 0.75, got %f", conf)
	}
}

func TestMeanConfidenceSingleWord(t *testing.T) {
	conf, err := MeanConfidence([]recognizer.Word{{Word: "go", Conf: 0.9}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(conf-0.9) > 1e-9 {
		t.Fatalf("expected 0.9, got %f", conf)
	}
}

func TestMeanConfidenceEmptyList(t *testing.T) {
	_, err := MeanConfidence([]recognizer.Word{})
	if !errors.Is(err, ErrNoWords) {
		t.Fatalf("expected ErrNoWords, got %v", err)
	}
}

func TestSpan(t *testing.T) {
	words := []recognizer.Word{
		{Word: "a", Start: 0.1, End: 0.4},
		{Word: "b", Start: 0.5, End: 1.3},
		{Word: "c", Start: 2.0, End: 2.6},
	}
	start, end, ok := Span(words)
	if !ok {
		t.Fatal("expected defined span")
	}
	if start != 0.1 || end != 2.6 {
		t.Fatalf("expected [0.1, 2.6], got [%f, %f]", start, end)
	}
}

func TestSpanUndefinedWithoutWords(t *testing.T) {
	if _, _, ok := Span(nil); ok {
		t.Fatal("expected undefined span for empty word list")
	}
}
