package recognizer

import "fmt"

// mockEngine finalizes once per accumulated second of audio with a
// deterministic transcript. Useful for pipeline wiring without a model.
type mockEngine struct {
	threshold int
	buffered  int
	pending   Result
}

func NewMockEngine(sampleRate int) Engine {
	return &mockEngine{threshold: sampleRate * 2}
}

func (m *mockEngine) AcceptChunk(pcm []byte) (bool, error) {
	m.buffered += len(pcm)
	if m.buffered < m.threshold {
		return false, nil
	}
	m.pending = Result{Text: fmt.Sprintf("heard %d bytes", m.buffered)}
	m.buffered = 0
	return true, nil
}

func (m *mockEngine) Result() (Result, error) {
	return m.pending, nil
}

func (m *mockEngine) Close() error {
	return nil
}
