package oracle

import (
	"context"
	"fmt"
)

// Mock is a deterministic test oracle: it plays back a fixed sequence of
// logit vectors, one per call, ignoring the token-id prefix it is handed —
// a small in-package fixture rather than a mocking library.
type Mock struct {
	Responses [][]float32
	calls     int
}

// GetLogits implements LogitOracle.
func (m *Mock) GetLogits(ctx context.Context, tokenIDs []int32) ([]float32, error) {
	if m.calls >= len(m.Responses) {
		tracer().Errorf("oracle: mock exhausted after %d calls", m.calls)
		return nil, fmt.Errorf("oracle: mock exhausted after %d calls", m.calls)
	}
	r := m.Responses[m.calls]
	m.calls++
	return r, nil
}

// Calls returns how many times GetLogits has been invoked so far; useful
// for asserting that a decoder made as few oracle calls as expected.
func (m *Mock) Calls() int { return m.calls }

// Preference builds a logit vector over vocabSize tokens that makes the
// given token id the unique, strictly most likely choice — a convenience
// for tests that only care about which token the sampler should try first.
func Preference(vocabSize int, preferred int32) []float32 {
	logits := make([]float32, vocabSize)
	for i := range logits {
		logits[i] = 0
	}
	logits[preferred] = 100
	return logits
}
