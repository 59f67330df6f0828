// Package oracle defines the logit-oracle contract the constrained decoder
// samples from: an opaque function of a token-id prefix. The real oracle,
// backed by a loaded model, is a caller-supplied collaborator; this package
// only defines the contract, a Func adapter (used by the CLI's flat
// oracle), and a deterministic mock for tests.
package oracle

import (
	"context"

	"github.com/npillmayer/schuko/tracing"
)

func tracer() tracing.Trace {
	return tracing.Select("guidance.oracle")
}

// LogitOracle returns logits over the vocabulary given the token ids
// accepted so far. Out-of-range token ids are a caller bug, not a
// reportable condition; the error return exists for oracles backed by a
// remote or async model that can fail for its own reasons.
type LogitOracle interface {
	GetLogits(ctx context.Context, tokenIDs []int32) ([]float32, error)
}

// Func adapts a plain function to LogitOracle.
type Func func(ctx context.Context, tokenIDs []int32) ([]float32, error)

// GetLogits implements LogitOracle.
func (f Func) GetLogits(ctx context.Context, tokenIDs []int32) ([]float32, error) {
	return f(ctx, tokenIDs)
}
