// Package cache memoizes an oracle.LogitOracle by the accepted token-id
// prefix, so that identical prefixes — which arise when a hidden-span
// rewind pops tokens back to a prefix already scored — cost a single
// upstream call.
//
// The memoization key is computed with structhash, a structural hashing
// library, applied to a struct holding the token-id prefix alone.
package cache

import (
	"context"

	"github.com/cnf/structhash"
	"github.com/npillmayer/schuko/tracing"

	"github.com/gfesatidis/guidance/oracle"
)

func tracer() tracing.Trace {
	return tracing.Select("guidance.oracle.cache")
}

// Memo wraps an oracle.LogitOracle and caches its responses by token-id
// prefix. It is not safe for concurrent use, matching the decoder's own
// single-threaded cooperative model.
type Memo struct {
	inner  oracle.LogitOracle
	cache  map[string][]float32
	hits   int
	misses int
}

// New wraps inner with a memoizing cache.
func New(inner oracle.LogitOracle) *Memo {
	return &Memo{inner: inner, cache: make(map[string][]float32)}
}

// GetLogits implements oracle.LogitOracle.
func (m *Memo) GetLogits(ctx context.Context, tokenIDs []int32) ([]float32, error) {
	key := keyOf(tokenIDs)
	if cached, ok := m.cache[key]; ok {
		m.hits++
		tracer().Debugf("oracle/cache: hit at prefix length %d (%d hits, %d misses)", len(tokenIDs), m.hits, m.misses)
		return cached, nil
	}
	m.misses++
	logits, err := m.inner.GetLogits(ctx, tokenIDs)
	if err != nil {
		return nil, err
	}
	m.cache[key] = logits
	return logits, nil
}

// Hits and Misses report cache effectiveness, for callers that want to
// assert how much replay avoided a fresh oracle call.
func (m *Memo) Hits() int   { return m.hits }
func (m *Memo) Misses() int { return m.misses }

func keyOf(tokenIDs []int32) string {
	h, err := structhash.Hash(struct{ Prefix []int32 }{Prefix: tokenIDs}, 1)
	if err != nil {
		// structhash.Hash only fails on types it cannot reflect over;
		// []int32 is always hashable, so this is unreachable in
		// practice — mirrors earley.go's "no reason for this to
		// happen, but API demands it".
		panic(err)
	}
	return h
}
