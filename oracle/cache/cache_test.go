package cache

import (
	"context"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"

	"github.com/gfesatidis/guidance/oracle"
)

func TestMemoHitsOnRepeatedPrefix(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.oracle.cache")
	defer teardown()
	calls := 0
	inner := oracle.Func(func(ctx context.Context, tokenIDs []int32) ([]float32, error) {
		calls++
		return []float32{1, 2, 3}, nil
	})
	m := New(inner)

	if _, err := m.GetLogits(context.Background(), []int32{1, 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetLogits(context.Background(), []int32{1, 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetLogits(context.Background(), []int32{1, 3}); err != nil {
		t.Fatal(err)
	}

	if calls != 2 {
		t.Fatalf("inner oracle called %d times, want 2", calls)
	}
	if m.Hits() != 1 || m.Misses() != 2 {
		t.Fatalf("hits=%d misses=%d, want 1/2", m.Hits(), m.Misses())
	}
}
