package sampler

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestTemperature0Order(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.sampler")
	defer teardown()
	logits := []float32{0.1, 5.0, -2.0, 3.0}
	order, err := Temperature0{}.Order(logits)
	if err != nil {
		t.Fatal(err)
	}
	want := []int32{1, 3, 0, 2}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestMultinomialDeterministicForSameSeed(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.sampler")
	defer teardown()
	logits := []float32{1, 2, 3, 4, 5}
	s1 := NewMultinomial(0.7, 42)
	s2 := NewMultinomial(0.7, 42)
	o1, err := s1.Order(logits)
	if err != nil {
		t.Fatal(err)
	}
	o2, err := s2.Order(logits)
	if err != nil {
		t.Fatal(err)
	}
	if len(o1) != len(o2) {
		t.Fatalf("length mismatch")
	}
	for i := range o1 {
		if o1[i] != o2[i] {
			t.Fatalf("same seed produced different orders: %v vs %v", o1, o2)
		}
	}
}

func TestMultinomialIsAPermutation(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.sampler")
	defer teardown()
	logits := []float32{1, 2, 3, 4, 5}
	s := NewMultinomial(1.0, 7)
	order, err := s.Order(logits)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[int32]bool)
	for _, idx := range order {
		seen[idx] = true
	}
	if len(seen) != len(logits) {
		t.Fatalf("order %v is not a permutation of %d indices", order, len(logits))
	}
}

func TestMultinomialRejectsTopP(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.sampler")
	defer teardown()
	s := NewMultinomial(0.7, 1)
	s.TopP = 0.9
	if _, err := s.Order([]float32{1, 2}); err != ErrUnsupportedTopP {
		t.Fatalf("err = %v, want ErrUnsupportedTopP", err)
	}
}

func TestMultinomialTemperatureZeroFallsBackToArgsort(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.sampler")
	defer teardown()
	s := NewMultinomial(0, 1)
	logits := []float32{0.1, 5.0, -2.0, 3.0}
	order, err := s.Order(logits)
	if err != nil {
		t.Fatal(err)
	}
	want := []int32{1, 3, 0, 2}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
