package bitmask

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestSetTestClear(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.bitmask")
	defer teardown()
	var m Mask
	if !m.IsZero() {
		t.Fatalf("fresh mask should be zero")
	}
	m.Set('a')
	m.Set(255)
	if !m.Test('a') || !m.Test(255) {
		t.Fatalf("expected both bits set")
	}
	if m.Test('b') {
		t.Fatalf("did not expect 'b' set")
	}
	if m.PopCount() != 2 {
		t.Fatalf("PopCount = %d, want 2", m.PopCount())
	}
	m.Clear('a')
	if m.Test('a') {
		t.Fatalf("'a' should have been cleared")
	}
}

func TestNextAndBytes(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.bitmask")
	defer teardown()
	m := Of('a', 'b', 'z')
	got := m.Bytes()
	want := []byte{'a', 'b', 'z'}
	if len(got) != len(want) {
		t.Fatalf("Bytes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Bytes() = %v, want %v", got, want)
		}
	}
}

func TestRangeAndAll(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.bitmask")
	defer teardown()
	m := Range('a', 'z')
	if !m.Test('m') || m.Test('A') {
		t.Fatalf("Range('a','z') mismatch")
	}
	if Range('a', 'z').PopCount() != 26 {
		t.Fatalf("expected 26 lowercase letters")
	}
	if All().PopCount() != 256 {
		t.Fatalf("All() should have 256 bits set")
	}
}

func TestUnion(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.bitmask")
	defer teardown()
	a := Of('a')
	b := Of('b')
	u := a.Union(b)
	if !u.Test('a') || !u.Test('b') || u.PopCount() != 2 {
		t.Fatalf("Union mismatch: %v", u)
	}
}
