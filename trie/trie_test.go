package trie

import (
	"math"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func vocab() ([][]byte, []int32) {
	toks := [][]byte{[]byte("a"), []byte("b"), []byte("ab"), []byte("<bos>")}
	ids := []int32{0, 1, 2, 3}
	return toks, ids
}

func TestLongestTokenMatchLeaf(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.trie")
	defer teardown()
	toks, ids := vocab()
	tr, err := New(toks, ids)
	if err != nil {
		t.Fatal(err)
	}
	prefix, id, ok := tr.LongestTokenMatch([]byte("b"))
	if !ok || string(prefix) != "b" || id != 1 {
		t.Fatalf("got (%q, %d, %v)", prefix, id, ok)
	}
}

func TestLongestTokenMatchAmbiguous(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.trie")
	defer teardown()
	toks, ids := vocab()
	tr, err := New(toks, ids)
	if err != nil {
		t.Fatal(err)
	}
	// The query byte "a" is consumed in full, landing on the trie node
	// for token "a" — but that node also has a child "b" (for token
	// "ab"), so it is not a leaf: two tokens remain consistent with this
	// input and the caller must decide by other means.
	prefix, id, ok := tr.LongestTokenMatch([]byte("a"))
	if ok {
		t.Fatalf("expected ambiguous result, got (%q, %d, %v)", prefix, id, ok)
	}

	prefix, id, ok = tr.LongestTokenMatch([]byte("ab"))
	if !ok || string(prefix) != "ab" || id != 2 {
		t.Fatalf("got (%q, %d, %v)", prefix, id, ok)
	}
}

func TestLongestTokenMatchDeadEnd(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.trie")
	defer teardown()
	// Neither "a" nor "ax" is itself a token here, only "ab" and "ac" —
	// the node reached after 'a' has no value of its own.
	toks := [][]byte{[]byte("ab"), []byte("ac")}
	ids := []int32{0, 1}
	tr, err := New(toks, ids)
	if err != nil {
		t.Fatal(err)
	}
	// "ax" diverges from the trie after consuming "a": the 'x' child
	// doesn't exist, and the node for "a" isn't a complete token either.
	// This is a dead end with a consumed prefix, distinct from the
	// genuinely ambiguous case above — it must report the prefix it got
	// to, not the ambiguous (nil, -1, false) sentinel.
	prefix, id, ok := tr.LongestTokenMatch([]byte("ax"))
	if ok || id != -1 || string(prefix) != "a" {
		t.Fatalf("got (%q, %d, %v), want (\"a\", -1, false)", prefix, id, ok)
	}
}

func TestVersionInvalidatesMatch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.trie")
	defer teardown()
	toks, ids := vocab()
	tr, err := New(toks, ids)
	if err != nil {
		t.Fatal(err)
	}
	root := tr.Root()
	child, ok := root.Child('a')
	if !ok {
		t.Fatal("expected child 'a'")
	}
	child.SetMatch(true)
	if child.Stale() {
		t.Fatal("freshly set match should not be stale")
	}
	tr.BumpVersion()
	if !child.Stale() {
		t.Fatal("match should be stale after BumpVersion")
	}
}

func TestComputeLogProbs(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.trie")
	defer teardown()
	toks, ids := vocab()
	tr, err := New(toks, ids)
	if err != nil {
		t.Fatal(err)
	}
	logProbs := make([]float64, len(toks))
	for i := range logProbs {
		logProbs[i] = math.Log(1.0 / float64(len(toks)))
	}
	tr.ComputeLogProbs(logProbs)
	root := tr.Root()
	// log-sum-exp over all 4 equally likely tokens should be ~0 (sums to 1).
	if math.Abs(root.LogProb()) > 1e-9 {
		t.Fatalf("root.LogProb() = %v, want ~0", root.LogProb())
	}
}
