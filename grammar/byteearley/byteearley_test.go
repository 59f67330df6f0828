package byteearley

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func maskBytes(t *testing.T, p *Parser) map[byte]bool {
	t.Helper()
	m := p.NextByteMask()
	out := map[byte]bool{}
	for _, b := range m.Bytes() {
		out[b] = true
	}
	return out
}

func TestLitSequenceForcedMatch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.byteearley")
	defer teardown()
	p := New(Lit("ab"))
	mask := maskBytes(t, p)
	if len(mask) != 1 || !mask['a'] {
		t.Fatalf("mask at pos 0 = %v, want {'a'}", mask)
	}
	if _, committed := p.ConsumeByte('a', 0); committed {
		t.Fatalf("unexpected commit point consuming 'a'")
	}
	mask = maskBytes(t, p)
	if len(mask) != 1 || !mask['b'] {
		t.Fatalf("mask after 'a' = %v, want {'b'}", mask)
	}
	if p.Matched() {
		t.Fatalf("matched too early")
	}
	p.ConsumeByte('b', 0)
	if !p.Matched() {
		t.Fatalf("want matched after consuming \"ab\"")
	}

	tree := p.ParseTree()
	if tree.IsTerminal() {
		t.Fatalf("want internal node wrapping two terminals")
	}
	kids := tree.Children()
	if len(kids) != 2 || kids[0].Byte() != 'a' || kids[1].Byte() != 'b' {
		t.Fatalf("unexpected parse tree children: %+v", kids)
	}
}

func TestAltChoiceUnionsMasks(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.byteearley")
	defer teardown()
	p := New(Alt(Lit("cat"), Lit("car")))
	p.ConsumeByte('c', 0)
	p.ConsumeByte('a', 0)
	mask := maskBytes(t, p)
	if len(mask) != 2 || !mask['t'] || !mask['r'] {
		t.Fatalf("mask after \"ca\" = %v, want {'t','r'}", mask)
	}
	p.ConsumeByte('t', 0)
	if !p.Matched() {
		t.Fatalf("want matched after \"cat\"")
	}
}

func TestHiddenSpanCommitPointAndEarliestHiddenStart(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.byteearley")
	defer teardown()
	g := Seq(Lit("PREFIX "), Hidden(Lit("SECRET")), Lit(" SUFFIX"))
	p := New(g)

	input := []byte("PREFIX SECRET SUFFIX")
	var sawCommit bool
	for i, b := range input {
		cp, committed := p.ConsumeByte(b, 0)
		if i < len("PREFIX ")-1 {
			if p.EarliestHiddenStart() != len(p.Bytes()) {
				t.Fatalf("hidden span reported open before it started, at byte %d", i)
			}
		}
		if committed {
			sawCommit = true
			if !cp.Node.Hidden {
				t.Fatalf("commit point at byte %d should be hidden", i)
			}
			if cp.Node.CaptureName != "" {
				t.Fatalf("hidden commit point should carry no capture name, got %q", cp.Node.CaptureName)
			}
		}
	}
	if !sawCommit {
		t.Fatalf("never saw the hidden span's commit point")
	}
	if !p.Matched() {
		t.Fatalf("want matched after consuming the full input")
	}
	if got, want := p.EarliestHiddenStart(), len(p.Bytes()); got != want {
		t.Fatalf("EarliestHiddenStart() = %d after hidden span closed, want %d (none open)", got, want)
	}
}

func TestHiddenSpanOpenWhileInside(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.byteearley")
	defer teardown()
	g := Seq(Lit("A"), Hidden(Lit("BB")), Lit("C"))
	p := New(g)
	p.ConsumeByte('A', 0)
	p.ConsumeByte('B', 0)
	// One byte into the hidden span: it opened at position 1 and has not
	// yet closed, so EarliestHiddenStart must report 1, not "no span".
	if got, want := p.EarliestHiddenStart(), 1; got != want {
		t.Fatalf("EarliestHiddenStart() = %d mid-span, want %d", got, want)
	}
}

func TestCaptureSpan(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.byteearley")
	defer teardown()
	g := Seq(Lit("NAME="), Capture("n", Plus(Class("az"))))
	p := New(g)
	for _, b := range []byte("NAME=abc") {
		p.ConsumeByte(b, 0)
	}
	if !p.Matched() {
		t.Fatalf("want matched")
	}
	tree := p.ParseTree()
	kids := tree.Children()
	if len(kids) != 2 {
		t.Fatalf("want 2 children (literal \"NAME=\" and the capture), got %d", len(kids))
	}
	capNode := kids[1]
	if capNode.CaptureName() != "n" {
		t.Fatalf("CaptureName() = %q, want \"n\"", capNode.CaptureName())
	}
	data := []byte("NAME=abc")
	start := kids[0].Start()
	got := string(data[start:capNode.Start()])
	if got != "abc" {
		t.Fatalf("captured span = %q, want \"abc\"", got)
	}
}

func TestStarZeroOrMore(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.byteearley")
	defer teardown()
	p := New(Star(Lit("x")))
	if !p.Matched() {
		t.Fatalf("Star must match zero repetitions")
	}
	p.ConsumeByte('x', 0)
	if !p.Matched() {
		t.Fatalf("want matched after one repetition")
	}
	p.ConsumeByte('x', 0)
	if !p.Matched() {
		t.Fatalf("want matched after two repetitions")
	}
}

func TestDeadEndMask(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.byteearley")
	defer teardown()
	p := New(Lit("ab"))
	p.ConsumeByte('a', 0)
	p.ConsumeByte('b', 0)
	mask := maskBytes(t, p)
	if len(mask) != 0 {
		t.Fatalf("mask past a fully matched literal = %v, want empty (grammar dead end)", mask)
	}
}

func TestShadowRewindReplaysWithoutNewCommitPoint(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.byteearley")
	defer teardown()
	g := Seq(Lit("A"), Hidden(Lit("B")), Lit("C"))
	p := New(g)
	p.ConsumeByte('A', 0)
	p.ConsumeByte('B', 0) // crosses the hidden span's commit point once
	start := p.Pos()
	p.ShadowRewind(1)
	if p.Pos() != 1 {
		t.Fatalf("Pos() after ShadowRewind(1) = %d, want 1", p.Pos())
	}
	if _, committed := p.ConsumeByte('B', 0); committed {
		t.Fatalf("replaying an already-seen byte must not re-surface its commit point")
	}
	if p.Pos() != start {
		t.Fatalf("Pos() after replay = %d, want %d", p.Pos(), start)
	}
}
