package textgrammar

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"

	"github.com/gfesatidis/guidance/grammar/byteearley"
)

func TestCompileLiteralSequence(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.textgrammar")
	defer teardown()
	expr, err := Compile(`"PREFIX" "ab"`)
	if err != nil {
		t.Fatal(err)
	}
	p := byteearley.New(expr)
	for _, b := range []byte("PREFIXab") {
		p.ConsumeByte(b, 0)
	}
	if !p.Matched() {
		t.Fatalf("want matched after \"PREFIXab\"")
	}
}

func TestCompileAlternationAndQuantifiers(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.textgrammar")
	defer teardown()
	expr, err := Compile(`("cat" | "car") [0-9]*`)
	if err != nil {
		t.Fatal(err)
	}
	p := byteearley.New(expr)
	for _, b := range []byte("car42") {
		p.ConsumeByte(b, 0)
	}
	if !p.Matched() {
		t.Fatalf("want matched after \"car42\"")
	}
}

func TestCompileHiddenAndCapture(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.textgrammar")
	defer teardown()
	expr, err := Compile(`"NAME=" <capture name="n">[a-z]+</capture> <hidden>";" [a-z]*</hidden>`)
	if err != nil {
		t.Fatal(err)
	}
	p := byteearley.New(expr)
	input := []byte("NAME=abc;zzz")
	var sawHiddenCommit bool
	for _, b := range input {
		cp, committed := p.ConsumeByte(b, 0)
		if committed && cp.Node.Hidden {
			sawHiddenCommit = true
		}
	}
	if !p.Matched() {
		t.Fatalf("want matched after %q", input)
	}
	if !sawHiddenCommit {
		t.Fatalf("expected a hidden commit point while consuming %q", input)
	}
}

func TestCompileRejectsUnbalancedParens(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.textgrammar")
	defer teardown()
	if _, err := Compile(`("cat"`); err == nil {
		t.Fatalf("want an error for unbalanced parens")
	}
}
