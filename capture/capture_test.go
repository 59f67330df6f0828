package capture

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"

	"github.com/gfesatidis/guidance/grammar"
)

// fakeTerminal and fakeInternal are minimal grammar.Node implementations
// used only to exercise Walk without depending on a real parser.
type fakeTerminal struct {
	b    byte
	name string
}

func (f fakeTerminal) Start() int            { return 0 }
func (f fakeTerminal) CaptureName() string   { return f.name }
func (f fakeTerminal) LogProb() float64      { return 0 }
func (f fakeTerminal) IsTerminal() bool      { return true }
func (f fakeTerminal) Byte() byte            { return f.b }
func (f fakeTerminal) Len() int              { return 1 }
func (f fakeTerminal) Children() []grammar.Node { return nil }

type fakeInternal struct {
	start    int
	name     string
	logProb  float64
	children []grammar.Node
}

func (f fakeInternal) Start() int              { return f.start }
func (f fakeInternal) CaptureName() string     { return f.name }
func (f fakeInternal) LogProb() float64        { return f.logProb }
func (f fakeInternal) IsTerminal() bool        { return false }
func (f fakeInternal) Byte() byte              { return 0 }
func (f fakeInternal) Len() int                { return 0 }
func (f fakeInternal) Children() []grammar.Node { return f.children }

// buildTree models the capture part of "<capture name="n">abc</capture>":
// three literal terminals "a","b","c" wrapped in a capture node spanning
// [0,3).
func buildTree() grammar.Node {
	children := []grammar.Node{
		fakeTerminal{b: 'a'},
		fakeTerminal{b: 'b'},
		fakeTerminal{b: 'c'},
	}
	capture := fakeInternal{start: 3, name: "n", logProb: -1.5, children: children}
	return fakeInternal{start: 3, name: "", children: []grammar.Node{capture}}
}

func TestWalkExtractsCapture(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.capture")
	defer teardown()
	tree := buildTree()
	data, logProbs := Walk(tree, []byte("abc"), true)
	if string(data["n"]) != "abc" {
		t.Fatalf("data[n] = %q, want %q", data["n"], "abc")
	}
	if logProbs["n"] == nil || *logProbs["n"] != -1.5 {
		t.Fatalf("logProbs[n] = %v, want -1.5", logProbs["n"])
	}
}

func TestWalkWithoutLogProbsYieldsNil(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.capture")
	defer teardown()
	tree := buildTree()
	_, logProbs := Walk(tree, []byte("abc"), false)
	if v, ok := logProbs["n"]; !ok || v != nil {
		t.Fatalf("logProbs[n] = %v, want present and nil", v)
	}
}

func TestWalkSkipsNilChildren(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "guidance.capture")
	defer teardown()
	tree := fakeInternal{start: 1, children: []grammar.Node{nil, fakeTerminal{b: 'x', name: "only"}}}
	data, _ := Walk(tree, []byte("x"), true)
	if string(data["only"]) != "x" {
		t.Fatalf("data[only] = %q, want %q", data["only"], "x")
	}
}
