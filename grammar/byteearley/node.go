package byteearley

import "github.com/gfesatidis/guidance/grammar"

// terminalNode is a single matched byte, optionally itself capture-named
// (only possible when a Capture wraps a one-byte Lit or a Class directly).
type terminalNode struct {
	b    byte
	name string
}

func (t *terminalNode) Start() int                 { return 0 }
func (t *terminalNode) CaptureName() string        { return t.name }
func (t *terminalNode) LogProb() float64           { return 0 }
func (t *terminalNode) IsTerminal() bool           { return true }
func (t *terminalNode) Byte() byte                 { return t.b }
func (t *terminalNode) Len() int                   { return 1 }
func (t *terminalNode) Children() []grammar.Node   { return nil }

// internalNode groups a run of matched children under a span. Most
// internal nodes are anonymous (name == ""): Seq and Star produce them
// purely for structure, and capture.Walk-style callers simply recurse
// through them without recording anything.
type internalNode struct {
	start   int
	name    string
	logProb float64
	kids    []grammar.Node
}

func (n *internalNode) Start() int               { return n.start }
func (n *internalNode) CaptureName() string      { return n.name }
func (n *internalNode) LogProb() float64         { return n.logProb }
func (n *internalNode) IsTerminal() bool         { return false }
func (n *internalNode) Byte() byte               { return 0 }
func (n *internalNode) Len() int                 { return 0 }
func (n *internalNode) Children() []grammar.Node { return n.kids }
