// Package grammar defines the contract a context-free-grammar parser must
// satisfy to drive guidance/decode's constrained decoding loop. Grammar
// compilation, charting, and ambiguity resolution belong to the parser
// implementation; decode consumes only the Parser interface defined here.
// A concrete implementation for a regular subset of grammars, used by
// tests and the CLI, lives in guidance/grammar/byteearley.
package grammar

import "github.com/gfesatidis/guidance/bitmask"

// Parser is the interface guidance/decode drives. Implementations own the
// accepted byte buffer, the chart, and any ambiguity resolution; decode
// only ever asks for a mask, consumes a byte, or rewinds.
type Parser interface {
	// Pos returns the parser's current input length (read cursor).
	Pos() int

	// SetPos moves the cursor without rewinding already-computed chart
	// state; used by decode to back off to a token boundary or to
	// replay a forced prefix against an already-sampled candidate.
	SetPos(pos int)

	// Bytes returns the accepted byte sequence so far, indexable up to
	// at least Pos(); bytes beyond Pos() may be a "shadow" tail kept
	// around by a prior ShadowRewind for cheap replay.
	Bytes() []byte

	// NextByteMask returns the 256-bit mask of bytes that are
	// grammatically legal at the current position.
	NextByteMask() bitmask.Mask

	// ConsumeByte advances Pos() by appending b (or replaying it from a
	// shadowed tail) carrying an associated log-probability delta, and
	// returns the commit point crossed, if any.
	ConsumeByte(b byte, logProb float64) (CommitPoint, bool)

	// ShadowRewind moves Pos() back to p, preserving already-parsed
	// bytes beyond p so that a subsequent ConsumeByte matching the same
	// bytes can be served from cache instead of re-parsing from
	// scratch.
	ShadowRewind(p int)

	// CommitAndCollapseItem consolidates a commit point into the chart
	// and shrinks its span to zero width, hiding it from future output.
	CommitAndCollapseItem(cp CommitPoint)

	// Matched reports whether the chart currently accepts (a complete
	// parse exists ending at Pos()).
	Matched() bool

	// EarliestHiddenStart returns the smallest position at which a
	// not-yet-resolved hidden span begins, or len(Bytes()) if none.
	EarliestHiddenStart() int

	// ParseTree returns the final parse tree once Matched() is true and
	// no further bytes will be consumed.
	ParseTree() Node
}

// CommitPoint is a position past which earlier chart ambiguity has
// collapsed; it may be hidden, and may carry a capture name. SpanStart is
// the position where the wrapper producing this commit point was entered;
// [SpanStart, Start) is its full extent.
type CommitPoint struct {
	Start     int
	SpanStart int
	Node      CommitNode
}

// CommitNode is the small payload a CommitPoint carries about the grammar
// node it collapsed.
type CommitNode struct {
	Hidden      bool
	CaptureName string
}

// Node is a parse-tree node: either a terminal leaf or an internal node,
// as reported by IsTerminal().
type Node interface {
	// Start is the node's span end position, by convention — the name
	// mirrors the commit-point field it plays the same role for.
	Start() int
	// CaptureName is the name of the capture this node closes, or "".
	CaptureName() string
	// LogProb is the accumulated log-probability of the node's span.
	LogProb() float64
	// IsTerminal reports whether this node is a Terminal leaf.
	IsTerminal() bool
	// Byte returns the terminal's single matched byte; only meaningful
	// when IsTerminal() is true.
	Byte() byte
	// Len returns the terminal's length in bytes (always 1 for a
	// single-byte terminal); only meaningful when IsTerminal() is true.
	Len() int
	// Children returns this node's children in left-to-right order;
	// nil entries are skipped by callers. Empty for terminals.
	Children() []Node
}
