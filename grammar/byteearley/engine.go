package byteearley

import (
	"fmt"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/npillmayer/schuko/tracing"

	"github.com/gfesatidis/guidance/bitmask"
	"github.com/gfesatidis/guidance/grammar"
)

func tracer() tracing.Trace {
	return tracing.Select("guidance.byteearley")
}

// cont is one live continuation: "match node, consuming litOffset bytes of
// it already, then continue with next". A nil *cont means "nothing left to
// match" — reaching one during closure means the thread accepts.
type cont struct {
	node     *ast
	litOffset int
	next     *cont
}

// eventKind distinguishes a wrapper boundary crossing.
type eventKind int

const (
	evEnter eventKind = iota
	evExit
)

type wrapEvent struct {
	kind eventKind
	id   int
}

// Parser is a concrete grammar.Parser over the regular-subset AST built by
// Lit/Class/Seq/Alt/Star/Hidden/Capture. It keeps, for every position
// already reached, the set of live leaf continuations (states) and the
// wrapper-boundary events produced in closing over them (eventsAtPos) —
// analogous to a per-position Earley item set, but over byte continuations
// instead of LR items.
type Parser struct {
	root     *ast
	wrappers map[int]wrapperInfo

	bytes         []byte
	logProbDeltas []float64
	states        [][]*cont
	eventsAtPos   [][]wrapEvent
	accept        []bool
	pos           int

	collapsed []grammar.CommitPoint
}

// closureIterationLimit guards against an epsilon loop in a malformed
// grammar (e.g. Star wrapping something that can match zero bytes).
const closureIterationLimit = 100000

// New compiles root into a live parser positioned at the start of input.
func New(root Expr) *Parser {
	wrappers := map[int]wrapperInfo{}
	collectWrappers(root, wrappers)

	p := &Parser{root: root, wrappers: wrappers}
	leaves, accept, events := closure([]*cont{{node: root}}, 0)
	p.states = [][]*cont{leaves}
	p.eventsAtPos = [][]wrapEvent{events}
	p.accept = []bool{accept}
	return p
}

// closure expands a worklist of continuations to a fixed point, desugaring
// kHidden/kCapture into enter/body/exit on first visit and collecting the
// leaf continuations (those requiring a byte) plus any wrapper-boundary
// events crossed purely by epsilon transitions at this position. The
// worklist and the already-visited set are emirpasic/gods collections: an
// arraylist as the queue (the type capture.Walk uses for its explicit
// stack), and a hashset keyed by thread identity for dedup.
func closure(initial []*cont, pos int) (leaves []*cont, accept bool, events []wrapEvent) {
	worklist := arraylist.New()
	for _, c := range initial {
		worklist.Add(c)
	}
	seen := hashset.New()
	n := 0
	for !worklist.Empty() {
		n++
		if n > closureIterationLimit {
			panic(fmt.Sprintf("byteearley: closure did not converge at position %d (likely an epsilon loop in a Star body)", pos))
		}
		front, _ := worklist.Get(0)
		worklist.Remove(0)
		c, _ := front.(*cont)

		if c == nil {
			accept = true
			continue
		}
		key := fmt.Sprintf("%p:%d:%p", c.node, c.litOffset, c.next)
		if seen.Contains(key) {
			continue
		}
		seen.Add(key)

		switch c.node.kind {
		case kLit:
			if c.litOffset < len(c.node.lit) {
				leaves = append(leaves, c)
			} else {
				worklist.Add(c.next)
			}
		case kClass:
			leaves = append(leaves, c)
		case kSeq:
			tail := c.next
			for i := len(c.node.items) - 1; i >= 0; i-- {
				tail = &cont{node: c.node.items[i], next: tail}
			}
			worklist.Add(tail)
		case kAlt:
			for _, opt := range c.node.items {
				worklist.Add(&cont{node: opt, next: c.next})
			}
		case kStar:
			body := c.node.items[0]
			worklist.Add(c.next)
			worklist.Add(&cont{node: body, next: &cont{node: c.node, next: c.next}})
		case kHidden, kCapture:
			enter := &ast{kind: kWrapEnter, wrapID: c.node.wrapID}
			exit := &ast{kind: kWrapExit, wrapID: c.node.wrapID}
			tail := &cont{node: c.node.items[0], next: &cont{node: exit, next: c.next}}
			worklist.Add(&cont{node: enter, next: tail})
		case kWrapEnter:
			events = append(events, wrapEvent{kind: evEnter, id: c.node.wrapID})
			worklist.Add(c.next)
		case kWrapExit:
			events = append(events, wrapEvent{kind: evExit, id: c.node.wrapID})
			worklist.Add(c.next)
		}
	}
	return leaves, accept, events
}

// Pos implements grammar.Parser.
func (p *Parser) Pos() int { return p.pos }

// SetPos implements grammar.Parser: just moves the cursor. Already-computed
// state beyond the new position is left in place as a shadow tail.
func (p *Parser) SetPos(pos int) { p.pos = pos }

// Bytes implements grammar.Parser.
func (p *Parser) Bytes() []byte { return p.bytes }

// NextByteMask implements grammar.Parser.
func (p *Parser) NextByteMask() bitmask.Mask {
	var m bitmask.Mask
	for _, leaf := range p.states[p.pos] {
		switch leaf.node.kind {
		case kLit:
			m.Set(leaf.node.lit[leaf.litOffset])
		case kClass:
			for _, r := range leaf.node.ranges {
				for b := int(r.lo); b <= int(r.hi); b++ {
					m.Set(byte(b))
				}
			}
		}
	}
	return m
}

// Matched implements grammar.Parser.
func (p *Parser) Matched() bool { return p.accept[p.pos] }

// ShadowRewind implements grammar.Parser. It behaves exactly like SetPos:
// this engine always keeps its full history and only truncates it lazily,
// the first time ConsumeByte sees a byte that diverges from the shadowed
// tail.
func (p *Parser) ShadowRewind(pos int) { p.pos = pos }

// ConsumeByte implements grammar.Parser.
func (p *Parser) ConsumeByte(b byte, logProb float64) (grammar.CommitPoint, bool) {
	if p.pos < len(p.bytes) && p.bytes[p.pos] == b {
		// Replaying an already-parsed byte: reuse cached state, just
		// update the log-probability delta a caller may be rescoring.
		p.logProbDeltas[p.pos] = logProb
		p.pos++
		return grammar.CommitPoint{}, false
	}
	if p.pos < len(p.bytes) {
		p.bytes = p.bytes[:p.pos]
		p.logProbDeltas = p.logProbDeltas[:p.pos]
		p.states = p.states[:p.pos+1]
		p.eventsAtPos = p.eventsAtPos[:p.pos+1]
		p.accept = p.accept[:p.pos+1]
	}

	var advanced []*cont
	for _, leaf := range p.states[p.pos] {
		switch leaf.node.kind {
		case kLit:
			if leaf.node.lit[leaf.litOffset] == b {
				advanced = append(advanced, &cont{node: leaf.node, litOffset: leaf.litOffset + 1, next: leaf.next})
			}
		case kClass:
			if inRanges(leaf.node.ranges, b) {
				advanced = append(advanced, leaf.next)
			}
		}
	}

	newPos := p.pos + 1
	leaves, accept, events := closure(advanced, newPos)

	p.bytes = append(p.bytes, b)
	p.logProbDeltas = append(p.logProbDeltas, logProb)
	p.states = append(p.states, leaves)
	p.eventsAtPos = append(p.eventsAtPos, events)
	p.accept = append(p.accept, accept)
	p.pos = newPos

	for _, e := range events {
		if e.kind == evExit {
			w := p.wrappers[e.id]
			start := p.findWrapperStart(newPos, e.id)
			if start < 0 {
				start = newPos
			}
			tracer().Debugf("byteearley: commit point at pos %d (span start %d), hidden=%v capture=%q", newPos, start, w.hidden, w.name)
			return grammar.CommitPoint{
				Start:     newPos,
				SpanStart: start,
				Node:      grammar.CommitNode{Hidden: w.hidden, CaptureName: w.name},
			}, true
		}
	}
	return grammar.CommitPoint{}, false
}

// CommitAndCollapseItem implements grammar.Parser. The live engine has
// already resolved the wrapper's extent via the enter/exit events recorded
// in eventsAtPos; the byte buffer itself must stay literal (the trie still
// has to walk the hidden bytes, since the model really produces them), so
// this just records the collapse for introspection. SpanStart on the
// already-returned CommitPoint is what callers use to exclude the span's
// bytes from what they report.
func (p *Parser) CommitAndCollapseItem(cp grammar.CommitPoint) {
	p.collapsed = append(p.collapsed, cp)
}

// findWrapperStart locates the evEnter position matching the evExit
// recorded at position end for the wrapper identified by id, searching
// backward. Returns -1 if no matching enter is found (defensive; should not
// happen for a cp produced by this engine's own ConsumeByte).
func (p *Parser) findWrapperStart(end, id int) int {
	for i := end; i >= 0; i-- {
		for _, e := range p.eventsAtPos[i] {
			if e.kind == evEnter && e.id == id {
				return i
			}
		}
	}
	return -1
}

// EarliestHiddenStart implements grammar.Parser: the start of the
// outermost hidden wrapper that has been entered but not yet exited, within
// [0, Pos()], or len(Bytes()) if there is none open.
func (p *Parser) EarliestHiddenStart() int {
	type open struct {
		id    int
		start int
	}
	var stack []open
	limit := p.pos
	if limit >= len(p.eventsAtPos) {
		limit = len(p.eventsAtPos) - 1
	}
	for i := 0; i <= limit; i++ {
		for _, e := range p.eventsAtPos[i] {
			if !p.wrappers[e.id].hidden {
				continue
			}
			switch e.kind {
			case evEnter:
				stack = append(stack, open{id: e.id, start: i})
			case evExit:
				for j := len(stack) - 1; j >= 0; j-- {
					if stack[j].id == e.id {
						stack = append(stack[:j], stack[j+1:]...)
						break
					}
				}
			}
		}
	}
	if len(stack) == 0 {
		return len(p.bytes)
	}
	earliest := stack[0].start
	for _, o := range stack[1:] {
		if o.start < earliest {
			earliest = o.start
		}
	}
	return earliest
}

// ParseTree implements grammar.Parser by replaying the accepted bytes
// against the grammar from scratch, greedily, and building a concrete
// parse tree as it goes. It is only meaningful once Matched() is true.
func (p *Parser) ParseTree() grammar.Node {
	data := p.bytes[:p.pos]
	node, consumed, ok := matchNode(p.root, data, p.logProbDeltas[:p.pos], 0)
	if !ok || consumed != len(data) {
		return &internalNode{start: p.pos}
	}
	return node
}
