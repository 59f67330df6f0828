// Package byteearley is a concrete grammar.Parser for a regular subset of
// context-free grammars: literal byte runs, byte classes with */+/? style
// quantifiers, concatenation, alternation, and (non-recursively) nested
// Hidden and Capture wrappers.
//
// A full context-free Earley engine is a distinct "external collaborator"
// — guidance/decode only ever consumes the grammar.Parser interface — but
// a runnable module needs something to drive the decoder against in tests
// and the CLI. Internally it keeps, for each input position, a set of
// partially-matched grammar continuations ("threads"), analogous to a
// per-position Earley item set.
//
// Limitation (documented, not a general CFG engine): a Hidden or Capture
// wrapper must occupy a structurally unambiguous position — it must not sit
// inside an Alt branch or a Star body. Under that restriction every live
// thread that reaches the wrapper reaches it at the same position, so
// entering/exiting it can be tracked globally instead of per-thread. This
// covers literal, class, and quantified grammars with non-nested wrappers;
// it is not a general ambiguous-grammar parser.
package byteearley

type kind int

const (
	kLit kind = iota
	kClass
	kSeq
	kAlt
	kStar
	kHidden
	kCapture
	// internal-only markers, synthesized by the live engine when it
	// desugars a kHidden/kCapture node; never constructed directly.
	kWrapEnter
	kWrapExit
)

// byteRange is an inclusive [lo, hi] range of byte values.
type byteRange struct{ lo, hi byte }

// ast is a grammar AST node. The zero value is not meaningful; build one
// with the exported constructors below.
type ast struct {
	kind   kind
	lit    []byte
	ranges []byteRange
	items  []*ast // kSeq: in order. kAlt: options. kStar: items[0] is the body.

	wrapID     int
	wrapHidden bool
	wrapName   string
}

// Expr is an opaque grammar expression built by Lit, Class, Seq, Alt, Star,
// Plus, Opt, Hidden, and Capture, and consumed by New.
type Expr = *ast

// Lit matches the given literal bytes in order.
func Lit(s string) Expr {
	return &ast{kind: kLit, lit: []byte(s)}
}

// Class matches a single byte drawn from the given inclusive ranges, each
// given as a two-byte string "loHi" (e.g. Class("az", "AZ") for [a-zA-Z]).
func Class(ranges ...string) Expr {
	n := &ast{kind: kClass}
	for _, r := range ranges {
		if len(r) != 2 {
			panic("byteearley: Class range must be exactly two bytes, e.g. \"az\"")
		}
		n.ranges = append(n.ranges, byteRange{lo: r[0], hi: r[1]})
	}
	return n
}

// Seq matches each item in order.
func Seq(items ...Expr) Expr {
	return &ast{kind: kSeq, items: items}
}

// Alt matches any one of the options; the live parser follows all of them
// at once. When ParseTree rebuilds the tree, the first option that matches
// at that point is used.
func Alt(options ...Expr) Expr {
	return &ast{kind: kAlt, items: options}
}

// Star matches item zero or more times, greedily.
func Star(item Expr) Expr {
	return &ast{kind: kStar, items: []*ast{item}}
}

// Plus matches item one or more times, greedily.
func Plus(item Expr) Expr {
	return Seq(item, Star(item))
}

// Opt matches item zero or one times, preferring one.
func Opt(item Expr) Expr {
	return Alt(item, Seq())
}

// wrapCounter assigns each Hidden/Capture AST node a unique id at
// construction time, so the live engine can pair its enter/exit markers
// without needing pointer identity.
var wrapCounter int

// Hidden marks a grammar region whose bytes must be parsed but never
// emitted to the decoder's caller.
func Hidden(item Expr) Expr {
	wrapCounter++
	return &ast{kind: kHidden, items: []*ast{item}, wrapID: wrapCounter, wrapHidden: true}
}

// Capture marks a named substring of the parse.
func Capture(name string, item Expr) Expr {
	wrapCounter++
	return &ast{kind: kCapture, items: []*ast{item}, wrapID: wrapCounter, wrapName: name}
}

func (r byteRange) contains(b byte) bool { return b >= r.lo && b <= r.hi }

func inRanges(ranges []byteRange, b byte) bool {
	for _, r := range ranges {
		if r.contains(b) {
			return true
		}
	}
	return false
}

type wrapperInfo struct {
	hidden bool
	name   string
}

// collectWrappers walks the AST once, recording hidden/name metadata per
// wrap id, for use by the live engine when synthesizing commit points.
func collectWrappers(n *ast, out map[int]wrapperInfo) {
	if n == nil {
		return
	}
	switch n.kind {
	case kHidden, kCapture:
		out[n.wrapID] = wrapperInfo{hidden: n.wrapHidden, name: n.wrapName}
	}
	for _, c := range n.items {
		collectWrappers(c, out)
	}
}
