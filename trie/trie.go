// Package trie implements a prefix tree over a model's vocabulary of
// byte-sequence tokens, with a per-node grammar-match cache that is
// invalidated in O(1) by bumping a version counter instead of walking the
// tree.
//
// Nodes live in an arena (a single slice) and reference each other by index
// rather than by pointer, avoiding the reference cycles a parent back-pointer
// would otherwise create.
package trie

import (
	"fmt"
	"math"

	"github.com/npillmayer/schuko/tracing"
)

func tracer() tracing.Trace {
	return tracing.Select("guidance.trie")
}

const noNode int32 = -1

// node is one arena slot. children maps a byte value to a child node index,
// or noNode if absent.
type node struct {
	children     [256]int32
	parent       int32
	hasValue     bool
	value        int32 // token id, meaningful iff hasValue
	match        bool
	matchVersion uint64
	logProb      float64
}

func newNode(parent int32) node {
	n := node{parent: parent, value: -1}
	for i := range n.children {
		n.children[i] = noNode
	}
	return n
}

// Trie is an arena-backed byte trie. The zero value is not usable; build one
// with New.
type Trie struct {
	nodes   []node
	version uint64
}

// Node is an opaque handle into a Trie, cheap to copy and compare.
type Node struct {
	t   *Trie
	idx int32
}

// New builds a trie from a vocabulary of byte-sequence tokens, where the id
// of tokens[i] is ids[i]. A path may be the byte sequence of at most one
// token; if two tokens share an identical byte sequence, the later one in
// the slice wins.
func New(tokens [][]byte, ids []int32) (*Trie, error) {
	if len(tokens) != len(ids) {
		return nil, fmt.Errorf("trie: len(tokens)=%d != len(ids)=%d", len(tokens), len(ids))
	}
	tr := &Trie{nodes: make([]node, 1, len(tokens)*2+1)}
	tr.nodes[0] = newNode(noNode)
	for i, tok := range tokens {
		cur := int32(0)
		for _, b := range tok {
			next := tr.nodes[cur].children[b]
			if next == noNode {
				tr.nodes = append(tr.nodes, newNode(cur))
				next = int32(len(tr.nodes) - 1)
				tr.nodes[cur].children[b] = next
			}
			cur = next
		}
		tr.nodes[cur].hasValue = true
		tr.nodes[cur].value = ids[i]
	}
	tracer().Debugf("trie: built %d nodes from %d tokens", len(tr.nodes), len(tokens))
	return tr, nil
}

// Root returns the trie's root node.
func (t *Trie) Root() Node { return Node{t, 0} }

// BumpVersion invalidates every cached match flag in the tree in O(1): a
// node's match flag is only meaningful when its stamped version equals the
// trie's current version, so incrementing the counter here is enough to
// make every existing stamp stale without visiting a single node.
func (t *Trie) BumpVersion() { t.version++ }

// Version returns the trie's current match-cache version.
func (t *Trie) Version() uint64 { return t.version }

// IsRoot reports whether n is the trie's root.
func (n Node) IsRoot() bool { return n.idx == 0 }

// Valid reports whether n refers to an existing node (the zero Node is
// invalid).
func (n Node) Valid() bool { return n.t != nil }

// Parent returns n's parent and true, or the zero Node and false at the
// root.
func (n Node) Parent() (Node, bool) {
	p := n.t.nodes[n.idx].parent
	if p == noNode {
		return Node{}, false
	}
	return Node{n.t, p}, true
}

// Child returns the child reached by byte b, and true, or false if absent.
func (n Node) Child(b byte) (Node, bool) {
	c := n.t.nodes[n.idx].children[b]
	if c == noNode {
		return Node{}, false
	}
	return Node{n.t, c}, true
}

// HasChildren reports whether n has any children at all.
func (n Node) HasChildren() bool {
	for _, c := range n.t.nodes[n.idx].children {
		if c != noNode {
			return true
		}
	}
	return false
}

// Value returns the token id stored at n, and true, iff the path from the
// root to n spells exactly one token's bytes.
func (n Node) Value() (int32, bool) {
	nd := n.t.nodes[n.idx]
	return nd.value, nd.hasValue
}

// Match returns the cached match verdict for the byte leading into n,
// valid only if Stale() is false.
func (n Node) Match() bool { return n.t.nodes[n.idx].match }

// Stale reports whether n's cached match flag predates the trie's current
// version and must be refreshed before use.
func (n Node) Stale() bool {
	return n.t.nodes[n.idx].matchVersion != n.t.version
}

// SetMatch refreshes n's cached match flag to the trie's current version.
func (n Node) SetMatch(match bool) {
	n.t.nodes[n.idx].match = match
	n.t.nodes[n.idx].matchVersion = n.t.version
}

// LogProb returns the log-sum-exp of descendant-token log-probs, valid only
// after ComputeLogProbs has been run for the current step.
func (n Node) LogProb() float64 { return n.t.nodes[n.idx].logProb }

// Equal compares two node handles for identity.
func (n Node) Equal(other Node) bool { return n.t == other.t && n.idx == other.idx }

// LongestTokenMatch performs a greedy descent from the root following b. It
// returns the consumed prefix and the matched token id when descent reaches
// a node that spells exactly one complete token. If descent dead-ends (no
// child for the next byte, or a childless node) before that, it still
// returns the prefix consumed so far with id -1 and matched false — b is not
// itself a token, but some leading part of it got somewhere in the trie.
// Only when all of b is consumed and the node reached still has children —
// b is a strict prefix of at least one longer token, so more than one token
// may still match and the caller must decide by other means — does it
// return (nil, -1, false), even if that node is itself a token.
func (t *Trie) LongestTokenMatch(b []byte) ([]byte, int32, bool) {
	cur := t.Root()
	for i, c := range b {
		next, ok := cur.Child(c)
		if !ok {
			v, has := cur.Value()
			if !has {
				return b[:i], -1, false
			}
			return b[:i], v, true
		}
		cur = next
	}
	if !cur.HasChildren() {
		v, has := cur.Value()
		if !has {
			return b, -1, false
		}
		return b, v, true
	}
	return nil, -1, false
}

// ComputeLogProbs recomputes the per-node log-probability cache from
// per-token log-probabilities (typically log_softmax(logits)), so that
// every node's LogProb is the log-sum-exp of the log-probabilities of the
// tokens reachable beneath it. logProbs must be indexed by token id.
func (t *Trie) ComputeLogProbs(logProbs []float64) {
	t.computeLogProbs(0, logProbs)
}

func (t *Trie) computeLogProbs(idx int32, logProbs []float64) float64 {
	acc := math.Inf(-1)
	if t.nodes[idx].hasValue {
		acc = logProbs[t.nodes[idx].value]
	}
	for _, c := range t.nodes[idx].children {
		if c == noNode {
			continue
		}
		acc = logAddExp(acc, t.computeLogProbs(c, logProbs))
	}
	t.nodes[idx].logProb = acc
	return acc
}

// logAddExp computes log(exp(a) + exp(b)) without overflow.
func logAddExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}
