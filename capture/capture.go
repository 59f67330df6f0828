// Package capture walks a finished parse tree and extracts named captures
// and their log-probabilities.
package capture

import (
	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/npillmayer/schuko/tracing"

	"github.com/gfesatidis/guidance/grammar"
)

func tracer() tracing.Trace {
	return tracing.Select("guidance.capture")
}

// frame is one entry of the explicit walk stack, modeled on lr/tables.go's
// use of emirpasic/gods list types for worklist-style algorithms — an
// iterative walk avoids recursion depth tied to grammar nesting.
type frame struct {
	node    grammar.Node
	bytePos int
	// childIdx is the index of the next child to visit; -1 means "visit
	// this node itself first" (pre-order bookkeeping done as part of an
	// otherwise post-order-observing walk, since captures are recorded
	// on entry but byte accounting happens as children are consumed).
	childIdx int
}

// Walk performs a post-order walk of tree, recording one entry per
// capture-named node: data[name] is the matched byte range, and
// logProbs[name] is its log-probability. If withLogProbs is false,
// logProbs[name] is nil for every captured key instead.
func Walk(tree grammar.Node, bytes []byte, withLogProbs bool) (map[string][]byte, map[string]*float64) {
	data := map[string][]byte{}
	logProbs := map[string]*float64{}

	stack := arraylist.New()
	stack.Add(&frame{node: tree, bytePos: 0, childIdx: -1})

	for !stack.Empty() {
		top, _ := stack.Get(stack.Size() - 1)
		fr := top.(*frame)

		if fr.childIdx == -1 {
			recordCapture(fr.node, fr.bytePos, bytes, data, logProbs)
			fr.childIdx = 0
		}

		children := fr.node.Children()
		if fr.childIdx >= len(children) {
			stack.Remove(stack.Size() - 1)
			continue
		}
		child := children[fr.childIdx]
		advancedPos := fr.bytePos
		if fr.childIdx > 0 {
			advancedPos = childEndPos(children[fr.childIdx-1], fr.bytePos)
		}
		fr.bytePos = advancedPos
		fr.childIdx++
		if child == nil {
			continue
		}
		stack.Add(&frame{node: child, bytePos: advancedPos, childIdx: -1})
	}

	if !withLogProbs {
		for name := range data {
			logProbs[name] = nil
		}
	}
	tracer().Debugf("capture: walked parse tree, found %d named captures", len(data))
	return data, logProbs
}

// childEndPos advances the running byte position past a just-visited
// child: by its length if it is a Terminal, or to its Start() (which is
// the end offset, by convention) if it is an Internal node.
func childEndPos(child grammar.Node, pos int) int {
	if child == nil {
		return pos
	}
	if child.IsTerminal() {
		return pos + child.Len()
	}
	return child.Start()
}

func recordCapture(n grammar.Node, bytePos int, bytes []byte, data map[string][]byte, logProbs map[string]*float64) {
	name := n.CaptureName()
	if name == "" {
		return
	}
	if n.IsTerminal() {
		data[name] = []byte{n.Byte()}
		lp := 0.0
		logProbs[name] = &lp
		return
	}
	data[name] = bytes[bytePos:n.Start()]
	lp := n.LogProb()
	logProbs[name] = &lp
}
