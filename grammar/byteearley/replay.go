package byteearley

import (
	"bytes"

	"github.com/gfesatidis/guidance/grammar"
)

// matchNode greedily matches n against the front of data (with
// logProbDeltas aligned one-for-one with data), returning the grammar.Node
// it built, how many bytes it consumed, and whether it matched at all.
// globalStart is data's absolute position in the full byte buffer, used to
// set internalNode.Start() to an absolute offset.
//
// This is deliberately a simple greedy matcher, not a general
// ambiguity-preserving parse: it is only ever run once, after Matched() is
// true, against the single byte string the live engine already accepted —
// so there is exactly one input to explain, not a family of candidates.
// It does not backtrack: Alt keeps the first option that matches and Star
// keeps as many repetitions as match, even if a later Seq item then fails.
func matchNode(n *ast, data []byte, logProbDeltas []float64, globalStart int) (grammar.Node, int, bool) {
	switch n.kind {
	case kLit:
		if len(data) < len(n.lit) || !bytesEqual(data[:len(n.lit)], n.lit) {
			return nil, 0, false
		}
		if len(n.lit) == 1 {
			return &terminalNode{b: data[0]}, 1, true
		}
		kids := make([]grammar.Node, len(n.lit))
		for i := range n.lit {
			kids[i] = &terminalNode{b: data[i]}
		}
		return &internalNode{
			start:   globalStart + len(n.lit),
			logProb: sumDeltas(logProbDeltas[:len(n.lit)]),
			kids:    kids,
		}, len(n.lit), true

	case kClass:
		if len(data) < 1 || !inRanges(n.ranges, data[0]) {
			return nil, 0, false
		}
		return &terminalNode{b: data[0]}, 1, true

	case kSeq:
		pos := 0
		var kids []grammar.Node
		for _, item := range n.items {
			child, consumed, ok := matchNode(item, data[pos:], logProbDeltas[pos:], globalStart+pos)
			if !ok {
				return nil, 0, false
			}
			if child != nil {
				kids = append(kids, child)
			}
			pos += consumed
		}
		return &internalNode{
			start:   globalStart + pos,
			logProb: sumDeltas(logProbDeltas[:pos]),
			kids:    kids,
		}, pos, true

	case kAlt:
		for _, opt := range n.items {
			if child, consumed, ok := matchNode(opt, data, logProbDeltas, globalStart); ok {
				return child, consumed, true
			}
		}
		return nil, 0, false

	case kStar:
		pos := 0
		var kids []grammar.Node
		for {
			child, consumed, ok := matchNode(n.items[0], data[pos:], logProbDeltas[pos:], globalStart+pos)
			if !ok || consumed == 0 {
				break
			}
			if child != nil {
				kids = append(kids, child)
			}
			pos += consumed
		}
		return &internalNode{
			start:   globalStart + pos,
			logProb: sumDeltas(logProbDeltas[:pos]),
			kids:    kids,
		}, pos, true

	case kHidden:
		child, consumed, ok := matchNode(n.items[0], data, logProbDeltas, globalStart)
		if !ok {
			return nil, 0, false
		}
		return &internalNode{
			start:   globalStart + consumed,
			logProb: sumDeltas(logProbDeltas[:consumed]),
			kids:    []grammar.Node{child},
		}, consumed, true

	case kCapture:
		child, consumed, ok := matchNode(n.items[0], data, logProbDeltas, globalStart)
		if !ok {
			return nil, 0, false
		}
		if child != nil && child.IsTerminal() {
			// A Capture directly around a single-byte match: name the
			// terminal itself rather than wrapping it, matching how
			// capture.Walk reads a capture name straight off a leaf.
			return &terminalNode{b: child.Byte(), name: n.wrapName}, consumed, true
		}
		return &internalNode{
			start:   globalStart + consumed,
			name:    n.wrapName,
			logProb: sumDeltas(logProbDeltas[:consumed]),
			kids:    []grammar.Node{child},
		}, consumed, true
	}
	return nil, 0, false
}

func sumDeltas(d []float64) float64 {
	s := 0.0
	for _, v := range d {
		s += v
	}
	return s
}

func bytesEqual(a, b []byte) bool { return bytes.Equal(a, b) }
