// Package decode implements the constrained decoding loop: the single
// algorithm that jointly drives a trie.Trie, a grammar.Parser and an
// oracle.LogitOracle to produce a stream of tokens whose concatenated bytes
// are a prefix of a grammar-accepted string.
//
// Like the rest of this module, Next is a pull-based iterator rather than a
// goroutine-and-channel pipeline: callers drive it directly, there is
// exactly one suspension point (the return from Next), and reproducibility
// under a seeded sampler only depends on the caller driving it the same way
// every time.
package decode

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/gfesatidis/guidance"
	"github.com/gfesatidis/guidance/capture"
	"github.com/gfesatidis/guidance/grammar"
	"github.com/gfesatidis/guidance/oracle"
	"github.com/gfesatidis/guidance/sampler"
	"github.com/gfesatidis/guidance/trie"
	"github.com/npillmayer/schuko/tracing"
)

func tracer() tracing.Trace {
	return tracing.Select("guidance.decode")
}

// Decoder runs the constrained decoding loop against one trie, one parser
// and one oracle. It is not safe for concurrent use; the trie's match cache
// and the parser's chart are mutated in place as part of decoding one
// stream, matching the single-in-flight-decode model of the trie they
// share with any sibling decoder.
type Decoder struct {
	trie    *trie.Trie
	parser  grammar.Parser
	oracle  oracle.LogitOracle
	sampler sampler.Sampler
	tokens  [][]byte
	opts    Options

	tokenIDs           []int32
	tokenBytePositions []int
	hiddenCount        int
	generatedPos       int
	tokenCount         int
	done               bool

	// hiddenSpans records the [start,end) byte ranges of every resolved
	// Hidden() span seen so far, in the parser's literal (uncollapsed)
	// byte coordinates — the trie still has to walk those bytes, since
	// the model really produces them, so they can only be excluded from
	// what's reported, never from what's consumed.
	hiddenSpans [][2]int
}

// New builds a Decoder. parser must already represent the full grammar —
// prompt plus user grammar — with Pos() at 0; hiddenCount is the number of
// leading bytes of that grammar (typically the prompt's byte length) that
// must never be yielded. tokens[i] is the byte sequence of vocabulary
// token i, matching the ids tr was built from.
func New(tr *trie.Trie, p grammar.Parser, oc oracle.LogitOracle, samp sampler.Sampler, tokens [][]byte, hiddenCount int, opts ...Option) (*Decoder, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if m, ok := samp.(*sampler.Multinomial); ok && m.Temperature > 0 && m.TopP != 0 && m.TopP != 1 {
		return nil, fmt.Errorf("decode: %w: top_p != 1", guidance.ErrUnsupportedOption)
	}
	if o.haveBOS && (o.bosToken < 0 || int(o.bosToken) >= len(tokens)) {
		return nil, fmt.Errorf("decode: %w: bos token id %d out of range [0,%d)", guidance.ErrVocabularyViolation, o.bosToken, len(tokens))
	}
	tracer().Debugf("decode: new decoder, vocab=%d maxTokens=%d logProbs=%v", len(tokens), o.maxTokens, o.logProbs)
	return &Decoder{
		trie:        tr,
		parser:      p,
		oracle:      oc,
		sampler:     samp,
		tokens:      tokens,
		opts:        o,
		hiddenCount: hiddenCount,
	}, nil
}

// ApplyBOSToken returns prompt, prepending bosToken if ensure is true and
// prompt does not already start with it. Call this once, before compiling
// prompt+grammar into the grammar.Parser handed to New — prompt assembly
// and grammar compilation are the caller's concern, not decode's.
func ApplyBOSToken(prompt, bosToken []byte, ensure bool) []byte {
	if !ensure || bytes.HasPrefix(prompt, bosToken) {
		return prompt
	}
	out := make([]byte, 0, len(bosToken)+len(prompt))
	out = append(out, bosToken...)
	out = append(out, prompt...)
	return out
}

// Next advances the decoder by at most one outer step and returns the
// record it produced, if any. more is false once the decoder has emitted
// its terminating record or hit max_tokens; Next never emits again after
// that, regardless of how many further times it's called.
func (d *Decoder) Next(ctx context.Context) (guidance.Chunk, bool, error) {
	if d.done {
		return guidance.Chunk{}, false, nil
	}
	for {
		select {
		case <-ctx.Done():
			d.done = true
			return guidance.Chunk{}, false, ctx.Err()
		default:
		}
		if d.tokenCount >= d.opts.maxTokens {
			d.done = true
			return guidance.Chunk{}, false, nil
		}
		chunk, emitted, terminal, err := d.step(ctx)
		if err != nil {
			d.done = true
			return guidance.Chunk{}, false, err
		}
		if terminal {
			d.done = true
			return chunk, true, nil
		}
		if emitted {
			return chunk, true, nil
		}
		// Hidden-only or a mid-forced-descent retry: no visible bytes
		// this round, go again.
	}
}

// All drains the decoder to completion, convenient for callers that don't
// need to stream.
func (d *Decoder) All(ctx context.Context) ([]guidance.Chunk, error) {
	var chunks []guidance.Chunk
	for {
		c, more, err := d.Next(ctx)
		if err != nil {
			return chunks, err
		}
		if !more {
			return chunks, nil
		}
		chunks = append(chunks, c)
	}
}

// refreshSiblings updates the cached match flag of every existing child of
// node against mask in one pass, answering "is byte b legal next" for every
// candidate child at once instead of one at a time.
func refreshSiblings(node trie.Node, mask bitmaskLike) {
	for b := 0; b < 256; b++ {
		child, ok := node.Child(byte(b))
		if !ok {
			continue
		}
		child.SetMatch(mask.Test(byte(b)))
	}
}

// bitmaskLike is the subset of bitmask.Mask this package depends on,
// avoiding importing bitmask just to name its type in refreshSiblings.
type bitmaskLike interface {
	Test(b byte) bool
}

// step performs exactly one outer iteration of the decode loop: forced
// descent, possible hidden-span rewind (signaled via emitted=false,
// terminal=false so Next retries), sampling, emission bookkeeping, and
// grammar-stall / end-of-grammar termination.
func (d *Decoder) step(ctx context.Context) (chunk guidance.Chunk, emitted bool, terminal bool, err error) {
	startPos := d.parser.Pos()
	d.trie.BumpVersion()
	cur := d.trie.Root()
	maskSum := 0

	for {
		mask := d.parser.NextByteMask()
		maskSum = mask.PopCount()
		if maskSum == 0 || maskSum >= 2 {
			break
		}
		b, _ := mask.Next(0)
		refreshSiblings(cur, mask)
		next, ok := cur.Child(b)
		if !ok || !next.Match() {
			break // forced byte has no matching trie child: token ends here
		}
		commit, committed := d.parser.ConsumeByte(b, 0)
		cur = next
		if committed && commit.Node.Hidden {
			d.parser.CommitAndCollapseItem(commit)
			d.hiddenSpans = append(d.hiddenSpans, [2]int{commit.SpanStart, commit.Start})
			if startPos < commit.Start {
				d.parser.ShadowRewind(startPos)
			} else {
				for len(d.tokenBytePositions) > 0 && d.tokenBytePositions[len(d.tokenBytePositions)-1] > commit.Start {
					d.tokenIDs = d.tokenIDs[:len(d.tokenIDs)-1]
					d.tokenBytePositions = d.tokenBytePositions[:len(d.tokenBytePositions)-1]
					d.tokenCount--
				}
				rewindTo := 0
				if len(d.tokenBytePositions) > 0 {
					rewindTo = d.tokenBytePositions[len(d.tokenBytePositions)-1]
				}
				// Defensive: if every prior token was popped,
				// there is no token boundary left to rewind to;
				// clear to the start of the buffer.
				d.parser.ShadowRewind(rewindTo)
			}
			return guidance.Chunk{}, false, false, nil
		}
	}

	forcedPos := d.parser.Pos()
	if maskSum <= 1 {
		for {
			if _, has := cur.Value(); has || cur.IsRoot() {
				break
			}
			parent, ok := cur.Parent()
			if !ok {
				break
			}
			cur = parent
			forcedPos--
		}
		d.parser.SetPos(forcedPos)
	}

	matched := d.parser.Matched()
	isForced := maskSum <= 1
	if isForced {
		if matched {
			isForced = !cur.HasChildren()
		} else {
			isForced = !cur.IsRoot()
		}
	}

	var (
		sampledID       int32
		candidate       []byte
		tokenPos        int
		newBytesLogProb float64
	)

	switch {
	case isForced:
		v, _ := cur.Value()
		sampledID = v
		candidate = d.tokens[v]
		tokenPos = len(candidate)

	case maskSum == 0:
		// Grammar dead end, not forced: no candidate could even be
		// attempted.
		tokenPos = 0
		candidate = nil

	default:
		logits, gerr := d.oracle.GetLogits(ctx, d.tokenIDs)
		if gerr != nil {
			return guidance.Chunk{}, false, false, gerr
		}
		if len(logits) != len(d.tokens) {
			return guidance.Chunk{}, false, false, fmt.Errorf("decode: %w: got %d, want %d", guidance.ErrOracleShape, len(logits), len(d.tokens))
		}
		if d.opts.logProbs {
			d.trie.ComputeLogProbs(logSoftmax(logits))
		}
		order, serr := d.sampler.Order(logits)
		if serr != nil {
			return guidance.Chunk{}, false, false, serr
		}

		for _, tid := range order {
			cand := d.tokens[tid]
			d.parser.SetPos(forcedPos)
			newBytesLogProb = 0

			if startPos < forcedPos && !bytes.HasPrefix(cand, d.parser.Bytes()[startPos:forcedPos]) {
				continue
			}
			tokenPos = forcedPos - startPos
			node := cur

			for tokenPos < len(cand) {
				nb := cand[tokenPos]
				next, ok := node.Child(nb)
				if !ok {
					if !d.parser.Matched() {
						tokenPos = -1
					}
					break
				}
				if next.Stale() {
					m := d.parser.NextByteMask()
					refreshSiblings(node, m)
				}
				if next.Match() {
					delta := next.LogProb() - node.LogProb()
					newBytesLogProb += delta
					d.parser.ConsumeByte(nb, delta)
					node = next
					tokenPos++
					continue
				}
				if !d.parser.Matched() {
					tokenPos = -1
				}
				break
			}

			if tokenPos == len(cand) && !d.parser.Matched() {
				if dominated(d.parser, node) {
					tokenPos = -1
				}
			}

			if tokenPos > 0 {
				sampledID = tid
				candidate = cand
				break
			}
			if d.parser.Matched() {
				break // model deviated from the grammar; give up
			}
		}
	}

	upper := d.parser.EarliestHiddenStart()
	rawNewBytes := d.parser.Bytes()[d.generatedPos:upper]
	visibleBytes := stripHiddenSpans(rawNewBytes, d.generatedPos, d.hiddenSpans)
	skip := d.hiddenCount
	if skip > len(visibleBytes) {
		skip = len(visibleBytes)
	}

	giveUp := !isForced && cur.IsRoot() && (candidate == nil || tokenPos < len(candidate))
	if giveUp {
		tracer().Debugf("decode: terminating at pos=%d matched=%v", d.parser.Pos(), d.parser.Matched())
		out := append([]byte(nil), visibleBytes[skip:]...)
		tree := d.parser.ParseTree()
		captures, captureLogProbs := capture.Walk(tree, d.parser.Bytes(), d.opts.logProbs)
		return guidance.Chunk{
			Bytes:           out,
			IsGenerated:     !isForced,
			LogProb:         newBytesLogProb,
			Captures:        captures,
			CaptureLogProbs: captureLogProbs,
		}, true, true, nil
	}

	d.generatedPos += len(rawNewBytes)
	out := visibleBytes[skip:]
	if len(out) > 0 {
		chunk = guidance.Chunk{Bytes: append([]byte(nil), out...), IsGenerated: !isForced, LogProb: newBytesLogProb}
		d.hiddenCount = 0
		d.tokenCount++
		emitted = true
	} else {
		d.hiddenCount -= len(visibleBytes)
	}

	d.tokenIDs = append(d.tokenIDs, sampledID)
	d.tokenBytePositions = append(d.tokenBytePositions, d.parser.Pos())
	return chunk, emitted, false, nil
}

// dominated reports whether every grammar-legal extension of node's
// position stays inside the trie under a longer valid token: if so, the
// token terminating at node would never arise from greedy retokenization of
// the model's actual output, and must be rejected in favor of the longer
// token. p's position is restored before dominated returns.
func dominated(p grammar.Parser, node trie.Node) bool {
	curPos := p.Pos()
	mask := p.NextByteMask()
	for _, b := range mask.Bytes() {
		child, ok := node.Child(b)
		if !ok {
			return false
		}
		if child.Stale() {
			child.SetMatch(mask.Test(b))
		}
		if !child.Match() {
			return false
		}
		if _, has := child.Value(); has {
			continue // a token boundary here always counts as dominating
		}
		p.ConsumeByte(b, 0)
		ok2 := dominated(p, child)
		p.SetPos(curPos)
		if !ok2 {
			return false
		}
	}
	return true
}

// stripHiddenSpans returns b with any byte falling inside one of spans
// removed. from is the absolute parser position of b[0]; spans are in the
// same absolute coordinates CommitPoint.SpanStart/Start use.
func stripHiddenSpans(b []byte, from int, spans [][2]int) []byte {
	if len(spans) == 0 {
		return b
	}
	out := make([]byte, 0, len(b))
	for i, c := range b {
		pos := from + i
		hidden := false
		for _, sp := range spans {
			if pos >= sp[0] && pos < sp[1] {
				hidden = true
				break
			}
		}
		if !hidden {
			out = append(out, c)
		}
	}
	return out
}

// logSoftmax turns raw logits into log-probabilities, the input
// Trie.ComputeLogProbs expects.
func logSoftmax(logits []float32) []float64 {
	maxLogit := float64(logits[0])
	for _, l := range logits {
		if float64(l) > maxLogit {
			maxLogit = float64(l)
		}
	}
	sum := 0.0
	for _, l := range logits {
		sum += math.Exp(float64(l) - maxLogit)
	}
	logSum := math.Log(sum)
	out := make([]float64, len(logits))
	for i, l := range logits {
		out[i] = float64(l) - maxLogit - logSum
	}
	return out
}
