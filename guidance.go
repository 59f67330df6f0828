/*
Package guidance implements grammar-constrained token generation on top of
a language model: given a vocabulary of byte-sequence tokens, a prompt, a
context-free grammar (consumed through the grammar.Parser interface), and an
oracle returning per-token logits for a prefix of token ids, it produces a
stream of model-sampled tokens whose concatenated bytes are guaranteed to be
a prefix of a grammar-accepted string.

Package structure:

■ bitmask: a fixed 256-bit set used for "which bytes are legal next".

■ trie: a byte trie over the model vocabulary, with a per-node grammar-match
cache invalidated by a version counter.

■ grammar: the parser contract (grammar.Parser) the decoder consumes, plus
grammar/byteearley, a concrete implementation for a regular subset of
context-free grammars used in tests and by the CLI.

■ oracle: the logit-oracle contract (oracle.LogitOracle) plus a memoizing
decorator and a deterministic mock for tests.

■ sampler: turns logits and a temperature into an order in which to try
token ids.

■ decode: the constrained decoding loop itself.

■ capture: walks a finished parse tree to extract named captures.
*/
package guidance

import "errors"

// TokenID identifies a single vocabulary entry.
type TokenID int32

// Chunk is a single record yielded by the constrained decoder: a run of
// bytes, whether it was sampled from the model (as opposed to forced by the
// grammar), its log probability, and — on the terminating record only —
// the named captures extracted from the finished parse.
type Chunk struct {
	Bytes           []byte
	IsGenerated     bool
	LogProb         float64
	Captures        map[string][]byte
	CaptureLogProbs map[string]*float64
}

// Sentinel errors returned by the decoder. ErrUnsupportedOption and
// ErrVocabularyViolation surface at decoder construction time, before any
// byte is generated; ErrOracleShape surfaces from a decode step.
var (
	// ErrUnsupportedOption is returned for a sampler with top_p != 1 at
	// temperature > 0. There is no n option: a decoder always produces a
	// single stream.
	ErrUnsupportedOption = errors.New("guidance: unsupported option")

	// ErrVocabularyViolation is returned when the configured BOS id is out
	// of range.
	ErrVocabularyViolation = errors.New("guidance: vocabulary violation")

	// ErrOracleShape is returned by a decode step when the oracle's logits
	// vector length does not match the vocabulary size.
	ErrOracleShape = errors.New("guidance: oracle returned wrong shape")
)
