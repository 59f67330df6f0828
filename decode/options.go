package decode

// Options configures a Decoder's construction. Build one with New's
// variadic Option parameters rather than constructing this directly.
type Options struct {
	maxTokens int
	logProbs  bool
	bosToken  int32
	haveBOS   bool
}

func defaultOptions() Options {
	return Options{maxTokens: 100}
}

// Option configures a Decoder at construction time.
type Option func(*Options)

// WithMaxTokens caps the number of emitted-content tokens a decoder will
// produce before it stops on its own (default 100).
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.maxTokens = n }
}

// WithLogProbs enables trie log-probability accounting and per-capture
// log-probabilities on the terminating chunk. Disabled by default, since it
// costs a full log-softmax and a walk of the trie on every sampled step.
func WithLogProbs(enabled bool) Option {
	return func(o *Options) { o.logProbs = enabled }
}

// WithBOSTokenID records the vocabulary id of the beginning-of-sequence
// token, so New can reject an out-of-range id up front instead of letting
// it surface later as a confusing oracle or trie error.
func WithBOSTokenID(id int32) Option {
	return func(o *Options) { o.bosToken = id; o.haveBOS = true }
}
