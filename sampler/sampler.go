// Package sampler turns logits and a temperature into an order in which a
// decoder should try token ids.
package sampler

import (
	"errors"
	"math"
	"sort"

	"golang.org/x/exp/rand"

	"github.com/npillmayer/schuko/tracing"
)

func tracer() tracing.Trace {
	return tracing.Select("guidance.sampler")
}

// ErrUnsupportedTopP is returned when top_p != 1 at a temperature above 0,
// which this core does not support. A future extension could truncate the distribution before
// multinomial sampling.
var ErrUnsupportedTopP = errors.New("sampler: top_p != 1 is unsupported")

// Sampler produces a permutation of token ids to try, most-preferred
// first.
type Sampler interface {
	Order(logits []float32) ([]int32, error)
}

// Temperature0 returns the descending-argsort permutation of logits: the
// greedy, deterministic choice.
type Temperature0 struct{}

// Order implements Sampler.
func (Temperature0) Order(logits []float32) ([]int32, error) {
	order := make([]int32, len(logits))
	for i := range order {
		order[i] = int32(i)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return logits[order[i]] > logits[order[j]]
	})
	return order, nil
}

// Multinomial draws a permutation by repeated categorical sampling without
// replacement from softmax(logits/temperature) — equivalent to a single
// shuffled draw of all indices. Given a seeded *rand.Rand, the whole decode
// loop is reproducible.
type Multinomial struct {
	Temperature float64
	TopP        float64 // must be 1; see ErrUnsupportedTopP
	Rand        *rand.Rand
}

// NewMultinomial builds a Multinomial sampler seeded deterministically from
// seed, so that repeated runs with the same seed reproduce the same draws.
func NewMultinomial(temperature float64, seed uint64) *Multinomial {
	return &Multinomial{
		Temperature: temperature,
		TopP:        1,
		Rand:        rand.New(rand.NewSource(seed)),
	}
}

// Order implements Sampler.
func (m *Multinomial) Order(logits []float32) ([]int32, error) {
	if m.Temperature <= 0 {
		return Temperature0{}.Order(logits)
	}
	if m.TopP != 0 && m.TopP != 1 {
		tracer().Errorf("sampler: rejecting top_p=%v", m.TopP)
		return nil, ErrUnsupportedTopP
	}

	weights := make([]float64, len(logits))
	maxLogit := float64(logits[0])
	for _, l := range logits {
		if float64(l) > maxLogit {
			maxLogit = float64(l)
		}
	}
	sum := 0.0
	for i, l := range logits {
		w := math.Exp((float64(l) - maxLogit) / m.Temperature)
		weights[i] = w
		sum += w
	}

	remaining := make([]int32, len(logits))
	for i := range remaining {
		remaining[i] = int32(i)
	}
	order := make([]int32, 0, len(logits))
	for len(remaining) > 0 {
		total := 0.0
		for _, idx := range remaining {
			total += weights[idx]
		}
		pick := m.Rand.Float64() * total
		acc := 0.0
		chosen := len(remaining) - 1
		for i, idx := range remaining {
			acc += weights[idx]
			if pick < acc {
				chosen = i
				break
			}
		}
		order = append(order, remaining[chosen])
		remaining = append(remaining[:chosen], remaining[chosen+1:]...)
	}
	return order, nil
}
