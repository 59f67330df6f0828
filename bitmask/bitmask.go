// Package bitmask implements a fixed 256-bit set, used to represent which
// bytes are grammatically legal at a given parser position. Four 64-bit
// words keep popcount and nonzero-bit iteration to a handful of machine
// instructions instead of a loop over 256 bools.
package bitmask

import (
	"math/bits"

	"github.com/npillmayer/schuko/tracing"
)

func tracer() tracing.Trace {
	return tracing.Select("guidance.bitmask")
}

// Mask is a set of byte values 0..255, stored as four 64-bit words.
type Mask [4]uint64

// Set adds b to the mask.
func (m *Mask) Set(b byte) {
	m[b/64] |= 1 << (uint(b) % 64)
}

// Clear removes b from the mask.
func (m *Mask) Clear(b byte) {
	m[b/64] &^= 1 << (uint(b) % 64)
}

// Test reports whether b is a member of the mask.
func (m Mask) Test(b byte) bool {
	return m[b/64]&(1<<(uint(b)%64)) != 0
}

// PopCount returns the number of set bits.
func (m Mask) PopCount() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}

// IsZero reports whether no bit is set.
func (m Mask) IsZero() bool {
	return m[0] == 0 && m[1] == 0 && m[2] == 0 && m[3] == 0
}

// Union returns the union of m and other.
func (m Mask) Union(other Mask) Mask {
	var r Mask
	for i := range m {
		r[i] = m[i] | other[i]
	}
	return r
}

// Next returns the lowest byte value >= from that is a member of the mask,
// and true, or (0, false) if there is none.
func (m Mask) Next(from int) (byte, bool) {
	for w := from / 64; w < 4; w++ {
		word := m[w]
		if w == from/64 {
			word &^= (uint64(1) << (uint(from) % 64)) - 1
		}
		if word == 0 {
			continue
		}
		bit := bits.TrailingZeros64(word)
		return byte(w*64 + bit), true
	}
	return 0, false
}

// Bytes returns every member byte, in ascending order.
func (m Mask) Bytes() []byte {
	out := make([]byte, 0, m.PopCount())
	for b, ok := m.Next(0); ok; b, ok = m.Next(int(b) + 1) {
		out = append(out, b)
		if b == 255 {
			break
		}
	}
	return out
}

// Of builds a Mask containing exactly the given bytes.
func Of(bs ...byte) Mask {
	var m Mask
	for _, b := range bs {
		m.Set(b)
	}
	return m
}

// Range builds a Mask containing every byte in [lo, hi] inclusive.
func Range(lo, hi byte) Mask {
	var m Mask
	if lo > hi {
		tracer().Errorf("bitmask: empty range [%d,%d]", lo, hi)
		return m
	}
	for b := int(lo); b <= int(hi); b++ {
		m.Set(byte(b))
	}
	return m
}

// All returns a Mask with every one of the 256 byte values set.
func All() Mask {
	return Mask{^uint64(0), ^uint64(0), ^uint64(0), ^uint64(0)}
}
