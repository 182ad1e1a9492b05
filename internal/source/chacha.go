// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package source generates the deterministic input arrays fed to the
// bucket-offset kernel.
//
// The generator is ChaCha with 8 rounds, keyed from a 64-bit seed through a
// PCG32 expansion. Both steps match rand_chacha's ChaCha8Rng::seed_from_u64,
// so a given seed yields the same words on every platform and in every
// implementation that follows the same construction.
package source

import (
	"encoding/binary"
	"math/bits"
)

const (
	// Rounds is the number of ChaCha rounds (4 double rounds).
	Rounds = 8

	// blockWords is the number of 32-bit words in one ChaCha block.
	blockWords = 16

	pcgMul uint64 = 6364136223846793005
	pcgInc uint64 = 11634580027462260723
)

// "expand 32-byte k"
var sigma = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}

// SeedFromUint64 expands a 64-bit seed into a 256-bit ChaCha key.
//
// Each 4-byte chunk advances a PCG32 state once and stores the
// xorshift-rotated output little-endian.
func SeedFromUint64(seed uint64) [32]byte {
	var key [32]byte
	state := seed
	for off := 0; off < len(key); off += 4 {
		state = state*pcgMul + pcgInc
		xorshifted := uint32(((state >> 18) ^ state) >> 27)
		rot := int(state >> 59)
		binary.LittleEndian.PutUint32(key[off:], bits.RotateLeft32(xorshifted, -rot))
	}
	return key
}

// ChaCha8 is a ChaCha8 keystream read as a sequence of uint32 words.
//
// ChaCha8 is not safe for concurrent use.
type ChaCha8 struct {
	key     [8]uint32
	counter uint64
	buf     [blockWords]uint32
	pos     int
}

// New returns a generator keyed from seed.
func New(seed uint64) *ChaCha8 {
	return NewFromKey(SeedFromUint64(seed))
}

// NewFromKey returns a generator using a raw 256-bit key, block counter 0
// and stream 0.
func NewFromKey(key [32]byte) *ChaCha8 {
	c := &ChaCha8{pos: blockWords}
	for i := range c.key {
		c.key[i] = binary.LittleEndian.Uint32(key[i*4:])
	}
	return c
}

// Uint32 returns the next keystream word.
func (c *ChaCha8) Uint32() uint32 {
	if c.pos == blockWords {
		c.refill()
	}
	v := c.buf[c.pos]
	c.pos++
	return v
}

// Fill overwrites dst with consecutive keystream words.
func (c *ChaCha8) Fill(dst []uint32) {
	for i := range dst {
		dst[i] = c.Uint32()
	}
}

// refill computes the block for the current counter and advances it.
func (c *ChaCha8) refill() {
	block(&c.buf, &c.key, c.counter)
	c.counter++
	c.pos = 0
}

// Generate returns n words from the generator seeded with seed.
func Generate(seed uint64, n int) []uint32 {
	if n <= 0 {
		return []uint32{}
	}
	out := make([]uint32, n)
	New(seed).Fill(out)
	return out
}

// block writes one ChaCha block (rounds result plus input state) to out.
func block(out *[blockWords]uint32, key *[8]uint32, counter uint64) {
	var in [blockWords]uint32
	copy(in[0:4], sigma[:])
	copy(in[4:12], key[:])
	in[12] = uint32(counter)
	in[13] = uint32(counter >> 32)

	x := in
	for range Rounds / 2 {
		// column round
		quarterRound(&x, 0, 4, 8, 12)
		quarterRound(&x, 1, 5, 9, 13)
		quarterRound(&x, 2, 6, 10, 14)
		quarterRound(&x, 3, 7, 11, 15)
		// diagonal round
		quarterRound(&x, 0, 5, 10, 15)
		quarterRound(&x, 1, 6, 11, 12)
		quarterRound(&x, 2, 7, 8, 13)
		quarterRound(&x, 3, 4, 9, 14)
	}
	for i := range out {
		out[i] = x[i] + in[i]
	}
}

func quarterRound(s *[blockWords]uint32, a, b, c, d int) {
	s[a] += s[b]
	s[d] = bits.RotateLeft32(s[d]^s[a], 16)
	s[c] += s[d]
	s[b] = bits.RotateLeft32(s[b]^s[c], 12)
	s[a] += s[b]
	s[d] = bits.RotateLeft32(s[d]^s[a], 8)
	s[c] += s[d]
	s[b] = bits.RotateLeft32(s[b]^s[c], 7)
}
