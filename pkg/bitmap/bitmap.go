// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bitmap provides a fixed-size bitmap used to track allocated
// frames.
package bitmap

import (
	"fmt"
	"math/bits"
)

// Bitmap is a fixed-size set of small integers.
type Bitmap struct {
	// numOnes is the number of set bits.
	numOnes uint32

	// size is the number of valid bits.
	size uint32

	// blocks holds the bits, 64 per word.
	blocks []uint64
}

// New creates an empty Bitmap able to hold size entries.
func New(size uint32) Bitmap {
	return Bitmap{
		size:   size,
		blocks: make([]uint64, (size+63)/64),
	}
}

// Size returns the number of entries the Bitmap can hold.
func (b *Bitmap) Size() uint32 {
	return b.size
}

// GetNumOnes returns the number of set entries.
func (b *Bitmap) GetNumOnes() uint32 {
	return b.numOnes
}

// Contains returns true if i is set.
func (b *Bitmap) Contains(i uint32) bool {
	if i >= b.size {
		return false
	}
	return b.blocks[i/64]&(uint64(1)<<(i%64)) != 0
}

// Add sets i. i must be less than Size().
func (b *Bitmap) Add(i uint32) {
	if i >= b.size {
		panic(fmt.Sprintf("bit %d out of range [0, %d)", i, b.size))
	}
	blk, mask := i/64, uint64(1)<<(i%64)
	if b.blocks[blk]&mask == 0 {
		b.blocks[blk] |= mask
		b.numOnes++
	}
}

// Remove clears i.
func (b *Bitmap) Remove(i uint32) {
	if i >= b.size {
		return
	}
	blk, mask := i/64, uint64(1)<<(i%64)
	if b.blocks[blk]&mask != 0 {
		b.blocks[blk] &^= mask
		b.numOnes--
	}
}

// FirstZero returns the first unset entry in [start, Size()).
func (b *Bitmap) FirstZero(start uint32) (uint32, error) {
	if start >= b.size {
		return 0, fmt.Errorf("start %d exceeds bitmap size %d", start, b.size)
	}
	i := int(start / 64)
	w := b.blocks[i] | ((uint64(1) << (start % 64)) - 1)
	for {
		if w != ^uint64(0) {
			bit := uint32(i*64 + bits.TrailingZeros64(^w))
			if bit >= b.size {
				break
			}
			return bit, nil
		}
		i++
		if i == len(b.blocks) {
			break
		}
		w = b.blocks[i]
	}
	return 0, fmt.Errorf("bitmap has no unset bits")
}
