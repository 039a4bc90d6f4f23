package gridex

import (
	"math/bits"

	"github.com/holiman/uint256"
)

// Bitmap marks the grids that have a pool with outstanding shares. Each
// 256-bit word covers 256 grids: grid g is bit g%256 of word g/256.
type Bitmap struct {
	words []uint256.Int
}

// NewBitmap allocates a bitmap able to hold size grids.
func NewBitmap(size int) *Bitmap {
	return &Bitmap{words: make([]uint256.Int, (size+255)/256)}
}

// limb returns the 64-bit limb holding grid. uint256.Int stores its limbs
// little-endian, so limb i carries bits 64*i through 64*i+63 of the word.
func (b *Bitmap) limb(grid int) *uint64 {
	return &b.words[grid>>8][(grid>>6)&3]
}

func (b *Bitmap) limbAt(i int) uint64 {
	return b.words[i>>2][i&3]
}

// Set marks grid as initialized.
func (b *Bitmap) Set(grid int) {
	*b.limb(grid) |= 1 << uint(grid&63)
}

// Clear marks grid as empty.
func (b *Bitmap) Clear(grid int) {
	*b.limb(grid) &^= 1 << uint(grid&63)
}

// IsSet reports whether grid is marked.
func (b *Bitmap) IsSet(grid int) bool {
	return *b.limb(grid)&(1<<uint(grid&63)) != 0
}

// Words returns a copy of the 256-bit words.
func (b *Bitmap) Words() []*uint256.Int {
	out := make([]*uint256.Int, len(b.words))
	for i := range b.words {
		out[i] = new(uint256.Int).Set(&b.words[i])
	}
	return out
}

// NextUp returns the smallest marked grid in [from, to].
func (b *Bitmap) NextUp(from, to int) (int, bool) {
	if from > to {
		return 0, false
	}
	for i := from >> 6; i <= to>>6; i++ {
		w := b.limbAt(i)
		if i == from>>6 {
			w &= ^uint64(0) << uint(from&63)
		}
		if w == 0 {
			continue
		}
		grid := i<<6 + bits.TrailingZeros64(w)
		if grid > to {
			return 0, false
		}
		return grid, true
	}
	return 0, false
}

// NextDown returns the largest marked grid in [to, from].
func (b *Bitmap) NextDown(from, to int) (int, bool) {
	if from < to {
		return 0, false
	}
	for i := from >> 6; i >= to>>6; i-- {
		w := b.limbAt(i)
		if i == from>>6 {
			w &= ^uint64(0) >> uint(63-from&63)
		}
		if w == 0 {
			continue
		}
		grid := i<<6 + 63 - bits.LeadingZeros64(w)
		if grid < to {
			return 0, false
		}
		return grid, true
	}
	return 0, false
}
