package binpack

import (
	"github.com/cryptobiu/MegaBlocks/memory"
	"github.com/cryptobiu/MegaBlocks/obliv"
)

// PackCounter simulates the I/O of Pack without touching payload data:
// every merge-split round reads and writes each of its C/2 pairs twice
// (once per output half), for m-1 rounds.
func PackCounter(x *memory.CounterMemory, n, B int, local bool) (*memory.CounterMemory, uint64) {
	c := obliv.ChooseC(n, B)
	m := obliv.Log2Ceil(c) + 1

	result := memory.NewCounterMemory(B, c, local)
	var delta uint64
	if !local {
		ops := uint64(2 * (m - 1) * (c / 2))
		x.AddReads(ops)
		x.AddWrites(ops)
		delta = 2 * ops
	}
	return result, delta
}
