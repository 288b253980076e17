package compaction

import (
	"github.com/cryptobiu/MegaBlocks/binpack"
	"github.com/cryptobiu/MegaBlocks/memory"
	"github.com/cryptobiu/MegaBlocks/obliv"
)

// CompactCounter simulates the I/O of Compact without touching payload
// data: one read and two writes per source block, dummy padding writes,
// a counter bin-packing pass, then a scan reading every bucket and
// writing the (smaller) compacted output.
func CompactCounter(n, B, n0 int) *memory.CounterMemory {
	sizeOfX := (n + B - 1) / B
	c := obliv.ChooseC(n, B)
	compactSize := (n0 + B - 1) / B

	memory.StubCounters.Writes += uint64(2 * sizeOfX)
	memory.StubCounters.Reads += uint64(sizeOfX)
	if pad := c - 2*sizeOfX; pad > 0 {
		memory.StubCounters.Writes += uint64(pad)
	}

	xPrime := memory.NewCounterMemory(B, c, false)
	binpack.PackCounter(xPrime, n, B, false)

	memory.StubCounters.Reads += uint64(c)
	memory.StubCounters.Writes += uint64(compactSize)

	return memory.NewCounterMemory(B, compactSize, false)
}
