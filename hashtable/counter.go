package hashtable

import (
	"github.com/cryptobiu/MegaBlocks/binpack"
	"github.com/cryptobiu/MegaBlocks/memory"
	"github.com/cryptobiu/MegaBlocks/obliv"
)

// CounterHashTable mirrors HashTable's I/O shape without touching
// payload data, for counter-mode and cost-model experiments.
type CounterHashTable struct {
	n, B, C int
	table   *memory.CounterMemory
	isBuilt bool
	local   bool
}

// NewCounter creates an empty (not yet built) counter hash table.
func NewCounter(B, n int, local bool) *CounterHashTable {
	c := obliv.ChooseC(n, B)
	return &CounterHashTable{n: n, B: B, C: c, local: local}
}

// Build simulates the tagging/splitting pass feeding the table into
// PackCounter: one read and two writes per source block, plus padding
// writes for the cells bin-packing needs but the input never filled.
func (h *CounterHashTable) Build() {
	if h.C == 1 {
		h.table = memory.NewCounterMemory(h.B, 1, h.local)
		h.isBuilt = true
		return
	}
	sizeOfX := (h.n + h.B - 1) / h.B
	if !h.local {
		memory.StubCounters.Reads += uint64(sizeOfX)
		memory.StubCounters.Writes += uint64(2 * sizeOfX)
		if pad := h.C - 2*sizeOfX; pad > 0 {
			memory.StubCounters.Writes += uint64(pad)
		}
	}
	xPrime := memory.NewCounterMemory(h.B, h.C, h.local)
	h.table, _ = binpack.PackCounter(xPrime, h.n, h.B, h.local)
	h.isBuilt = true
}

// Lookup simulates a single bucket read-then-write.
func (h *CounterHashTable) Lookup() {
	h.table.ReadCell(0)
	h.table.WriteCell(0)
}

// Extract simulates the reverse bin-packing pass and the scan that
// folds buckets back into ceil(n/B) dense blocks.
func (h *CounterHashTable) Extract() *memory.CounterMemory {
	if !h.isBuilt || h.C == 1 {
		return h.table
	}
	size := (h.n + h.B - 1) / h.B
	yBuckets, _ := binpack.PackCounter(h.table, h.n, h.B, h.local)
	if !h.local {
		memory.StubCounters.Reads += uint64(yBuckets.NumCells())
		memory.StubCounters.Writes += uint64(h.C / 2)
	}
	return memory.NewCounterMemory(h.B, size, h.local)
}
