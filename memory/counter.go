package memory

// CounterMemory has the same shape as RemoteMemory but carries no
// payload: reads and writes only bump StubCounters, used by the
// counter-mode ORAMs and the MegaBlocks cost model.
type CounterMemory struct {
	numCells int
	blockCap int
	local    bool
}

// NewCounterMemory allocates a stub memory of the given shape.
func NewCounterMemory(blockCap, numCells int, local bool) *CounterMemory {
	return &CounterMemory{numCells: numCells, blockCap: blockCap, local: local}
}

func (m *CounterMemory) NumCells() int  { return m.numCells }
func (m *CounterMemory) BlockCap() int  { return m.blockCap }
func (m *CounterMemory) IsLocal() bool  { return m.local }
func (m *CounterMemory) SetLocal(l bool) { m.local = l }

// ReadCell records a read at location i without materializing data.
func (m *CounterMemory) ReadCell(i int) error {
	if i < 0 || i >= m.numCells {
		return ErrIndexOutOfRange
	}
	if !m.local {
		StubCounters.Reads++
	}
	return nil
}

// WriteCell records a write at location i without materializing data.
func (m *CounterMemory) WriteCell(i int) error {
	if i < 0 || i >= m.numCells {
		return ErrIndexOutOfRange
	}
	if !m.local {
		StubCounters.Writes++
	}
	return nil
}

// AddReads manually bumps the read counter by n, used where a whole
// batch of accesses is charged at once (e.g. bin-packing's merge-split
// rounds) rather than cell by cell.
func (m *CounterMemory) AddReads(n uint64) {
	if !m.local {
		StubCounters.Reads += n
	}
}

// AddWrites manually bumps the write counter by n.
func (m *CounterMemory) AddWrites(n uint64) {
	if !m.local {
		StubCounters.Writes += n
	}
}

// Concat returns a new CounterMemory whose size is the sum of both
// operands' sizes; counted accesses are not replayed.
func (m *CounterMemory) Concat(other *CounterMemory) *CounterMemory {
	return &CounterMemory{
		numCells: m.numCells + other.numCells,
		blockCap: m.blockCap,
		local:    m.local && other.local,
	}
}

// ConcatAccessCounter mirrors memory.ConcatAccess for the counter shape:
// if the two effective capacities fit in one block the result is a
// single local cell, otherwise sizes are summed.
func ConcatAccessCounter(a, b *CounterMemory, capA, capB, blockSize int) *CounterMemory {
	if capA+capB <= blockSize {
		return &CounterMemory{numCells: 1, blockCap: blockSize, local: true}
	}
	return a.Concat(b)
}
