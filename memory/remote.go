package memory

import (
	"strconv"

	"github.com/cryptobiu/MegaBlocks/obliv"
)

// RemoteMemory is a fixed-size array of fixed-capacity blocks. Reads
// and writes to a non-local instance bump the process-wide RealCounters
// pair; local instances are free.
type RemoteMemory struct {
	cells    []Block
	blockCap int
	local    bool
}

// NewRemoteMemory allocates a RemoteMemory of the given size, every
// cell padded with dummies.
func NewRemoteMemory(blockCap, size int, local bool) *RemoteMemory {
	cells := make([]Block, size)
	for i := range cells {
		cells[i] = PadBlock(nil, blockCap)
	}
	return &RemoteMemory{cells: cells, blockCap: blockCap, local: local}
}

// NewRemoteMemoryFrom wraps a pre-built set of cells (each already
// exactly blockCap elements long).
func NewRemoteMemoryFrom(blockCap int, cells []Block, local bool) *RemoteMemory {
	return &RemoteMemory{cells: cells, blockCap: blockCap, local: local}
}

func (m *RemoteMemory) NumCells() int  { return len(m.cells) }
func (m *RemoteMemory) BlockCap() int  { return m.blockCap }
func (m *RemoteMemory) IsLocal() bool  { return m.local }
func (m *RemoteMemory) SetLocal(l bool) { m.local = l }

// ReadCell returns the block at location i. Out-of-range access is
// fatal: it signals a construction bug, not recoverable user error.
func (m *RemoteMemory) ReadCell(i int) (Block, error) {
	if i < 0 || i >= len(m.cells) {
		return nil, ErrIndexOutOfRange
	}
	if !m.local {
		RealCounters.Reads++
	}
	return m.cells[i], nil
}

// WriteCell overwrites the block at location i.
func (m *RemoteMemory) WriteCell(i int, b Block) error {
	if i < 0 || i >= len(m.cells) {
		return ErrIndexOutOfRange
	}
	if !m.local {
		RealCounters.Writes++
	}
	m.cells[i] = b
	return nil
}

// InitIdentity fills every cell i with the identity mapping
// addr -> "d"+addr used to seed the top MegaBlocks level at init.
func (m *RemoteMemory) InitIdentity() {
	for i := range m.cells {
		block := make(Block, m.blockCap)
		for j := 0; j < m.blockCap; j++ {
			addr := i*m.blockCap + j
			block[j] = obliv.New(addr, []byte("d"+strconv.Itoa(addr)))
		}
		m.cells[i] = block
	}
}

// Concat physically concatenates two RemoteMemory instances of equal
// block capacity into one of size s1+s2.
func (m *RemoteMemory) Concat(other *RemoteMemory) *RemoteMemory {
	cells := make([]Block, 0, len(m.cells)+len(other.cells))
	cells = append(cells, m.cells...)
	cells = append(cells, other.cells...)
	return &RemoteMemory{cells: cells, blockCap: m.blockCap, local: m.local && other.local}
}

// ConcatAccess merges two memories the way an access's extract step
// does: if the two effective capacities fit in a single block, the
// blocks are interleaved into one local cell; otherwise the memories
// are physically concatenated.
func ConcatAccess(a, b *RemoteMemory, capA, capB, blockSize int) *RemoteMemory {
	if capA+capB <= blockSize {
		merged := MergeBlocks(a.cells[0], b.cells[0], blockSize)
		return &RemoteMemory{cells: []Block{merged}, blockCap: blockSize, local: true}
	}
	return a.Concat(b)
}

// MergeBlocks interleaves the non-dummy entries of two parallel blocks,
// preserving each block's internal order, and pads the result with
// dummies to length blockSize.
func MergeBlocks(b1, b2 Block, blockSize int) Block {
	out := make([]obliv.Element, 0, blockSize)
	for i := 0; i < blockSize; i++ {
		if i < len(b1) && !b1[i].IsDummy() {
			out = append(out, b1[i])
		}
		if i < len(b2) && !b2[i].IsDummy() {
			out = append(out, b2[i])
		}
	}
	return PadBlock(out, blockSize)
}
