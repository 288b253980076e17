// Package memory models the remote-memory substrate every ORAM scheme
// runs against: a fixed-size array of fixed-capacity blocks, where an
// access to a non-local instance is a billable I/O. Two shapes share
// one interface — RemoteMemory actually carries the elements, while
// CounterMemory has the same shape but no payload, for cost-model and
// counter-mode experiments that only care about access counts.
package memory

import (
	"errors"

	"github.com/cryptobiu/MegaBlocks/obliv"
)

// ErrIndexOutOfRange is returned when a cell index falls outside
// [0, NumCells()). Spec treats this as a fatal construction bug, never
// a user error — implementations should not attempt to recover from it.
var ErrIndexOutOfRange = errors.New("memory: cell index out of range")

// Block is an ordered sequence of exactly B elements.
type Block []obliv.Element

// PadBlock returns a copy of elems padded with dummies to length cap.
func PadBlock(elems []obliv.Element, cap int) Block {
	b := make(Block, cap)
	copy(b, elems)
	for i := len(elems); i < cap; i++ {
		b[i] = obliv.Dummy()
	}
	return b
}

// Counters is a pair of process-wide I/O counters.
type Counters struct {
	Reads  uint64
	Writes uint64
}

// RealCounters counts accesses to non-local RemoteMemory instances.
var RealCounters Counters

// StubCounters counts accesses to non-local CounterMemory instances.
var StubCounters Counters

// ResetCounters zeroes both counter pairs. Experiment drivers must call
// this between independent runs.
func ResetCounters() {
	RealCounters = Counters{}
	StubCounters = Counters{}
}

// Accessor is the interface RemoteMemory and CounterMemory both
// satisfy, so the rest of the system can be written against a single
// shape and swap real/counter mode by construction.
type Accessor interface {
	NumCells() int
	BlockCap() int
	IsLocal() bool
}
