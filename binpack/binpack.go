// Package binpack implements oblivious bin-packing: routing 2n tagged
// items through log2(C) merge-split rounds into C bins of capacity B,
// without revealing which items land in which bin beyond what the
// destination-key bits already fix.
package binpack

import (
	"errors"

	"github.com/cryptobiu/MegaBlocks/memory"
	"github.com/cryptobiu/MegaBlocks/obliv"
)

// ErrOverflow is returned when a merge-split round produces a half
// exceeding block capacity B. Spec treats this as fatal and
// unrecoverable: it means the PRF produced a too-skewed placement and
// the construction's parameters are off-spec. Callers must propagate
// it, never retry internally.
var ErrOverflow = errors.New("binpack: overflow, half exceeds block capacity")

// Pack routes the elements of x (2n elements across C = ChooseC(n, B)
// cells, each element's destination bin held in field keyIndex) into a
// memory where every element sits in the cell matching its destination
// bin's top bits.
func Pack(x *memory.RemoteMemory, n, B, keyIndex int, local bool) (*memory.RemoteMemory, error) {
	c := obliv.ChooseC(n, B)
	m := obliv.Log2Ceil(c) + 1
	bitLength := obliv.Log2Ceil(c)

	levels := make([]*memory.RemoteMemory, m)
	levels[0] = x

	for i := 0; i < m-1; i++ {
		next := memory.NewRemoteMemory(B, c, local)
		for j := 0; j < c/2; j++ {
			jPrime := (j / (1 << uint(i))) * (1 << uint(i))
			a0, err := levels[i].ReadCell(j + jPrime)
			if err != nil {
				return nil, err
			}
			a1, err := levels[i].ReadCell(j + jPrime + (1 << uint(i)))
			if err != nil {
				return nil, err
			}
			b0, b1, err := mergeSplit(a0, a1, i, B, bitLength, keyIndex)
			if err != nil {
				return nil, err
			}
			if err := next.WriteCell(2*j, b0); err != nil {
				return nil, err
			}
			if err := next.WriteCell(2*j+1, b1); err != nil {
				return nil, err
			}
		}
		levels[i+1] = next
	}
	return levels[m-1], nil
}

// keyOf extracts the field keyIndex names from an element: 2 is the
// bin tag written by a build/compaction pass, 3 is the source-block
// tag used to reverse-route on extract.
func keyOf(e obliv.Element, keyIndex int) int {
	switch keyIndex {
	case 2:
		return e.Bin
	case 3:
		return e.SrcBlock
	default:
		return e.Bin
	}
}

// mergeSplit merges two blocks and splits their non-dummy elements
// into two bins based on the (i+1)-th most significant bit of the
// element's destination key.
func mergeSplit(a0, a1 memory.Block, i, B, bitLength, keyIndex int) (memory.Block, memory.Block, error) {
	var b0, b1 []obliv.Element
	for j := 0; j < B; j++ {
		if j < len(a0) && !a0[j].IsDummy() {
			if obliv.GetMSBAtIndex(keyOf(a0[j], keyIndex), i+1, bitLength) == 0 {
				b0 = append(b0, a0[j])
			} else {
				b1 = append(b1, a0[j])
			}
		}
		if j < len(a1) && !a1[j].IsDummy() {
			if obliv.GetMSBAtIndex(keyOf(a1[j], keyIndex), i+1, bitLength) == 0 {
				b0 = append(b0, a1[j])
			} else {
				b1 = append(b1, a1[j])
			}
		}
	}
	if len(b0) > B || len(b1) > B {
		return nil, nil, ErrOverflow
	}
	return memory.PadBlock(b0, B), memory.PadBlock(b1, B), nil
}
