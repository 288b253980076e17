// Package compaction implements the oblivious compaction routine: it
// redistributes a sparse array holding at most n0 real elements into
// ceil(n0/B) dense output blocks, discarding the dummy padding.
package compaction

import (
	"github.com/cryptobiu/MegaBlocks/binpack"
	"github.com/cryptobiu/MegaBlocks/memory"
	"github.com/cryptobiu/MegaBlocks/obliv"
)

// Compact redistributes the n logical elements of x (ceil(n/B) cells)
// into a dense array of ceil(n0/B) blocks, where n0 upper-bounds the
// number of real elements.
func Compact(x *memory.RemoteMemory, n, B, n0 int) (*memory.RemoteMemory, error) {
	key, err := obliv.NewHMACKey()
	if err != nil {
		return nil, err
	}

	sizeOfX := (n + B - 1) / B
	c := obliv.ChooseC(n, B)
	compactSize := (n0 + B - 1) / B

	xPrime := memory.NewRemoteMemory(B, c, false)
	for i := 0; i < sizeOfX; i++ {
		cell, err := x.ReadCell(i)
		if err != nil {
			return nil, err
		}
		tagged := make([]obliv.Element, B)
		for j := 0; j < B; j++ {
			e := cell[j]
			if e.IsDummy() {
				bin, err := obliv.RandomBin(c)
				if err != nil {
					return nil, err
				}
				tagged[j] = e.WithBin(bin)
			} else {
				tagged[j] = e.WithBin(key.Bin(e.Addr, c))
			}
		}
		first := make([]obliv.Element, B/2)
		for idx, item := range tagged[:B/2] {
			first[idx] = item.WithSource(2*i, idx)
		}
		second := make([]obliv.Element, B/2)
		for idx, item := range tagged[B/2:] {
			second[idx] = item.WithSource(2*i+1, idx)
		}
		if err := xPrime.WriteCell(2*i, memory.PadBlock(first, B)); err != nil {
			return nil, err
		}
		if err := xPrime.WriteCell(2*i+1, memory.PadBlock(second, B)); err != nil {
			return nil, err
		}
	}
	for j := 2 * sizeOfX; j < c; j++ {
		if err := xPrime.WriteCell(j, memory.PadBlock(nil, B)); err != nil {
			return nil, err
		}
	}

	yBuckets, err := binpack.Pack(xPrime, n, B, 2, false)
	if err != nil {
		return nil, err
	}

	out := memory.NewRemoteMemory(B, compactSize, false)
	var current []obliv.Element
	curBin := 0
	for i := 0; i < c; i++ {
		cell, err := yBuckets.ReadCell(i)
		if err != nil {
			return nil, err
		}
		for _, e := range cell {
			if e.IsDummy() {
				continue
			}
			current = append(current, obliv.New(e.Addr, e.Value))
			if len(current) == B {
				if err := out.WriteCell(curBin, memory.PadBlock(current, B)); err != nil {
					return nil, err
				}
				curBin++
				current = nil
			}
		}
	}
	if len(current) > 0 {
		if err := out.WriteCell(curBin, memory.PadBlock(current, B)); err != nil {
			return nil, err
		}
		curBin++
	}
	for i := curBin; i < compactSize; i++ {
		if err := out.WriteCell(i, memory.PadBlock(nil, B)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
