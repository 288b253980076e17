// Package hashtable implements the non-recurrent oblivious hash table
// described in the MegaBlocks paper: build once from an input array,
// then serve lookups (each element tolerates at most one, enforced by
// marking it accessed), and at most one extract that hands back the
// surviving elements.
package hashtable

import (
	"sort"

	"github.com/cryptobiu/MegaBlocks/binpack"
	"github.com/cryptobiu/MegaBlocks/memory"
	"github.com/cryptobiu/MegaBlocks/obliv"
)

// HashTable is an oblivious hash table over n elements of block
// capacity B, with C = ChooseC(n, B) buckets.
type HashTable struct {
	X       *memory.RemoteMemory
	n, B, C int
	key     *obliv.HMACKey
	table   *memory.RemoteMemory
	isBuilt bool
	local   bool
}

// New creates an empty (not yet built) hash table over x.
func New(x *memory.RemoteMemory, B, n int, local bool) (*HashTable, error) {
	key, err := obliv.NewHMACKey()
	if err != nil {
		return nil, err
	}
	x.SetLocal(local)
	c := obliv.ChooseC(n, B)
	return &HashTable{
		X:     x,
		n:     n,
		B:     B,
		C:     c,
		key:   key,
		table: memory.NewRemoteMemory(B, c, local),
		local: local,
	}, nil
}

// IsBuilt reports whether Build has run.
func (h *HashTable) IsBuilt() bool { return h.isBuilt }

// Build constructs the oblivious hash table from X: tag each element
// with its destination bin (PRF of key, or random for dummies), tag it
// with its source block/position, split each block in half, and route
// everything through oblivious bin-packing.
func (h *HashTable) Build() error {
	if h.C == 1 {
		h.table = h.X
		h.isBuilt = true
		return nil
	}

	sizeOfX := (h.n + h.B - 1) / h.B
	xPrime := memory.NewRemoteMemory(h.B, h.C, h.local)
	for i := 0; i < sizeOfX; i++ {
		cell, err := h.X.ReadCell(i)
		if err != nil {
			return err
		}
		tagged := make([]obliv.Element, h.B)
		for j := 0; j < h.B; j++ {
			e := cell[j]
			if e.IsDummy() {
				bin, err := obliv.RandomBin(h.C)
				if err != nil {
					return err
				}
				tagged[j] = e.WithBin(bin)
			} else {
				tagged[j] = e.WithBin(h.key.Bin(e.Addr, h.C))
			}
		}
		first := make([]obliv.Element, h.B/2)
		for idx, item := range tagged[:h.B/2] {
			first[idx] = item.WithSource(2*i, idx)
		}
		second := make([]obliv.Element, h.B/2)
		for idx, item := range tagged[h.B/2:] {
			second[idx] = item.WithSource(2*i+1, idx)
		}
		if err := xPrime.WriteCell(2*i, memory.PadBlock(first, h.B)); err != nil {
			return err
		}
		if err := xPrime.WriteCell(2*i+1, memory.PadBlock(second, h.B)); err != nil {
			return err
		}
	}
	for j := 2 * sizeOfX; j < h.C; j++ {
		if err := xPrime.WriteCell(j, memory.PadBlock(nil, h.B)); err != nil {
			return err
		}
	}

	table, err := binpack.Pack(xPrime, h.n, h.B, 2, h.local)
	if err != nil {
		return err
	}
	h.table = table
	h.isBuilt = true
	return nil
}

// Lookup reads the bucket holding k (or a uniformly random bucket, for
// the dummy key), marks any matching element as accessed, writes the
// bucket back unconditionally, and returns the (k, v) pair or a dummy.
// The single read+write is the core I/O invariant: obliviousness of
// which bucket was probed follows from bucket = PRF(k).
func (h *HashTable) Lookup(k int) (obliv.Element, error) {
	var itemKey int
	if k == obliv.DummyAddr {
		bin, err := obliv.RandomBin(h.C)
		if err != nil {
			return obliv.Dummy(), err
		}
		itemKey = bin
	} else {
		itemKey = h.key.Bin(k, h.C)
	}

	cell, err := h.table.ReadCell(itemKey)
	if err != nil {
		return obliv.Dummy(), err
	}
	result := obliv.Dummy()
	if k != obliv.DummyAddr {
		for i := range cell {
			if cell[i].Addr == k && !cell[i].Accessed {
				result = obliv.New(cell[i].Addr, cell[i].Value)
				cell[i] = cell[i].WithAccessed()
				break
			}
		}
	}
	if err := h.table.WriteCell(itemKey, cell); err != nil {
		return obliv.Dummy(), err
	}
	return result, nil
}

// Extract reverses the bin-packing routing and returns the surviving
// (non-accessed) elements packed back into ceil(n/B) blocks.
func (h *HashTable) Extract() (*memory.RemoteMemory, error) {
	if !h.isBuilt {
		return h.X, nil
	}
	size := (h.n + h.B - 1) / h.B
	if h.C == 1 {
		cell, err := h.table.ReadCell(0)
		if err != nil {
			return nil, err
		}
		out := make(memory.Block, len(cell))
		for i, e := range cell {
			if e.Accessed {
				out[i] = obliv.Dummy()
			} else {
				out[i] = e
			}
		}
		result := memory.NewRemoteMemory(h.B, 1, h.local)
		if err := result.WriteCell(0, out); err != nil {
			return nil, err
		}
		return result, nil
	}

	yBuckets, err := binpack.Pack(h.table, h.n, h.B, 3, h.local)
	if err != nil {
		return nil, err
	}
	xPrime := memory.NewRemoteMemory(h.B, h.C/2, h.local)
	for i := 0; i < h.C/2; i++ {
		y0, err := yBuckets.ReadCell(2 * i)
		if err != nil {
			return nil, err
		}
		y1, err := yBuckets.ReadCell(2*i + 1)
		if err != nil {
			return nil, err
		}
		sortBySource(y0)
		sortBySource(y1)

		cell := make(memory.Block, 0, h.B)
		cell = append(cell, maskAccessed(y0, h.B/2)...)
		cell = append(cell, maskAccessed(y1, h.B/2)...)
		if err := xPrime.WriteCell(i, cell); err != nil {
			return nil, err
		}
	}
	return trim(xPrime, size), nil
}

// sortBySource restores the original intra-half ordering tagged during
// Build, so extract can reconstruct the original block layout.
func sortBySource(cell memory.Block) {
	sort.SliceStable(cell, func(i, j int) bool {
		pi, pj := cell[i].SrcPos, cell[j].SrcPos
		hi, hj := cell[i].HasSrc, cell[j].HasSrc
		if hi != hj {
			return hi // tagged elements sort before untagged filler
		}
		return pi < pj
	})
}

// maskAccessed returns the first `limit` elements of cell, with any
// accessed element turned into a dummy.
func maskAccessed(cell memory.Block, limit int) memory.Block {
	out := make(memory.Block, 0, limit)
	for i := 0; i < limit && i < len(cell); i++ {
		e := cell[i]
		if e.Accessed {
			out = append(out, obliv.Dummy())
		} else {
			out = append(out, obliv.New(e.Addr, e.Value))
		}
	}
	return out
}

// trim truncates xPrime to the first size cells.
func trim(x *memory.RemoteMemory, size int) *memory.RemoteMemory {
	cells := make([]memory.Block, size)
	for i := 0; i < size; i++ {
		c, _ := x.ReadCell(i)
		cells[i] = c
	}
	return memory.NewRemoteMemoryFrom(x.BlockCap(), cells, x.IsLocal())
}
