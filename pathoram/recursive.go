package pathoram

import "encoding/binary"

// unsetLeaf marks a slot in a recursive position map's leaf vector as
// never written.
const unsetLeaf = -1

// RecursivePositionMap implements PositionMap on top of another
// PathORAM whose block payload is a vector of vecSize leaf labels:
// addr splits into an upper block index (addr/vecSize) and an offset
// (addr%vecSize) within that block's vector. Get and Set are meant to
// be called back to back on the same blockID (as PathORAM.access does)
// so a single inner read/write pair backs both halves of the outer
// posMap.Get-then-Set protocol.
type RecursivePositionMap struct {
	inner        *PathORAM
	vecSize      int
	pending      map[int][]int // upperBlock -> decoded vector, staged between Get and Set
	materialized map[int]bool  // upperBlock -> has ever been written through Set
}

// NewRecursivePositionMap builds a recursive position map over an
// inner PathORAM already sized for ceil(blockCount/vecSize) blocks of
// vecSize*4 bytes each.
func NewRecursivePositionMap(inner *PathORAM, vecSize int) *RecursivePositionMap {
	return &RecursivePositionMap{
		inner:        inner,
		vecSize:      vecSize,
		pending:      make(map[int][]int),
		materialized: make(map[int]bool),
	}
}

func unsetVector(vecSize int) []int {
	v := make([]int, vecSize)
	for i := range v {
		v[i] = unsetLeaf
	}
	return v
}

// RecursivePositionMapInner constructs the inner PathORAM for a
// recursive position map over blockCount outer blocks with the given
// leaf-vector width, recursing further if the inner level itself is
// too large for a local position map.
func RecursivePositionMapInner(blockCount, vecSize int, cfg Config, localCapacity int) (*PathORAM, error) {
	inner := Config{
		NumBlocks:        ceilDivP(blockCount, vecSize),
		BlockSize:        vecSize * 4,
		BucketSize:       cfg.BucketSize,
		StashLimit:       cfg.StashLimit,
		EvictionStrategy: cfg.EvictionStrategy,
		ConstantTime:     cfg.ConstantTime,
	}
	return NewWithAutoPositionMap(inner, vecSize, localCapacity)
}

func ceilDivP(a, b int) int {
	return (a + b - 1) / b
}

func encodeLeafVector(v []int) []byte {
	out := make([]byte, len(v)*4)
	for i, leaf := range v {
		binary.BigEndian.PutUint32(out[i*4:], uint32(int32(leaf)))
	}
	return out
}

func decodeLeafVector(data []byte, vecSize int) []int {
	out := make([]int, vecSize)
	for i := range out {
		if (i+1)*4 > len(data) {
			out[i] = unsetLeaf
			continue
		}
		out[i] = int(int32(binary.BigEndian.Uint32(data[i*4:])))
	}
	return out
}

// Get reads (and materializes, if never touched) the leaf vector
// backing blockID's upper block, stages it for the matching Set call,
// and returns the current leaf for blockID.
func (p *RecursivePositionMap) Get(blockID int) (int, bool) {
	upper := blockID / p.vecSize
	offset := blockID % p.vecSize

	raw, err := p.inner.Read(upper)
	var vec []int
	if err != nil || !p.materialized[upper] {
		vec = unsetVector(p.vecSize)
	} else {
		vec = decodeLeafVector(raw, p.vecSize)
	}
	p.pending[upper] = vec

	if vec[offset] == unsetLeaf {
		return 0, false
	}
	return vec[offset], true
}

// Set commits the new leaf for blockID into its upper block's vector,
// using the vector staged by the immediately preceding Get, and writes
// the whole vector back through the inner PathORAM.
func (p *RecursivePositionMap) Set(blockID int, leaf int) {
	upper := blockID / p.vecSize
	offset := blockID % p.vecSize

	vec, ok := p.pending[upper]
	if !ok {
		if p.materialized[upper] {
			if raw, err := p.inner.Read(upper); err == nil {
				vec = decodeLeafVector(raw, p.vecSize)
			}
		}
		if vec == nil {
			vec = unsetVector(p.vecSize)
		}
	}
	vec[offset] = leaf
	delete(p.pending, upper)
	p.materialized[upper] = true
	p.inner.Write(upper, encodeLeafVector(vec))
}

// Size returns the inner PathORAM's allocated block count: the number
// of upper blocks touched so far, each holding the leaves of up to
// vecSize outer addresses. It is not a count of outer addresses.
func (p *RecursivePositionMap) Size() int {
	return p.inner.Size()
}
