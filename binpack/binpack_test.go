package binpack

import (
	"testing"

	"github.com/cryptobiu/MegaBlocks/memory"
	"github.com/cryptobiu/MegaBlocks/obliv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildInput constructs a C-cell RemoteMemory of block capacity B where
// element idx sits at cell idx/B, position idx%B, tagged with
// destination bin bins[idx] (bins[idx] = idx makes bin packing an
// identity shuffle we can check positions against).
func buildInput(t *testing.T, addrs []int, bins []int, B int) *memory.RemoteMemory {
	t.Helper()
	n := len(addrs)
	c := obliv.ChooseC(n, B)
	cells := make([]memory.Block, c)
	for i := range cells {
		cells[i] = memory.PadBlock(nil, B)
	}
	for idx, addr := range addrs {
		cellIdx := idx / B
		pos := idx % B
		cells[cellIdx][pos] = obliv.New(addr, nil).WithBin(bins[idx])
	}
	return memory.NewRemoteMemoryFrom(B, cells, false)
}

func TestPackRoutesByBinPrefix(t *testing.T) {
	// n=4, B=2 -> C = ChooseC(4,2) = nextpow2(max(ceil(8/2),2)) = 4.
	addrs := []int{10, 11, 12, 13}
	bins := []int{0, 1, 2, 3}
	x := buildInput(t, addrs, bins, 2)

	out, err := Pack(x, 4, 2, 2, false)
	require.NoError(t, err)
	assert.Equal(t, 4, out.NumCells())

	for bin := 0; bin < 4; bin++ {
		cell, err := out.ReadCell(bin)
		require.NoError(t, err)
		found := false
		for _, e := range cell {
			if !e.IsDummy() {
				assert.Equal(t, bin, e.Bin, "element landed in wrong bin")
				found = true
			}
		}
		assert.True(t, found, "bin %d should contain its element", bin)
	}
}

func TestPackOverflow(t *testing.T) {
	// All four real elements target bin 0 with B=2: each output half can
	// hold at most 2, so routing must overflow.
	addrs := []int{1, 2, 3, 4}
	bins := []int{0, 0, 0, 0}
	x := buildInput(t, addrs, bins, 2)

	_, err := Pack(x, 4, 2, 2, false)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestPackCounterMatchesRoundShape(t *testing.T) {
	memory.ResetCounters()
	x := memory.NewCounterMemory(2, obliv.ChooseC(4, 2), false)
	_, delta := PackCounter(x, 4, 2, false)
	c := obliv.ChooseC(4, 2)
	m := obliv.Log2Ceil(c) + 1
	want := uint64(4 * (m - 1) * (c / 2))
	assert.Equal(t, want, delta)
	assert.Equal(t, want/2, memory.StubCounters.Reads)
	assert.Equal(t, want/2, memory.StubCounters.Writes)
}

func TestPackCounterLocalIsFree(t *testing.T) {
	memory.ResetCounters()
	x := memory.NewCounterMemory(2, 4, true)
	_, delta := PackCounter(x, 4, 2, true)
	assert.EqualValues(t, 0, delta)
	assert.EqualValues(t, 0, memory.StubCounters.Reads)
}
