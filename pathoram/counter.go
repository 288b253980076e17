package pathoram

// CounterConfig parameterizes a counter-mode Path ORAM cost estimate:
// a top-level tree of NumBlocks/BucketSize buckets, recursing into
// smaller position-map trees until a level fits LocalCapacity.
type CounterConfig struct {
	NumBlocks     int
	BucketSize    int // Z
	VecSize       int // leaf labels packed per position-map block
	LocalCapacity int
}

// CounterPathORAM is the counter-only peer to PathORAM: it never
// touches payload, only derives the (reads+writes) induced by one
// access, including the recursive position-map chain, and multiplies
// by the number of accesses requested.
type CounterPathORAM struct {
	cfg    CounterConfig
	levels []int // height of each recursive position-map level's tree; the data tree is charged separately
}

// NewCounterPathORAM builds the recursion-level chain for cfg: each
// entry is the tree height of one recursive position-map level (the
// data tree itself is not part of this chain — CountAccesses charges
// it separately), ending once a level's block count fits LocalCapacity,
// mirroring NewWithAutoPositionMap's recursion.
func NewCounterPathORAM(cfg CounterConfig) *CounterPathORAM {
	c := &CounterPathORAM{cfg: cfg}
	n := cfg.NumBlocks
	for n > cfg.LocalCapacity {
		n = ceilDivP(n, cfg.VecSize)
		c.levels = append(c.levels, treeHeight(n, cfg.BucketSize))
	}
	return c
}

// treeHeight returns the bucket-tree height for numBlocks blocks of
// BucketSize capacity, matching Config.ComputeTreeParams.
func treeHeight(numBlocks, bucketSize int) int {
	numBuckets := ceilDivP(numBlocks, bucketSize)
	height := 1
	for (1<<uint(height))-1 < numBuckets {
		height++
	}
	return height
}

// CountAccesses returns the total (reads+writes) over n accesses: each
// access reads and writes height*Z blocks at the data tree plus, for
// every recursion level of the position map, height*Z blocks at that
// level's own tree.
func (c *CounterPathORAM) CountAccesses(n int) int {
	dataHeight := treeHeight(c.cfg.NumBlocks, c.cfg.BucketSize)
	perAccess := 2 * dataHeight * c.cfg.BucketSize
	for _, h := range c.levels {
		perAccess += 2 * h * c.cfg.BucketSize
	}
	return perAccess * n
}

// Levels reports the number of recursive position-map levels above
// the local one, for tests asserting recursion only kicks in once
// NumBlocks exceeds LocalCapacity.
func (c *CounterPathORAM) Levels() int {
	return len(c.levels)
}
