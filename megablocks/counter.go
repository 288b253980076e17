package megablocks

import (
	"github.com/cryptobiu/MegaBlocks/hashtable"
	"github.com/cryptobiu/MegaBlocks/memory"
	"github.com/cryptobiu/MegaBlocks/obliv"
)

// CounterORAM is the closed-form MegaBlocks cost model: instead of
// replaying T accesses, it derives lookup, rebuild and compaction
// costs analytically from (N, B, Q, T) and a small table of measured
// build+extract deltas per level and load factor.
type CounterORAM struct {
	cfg Config
	T   int
	L   int

	// buildExtractCosts[i][j] is the measured (reads+writes) of
	// building and extracting a hash table of size calcHTSize(i, j)
	// for non-local level i at load factor j in [1, Q-1].
	buildExtractCosts [][]int
}

// NewCounter builds the cost model for cfg over T accesses, measuring
// build+extract costs level by level via a real counter-mode hash
// table run (never against the caller's real/counter global trace).
func NewCounter(cfg Config, T int) (*CounterORAM, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	L := 0
	for intPow(cfg.Q, L+1) <= cfg.N {
		L++
	}
	co := &CounterORAM{cfg: cfg, T: T, L: L}
	co.buildExtractCosts = make([][]int, L+1)
	for i := 0; i <= L; i++ {
		co.buildExtractCosts[i] = make([]int, cfg.Q)
		for j := 1; j < cfg.Q; j++ {
			co.buildExtractCosts[i][j] = co.measureBuildExtract(co.calcHTSize(i, j))
		}
	}
	return co, nil
}

// measureBuildExtract runs a counter-mode hash table build+extract of
// the given logical size, reads off the (reads+writes) delta it
// produced on the shared stub counters, and restores them to their
// prior value so measuring the cost model never pollutes a caller's
// own counter-mode trace.
func (co *CounterORAM) measureBuildExtract(size int) int {
	if size <= 0 {
		return 0
	}
	snapshot := memory.StubCounters
	cht := hashtable.NewCounter(co.cfg.B, size, false)
	cht.Build()
	cht.Extract()
	delta := int(memory.StubCounters.Reads-snapshot.Reads) + int(memory.StubCounters.Writes-snapshot.Writes)
	memory.StubCounters = snapshot
	return delta
}

// calcHTSize returns the logical element count of level i's hash
// table at load factor j: N at the top level, ceil(q^i*j) otherwise.
func (co *CounterORAM) calcHTSize(i, j int) int {
	if i == co.L {
		return co.cfg.N
	}
	return ceilDiv(intPow(co.cfg.Q, i)*j, 1)
}

// CalcTotalCost sums the lookup, rebuild and compaction costs over T
// accesses, per the closed-form formulas.
func (co *CounterORAM) CalcTotalCost() int {
	return co.lookupCost() + co.rebuildCost() + co.compactionCost()
}

// lookupCost charges 2 operations per "active" access (the level is
// currently built) on every non-top, non-local level, plus 2T for the
// always-built top level.
func (co *CounterORAM) lookupCost() int {
	total := 2 * co.T
	q := co.cfg.Q
	for i := 0; i < co.L; i++ {
		if co.levelIsLocal(i) {
			continue
		}
		cycle := intPow(q, i+1)
		active := cycle - intPow(q, i)
		fullCycles := co.T / cycle
		total += fullCycles * active * 2

		remainder := co.T % cycle
		inactive := intPow(q, i)
		if remainder > inactive {
			total += (remainder - inactive) * 2
		}
	}
	return total
}

// rebuildCost sums, for each level i < L, (q-1) builds+extracts at
// level i plus (q-1) extractions of every lower level, over full
// cycles and a partial remainder; level L is charged once per
// T/q^L top-level rebuild.
func (co *CounterORAM) rebuildCost() int {
	q := co.cfg.Q
	var total int
	for i := 0; i < co.L; i++ {
		if co.levelIsLocal(i) {
			continue
		}
		cycle := intPow(q, i+1)
		fullCycles := co.T / cycle
		perCycle := (q - 1) * co.buildExtractCosts[i][q-1]
		for k := 0; k < i; k++ {
			perCycle += (q - 1) * co.extractOnlyCost(k)
		}
		total += fullCycles * perCycle

		remCycle := co.T % cycle
		r := remCycle / intPow(q, i)
		if r > 0 {
			total += r * co.buildExtractCosts[i][min(r, q-1)]
		}
	}
	if co.L >= 0 {
		topCycles := co.T / intPow(q, co.L)
		perCycle := co.buildExtractCosts[co.L][q-1]
		for k := 0; k < co.L; k++ {
			perCycle += co.extractOnlyCost(k)
		}
		total += topCycles * perCycle
	}
	return total
}

// extractOnlyCost approximates the extract-only share of a level's
// measured build+extract delta as half the total.
func (co *CounterORAM) extractOnlyCost(i int) int {
	if i > co.L || len(co.buildExtractCosts[i]) <= 1 {
		return 0
	}
	return co.buildExtractCosts[i][co.cfg.Q-1] / 2
}

// compactionCost charges the top-level compaction, triggered once every
// q^L accesses, i.e. T/q^L times over T accesses.
func (co *CounterORAM) compactionCost() int {
	q, B := co.cfg.Q, co.cfg.B
	triggers := co.T / intPow(q, co.L)
	if triggers == 0 {
		return 0
	}
	var inp int
	for i := 0; i < co.L; i++ {
		inp += co.calcHTSize(i, q-1)
	}
	inpBlocks := ceilDiv(inp, B)
	c := obliv.NextPowerOfTwoGreaterOrEqual(max(ceilDiv(2*inpBlocks, B), 2))
	outputSize := ceilDiv(co.cfg.N, B)
	logC := obliv.Log2Ceil(c)
	perCompaction := outputSize + 2*c*logC + c + 3*inpBlocks - 2*inpBlocks + c
	return triggers * perCompaction
}

func (co *CounterORAM) levelIsLocal(i int) bool {
	return fitsLocalBudget(co.cfg, i)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
