// Package megablocks implements the MegaBlocks hierarchical ORAM: a
// geometrically-growing stack of non-recurrent oblivious hash tables,
// an access state machine that decides which levels collapse on every
// touch, and a compaction step that keeps the top level from
// overflowing.
package megablocks

import (
	"errors"
	"math"

	"github.com/cryptobiu/MegaBlocks/compaction"
	"github.com/cryptobiu/MegaBlocks/hashtable"
	"github.com/cryptobiu/MegaBlocks/memory"
	"github.com/cryptobiu/MegaBlocks/obliv"
)

// ErrInvalidConfig is returned by New when N, B or Q are non-positive,
// or Q is 1 (no expansion, no hierarchy).
var ErrInvalidConfig = errors.New("megablocks: invalid configuration")

// Config parameterizes a MegaBlocks instance.
type Config struct {
	N, B, Q     int
	LocalMemory int // server blocks of local budget for small levels
}

// Validate checks c and returns a normalized copy.
func (c Config) Validate() (Config, error) {
	if c.N <= 0 || c.B <= 0 || c.Q <= 1 {
		return Config{}, ErrInvalidConfig
	}
	return c, nil
}

// level holds one tier of the hierarchy.
type level struct {
	table   *hashtable.HashTable
	built   bool
	local   bool
	loadFac int
}

// ORAM is the real, fully-executing MegaBlocks instance.
type ORAM struct {
	cfg    Config
	L      int
	levels []level
}

// New constructs and initializes a MegaBlocks ORAM per cfg: the top
// level is pre-built from the identity mapping and set to full load,
// and the smallest levels are greedily marked local while they fit
// cfg.LocalMemory.
func New(cfg Config) (*ORAM, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	L := int(math.Log(float64(cfg.N)) / math.Log(float64(cfg.Q)))

	o := &ORAM{cfg: cfg, L: L, levels: make([]level, L+1)}
	for i := 0; i <= L; i++ {
		o.levels[i].local = fitsLocalBudget(cfg, i)
	}

	topSize := cfg.N
	topCells := (topSize + cfg.B - 1) / cfg.B
	top := memory.NewRemoteMemory(cfg.B, topCells, o.levels[L].local)
	top.InitIdentity()
	ht, err := hashtable.New(top, cfg.B, topSize, o.levels[L].local)
	if err != nil {
		return nil, err
	}
	if err := ht.Build(); err != nil {
		return nil, err
	}
	o.levels[L] = level{table: ht, built: true, local: o.levels[L].local, loadFac: cfg.Q - 1}
	return o, nil
}

// fitsLocalBudget reports whether level i belongs to the greedily
// assigned local prefix: the smallest levels, while the cumulative
// cost ceil(q^i*(q-1)/B) stays within cfg.LocalMemory.
func fitsLocalBudget(cfg Config, i int) bool {
	q, B := cfg.Q, cfg.B
	var cumulative int
	for k := 0; k <= i; k++ {
		cumulative += ceilDiv(intPow(q, k)*(q-1), B)
		if cumulative > cfg.LocalMemory {
			return false
		}
	}
	return true
}

func intPow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// effectiveSize returns the logical element count at level i: the raw
// load factor at level 0, N at the top level, or ceil(q^i*loadFac)
// elsewhere.
func (o *ORAM) effectiveSize(i int) int {
	switch {
	case i == 0:
		return o.levels[0].loadFac
	case i == o.L:
		return o.cfg.N
	default:
		return ceilDiv(intPow(o.cfg.Q, i)*o.levels[i].loadFac, 1)
	}
}

// Access runs the six-step MegaBlocks state machine for one
// (op, addr, data) request and returns the value observed before this
// access (the previous value on a write, the stored value on a read).
func (o *ORAM) Access(op obliv.Op, addr int, data []byte) ([]byte, error) {
	// 1. Probe: every built level gets exactly one lookup; the first
	// unresolved one uses the real address, every later one a dummy.
	var found []byte
	resolved := false
	for i := 0; i <= o.L; i++ {
		if !o.levels[i].built {
			continue
		}
		key := addr
		if resolved {
			key = obliv.DummyAddr
		}
		e, err := o.levels[i].table.Lookup(key)
		if err != nil {
			return nil, err
		}
		if !resolved && !e.IsDummy() {
			found = e.Value
			resolved = true
		}
	}

	// 2. Synthesize a fresh local record for the value going back in.
	newValue := found
	if op == obliv.WriteOperation {
		newValue = data
	}
	u := memory.NewRemoteMemory(o.cfg.B, 1, true)
	if err := u.WriteCell(0, memory.PadBlock([]obliv.Element{obliv.New(addr, newValue)}, o.cfg.B)); err != nil {
		return nil, err
	}

	// 3. Select the target level.
	j := o.L
	for i := 0; i < o.L; i++ {
		if o.levels[i].loadFac < o.cfg.Q-1 {
			j = i
			break
		}
	}

	// 4. Extract and concatenate every level 0..j that is built.
	prevSize := o.cfg.B // size of u so far, treated as one block's worth
	for i := 0; i <= j; i++ {
		if !o.levels[i].built {
			continue
		}
		extracted, err := o.levels[i].table.Extract()
		if err != nil {
			return nil, err
		}
		sz := o.effectiveSize(i)
		u = memory.ConcatAccess(u, extracted, prevSize, sz, o.cfg.B)
		prevSize += sz
	}

	// 5. Insert into the target level, compacting first if the top
	// level is already full.
	if j < o.L {
		if err := o.rebuildLevel(j, u); err != nil {
			return nil, err
		}
		o.levels[j].loadFac++
	} else {
		if o.levels[o.L].loadFac == o.cfg.Q-1 && o.levels[o.L].built {
			compactCells := ceilDiv(o.cfg.N, o.cfg.B)
			physicalSize := u.NumCells() * o.cfg.B
			compacted, err := compaction.Compact(u, physicalSize, o.cfg.B, compactCells*o.cfg.B)
			if err != nil {
				return nil, err
			}
			u = compacted
		}
		if err := o.rebuildLevel(o.L, u); err != nil {
			return nil, err
		}
		o.levels[o.L].loadFac = o.cfg.Q - 1
	}

	// 6. Reset levels 0..j-1; level j keeps the table step 5 just built.
	for i := 0; i < j; i++ {
		o.levels[i] = level{local: o.levels[i].local}
	}

	return found, nil
}

// rebuildLevel replaces level i's table with a freshly built HT over
// source, whose logical size is taken directly from its physical
// capacity so the hash table never reads past what source holds.
func (o *ORAM) rebuildLevel(i int, source *memory.RemoteMemory) error {
	source.SetLocal(o.levels[i].local)
	size := source.NumCells() * o.cfg.B
	ht, err := hashtable.New(source, o.cfg.B, size, o.levels[i].local)
	if err != nil {
		return err
	}
	if err := ht.Build(); err != nil {
		return err
	}
	o.levels[i].table = ht
	o.levels[i].built = true
	return nil
}

// LoadFactors returns a snapshot of the current per-level load
// factors, for tests asserting the monotonicity invariant.
func (o *ORAM) LoadFactors() []int {
	out := make([]int, len(o.levels))
	for i, l := range o.levels {
		out[i] = l.loadFac
	}
	return out
}

// Built reports whether level i currently holds a built table.
func (o *ORAM) Built(i int) bool {
	return o.levels[i].built
}
