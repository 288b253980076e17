package megablocks

import "github.com/cryptobiu/MegaBlocks/hashtable"

// simLevel mirrors level but backs onto a counter-mode hash table: no
// payload is ever materialized, only the access pattern's shape.
type simLevel struct {
	table   *hashtable.CounterHashTable
	built   bool
	local   bool
	loadFac int
}

// SimulationORAM runs the real MegaBlocks access state machine —
// genuine load-factor bookkeeping, genuine level selection and reset —
// but every hash table operation lands on stub (counter) memory, so
// the induced I/O is counted on memory.StubCounters without ever
// moving a byte of payload.
type SimulationORAM struct {
	cfg    Config
	L      int
	levels []simLevel
}

// NewSimulation constructs a simulation-mode MegaBlocks instance. The
// top level starts built and full, exactly as in real mode.
func NewSimulation(cfg Config) (*SimulationORAM, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	L := 0
	for intPow(cfg.Q, L+1) <= cfg.N {
		L++
	}

	s := &SimulationORAM{cfg: cfg, L: L, levels: make([]simLevel, L+1)}
	for i := 0; i <= L; i++ {
		s.levels[i].local = fitsLocalBudget(cfg, i)
	}
	top := hashtable.NewCounter(cfg.B, cfg.N, s.levels[L].local)
	top.Build()
	s.levels[L] = simLevel{table: top, built: true, local: s.levels[L].local, loadFac: cfg.Q - 1}
	return s, nil
}

func (s *SimulationORAM) effectiveSize(i int) int {
	switch {
	case i == 0:
		return s.levels[0].loadFac
	case i == s.L:
		return s.cfg.N
	default:
		return ceilDiv(intPow(s.cfg.Q, i)*s.levels[i].loadFac, 1)
	}
}

// Access runs one MegaBlocks access over stub memory: the probe,
// select, extract/concat and rebuild steps all execute for real, but
// no value is ever read or written — only I/O shape matters.
func (s *SimulationORAM) Access(addr int) {
	for i := 0; i <= s.L; i++ {
		if !s.levels[i].built {
			continue
		}
		s.levels[i].table.Lookup()
	}

	j := s.L
	for i := 0; i < s.L; i++ {
		if s.levels[i].loadFac < s.cfg.Q-1 {
			j = i
			break
		}
	}

	for i := 0; i <= j; i++ {
		if !s.levels[i].built {
			continue
		}
		s.levels[i].table.Extract()
	}

	if j < s.L {
		newSize := intPow(s.cfg.Q, j) * (s.levels[j].loadFac + 1)
		s.rebuildLevel(j, newSize)
		s.levels[j].loadFac++
	} else {
		s.rebuildLevel(s.L, s.cfg.N)
		s.levels[s.L].loadFac = s.cfg.Q - 1
	}

	for i := 0; i < j; i++ {
		s.levels[i] = simLevel{local: s.levels[i].local}
	}
}

func (s *SimulationORAM) rebuildLevel(i, size int) {
	ht := hashtable.NewCounter(s.cfg.B, size, s.levels[i].local)
	ht.Build()
	s.levels[i].table = ht
	s.levels[i].built = true
}

// LoadFactors returns a snapshot of the current per-level load
// factors, mirroring ORAM.LoadFactors for cross-mode comparison.
func (s *SimulationORAM) LoadFactors() []int {
	out := make([]int, len(s.levels))
	for i, l := range s.levels {
		out[i] = l.loadFac
	}
	return out
}
