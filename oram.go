// Package oram is the construction factory: given a Choice tag and a
// common set of Params, it builds the concrete executing ORAM or
// counter-mode cost peer the caller asked for.
package oram

import (
	"errors"

	"github.com/cryptobiu/MegaBlocks/futorama"
	"github.com/cryptobiu/MegaBlocks/megablocks"
	"github.com/cryptobiu/MegaBlocks/obliv"
	"github.com/cryptobiu/MegaBlocks/pathoram"
)

// Op is the operation requested of an Accessor; aliased to obliv.Op so
// every package in the module shares one vocabulary.
type Op = obliv.Op

const (
	ReadOperation  = obliv.ReadOperation
	WriteOperation = obliv.WriteOperation
)

// Choice selects which scheme and execution mode New constructs.
type Choice string

const (
	ChoiceSimMegaBlocks   Choice = "sim-mb"
	ChoiceRealMegaBlocks  Choice = "real-mb"
	ChoiceRealPath        Choice = "real-path"
	ChoiceCounterPath     Choice = "cnt-path"
	ChoiceCounterMega     Choice = "cnt-mb"
	ChoiceCounterFutORAMa Choice = "cnt-fut"
)

// ErrUnknownChoice is returned by New for any Choice it doesn't
// recognize.
var ErrUnknownChoice = errors.New("oram: unknown choice")

// Params is the common parameter set every construction draws from;
// not every field applies to every Choice.
type Params struct {
	N, B, Q, T  int
	LocalMemory int
	BlockBits   int // b, position-map block width in bits
	WordBits    int // w, FutORAMa bucket width
}

// Accessor is implemented by every executing (non-counter) ORAM.
type Accessor interface {
	Access(op Op, addr int, data []byte) ([]byte, error)
}

// CostEstimator is implemented by every counter-only ORAM or peer.
type CostEstimator interface {
	CalcTotalCost() int
}

// New constructs the concrete scheme named by choice from p. real-mb
// and real-path return something satisfying Accessor. sim-mb returns
// a *megablocks.SimulationORAM, whose Access(addr int) never returns a
// value since it never materializes payload — only the induced I/O
// shape is real. The counter choices (cnt-path, cnt-mb, cnt-fut)
// return something satisfying CostEstimator, except cnt-path, whose
// natural surface is CountAccesses(n int) int rather than a single
// CalcTotalCost (a Path ORAM access's cost doesn't depend on which
// access it is, so the caller picks how many to cost out).
func New(choice Choice, p Params) (any, error) {
	switch choice {
	case ChoiceRealMegaBlocks:
		return megablocks.New(megablocks.Config{N: p.N, B: p.B, Q: p.Q, LocalMemory: p.LocalMemory})

	case ChoiceSimMegaBlocks:
		return megablocks.NewSimulation(megablocks.Config{N: p.N, B: p.B, Q: p.Q, LocalMemory: p.LocalMemory})

	case ChoiceCounterMega:
		return megablocks.NewCounter(megablocks.Config{N: p.N, B: p.B, Q: p.Q, LocalMemory: p.LocalMemory}, p.T)

	case ChoiceRealPath:
		blockBits := p.BlockBits
		if blockBits <= 0 {
			blockBits = 8
		}
		vecSize := blockBits / 4
		if vecSize <= 0 {
			vecSize = 1
		}
		o, err := pathoram.NewWithAutoPositionMap(pathoram.Config{
			NumBlocks: p.N,
			BlockSize: p.B,
		}, vecSize, p.LocalMemory)
		if err != nil {
			return nil, err
		}
		return &pathORAMAdapter{o}, nil

	case ChoiceCounterPath:
		vecSize := p.BlockBits / 4
		if vecSize <= 0 {
			vecSize = 1
		}
		return pathoram.NewCounterPathORAM(pathoram.CounterConfig{
			NumBlocks:     p.N,
			BucketSize:    p.B,
			VecSize:       vecSize,
			LocalCapacity: p.LocalMemory,
		}), nil

	case ChoiceCounterFutORAMa:
		return futorama.New(futorama.Config{N: p.N, W: p.WordBits, B: p.LocalMemory}), nil

	default:
		return nil, ErrUnknownChoice
	}
}

// pathORAMAdapter satisfies Accessor on top of PathORAM's
// nil-means-read Access(blockID, newData) surface.
type pathORAMAdapter struct {
	*pathoram.PathORAM
}

func (a *pathORAMAdapter) Access(op Op, addr int, data []byte) ([]byte, error) {
	if op == WriteOperation {
		return a.PathORAM.Access(addr, data)
	}
	return a.PathORAM.Access(addr, nil)
}
