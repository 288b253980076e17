package pathoram

import "crypto/rand"

// NewWithAutoPositionMap builds a PathORAM whose position map is local
// when cfg.NumBlocks fits localCapacity, or otherwise is itself a
// PathORAM (recursing as many levels as needed) whose block payload is
// a vector of vecSize leaf labels, per spec.md §4.7.
//
// Every tree in the construction (the data tree and, recursively, each
// position-map level) encrypts its blocks with AES-GCM under its own
// fresh random key — the caller has no key material to manage across
// process lifetimes, matching the single-run measurement harness this
// package serves.
func NewWithAutoPositionMap(cfg Config, vecSize, localCapacity int) (*PathORAM, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	var posMap PositionMap
	if cfg.NumBlocks <= localCapacity {
		posMap = NewInMemoryPositionMap()
	} else {
		inner, err := RecursivePositionMapInner(cfg.NumBlocks, vecSize, cfg, localCapacity)
		if err != nil {
			return nil, err
		}
		posMap = NewRecursivePositionMap(inner, vecSize)
	}

	_, _, totalBuckets := cfg.ComputeTreeParams()
	storage := NewRemoteStorage(totalBuckets, cfg.BucketSize, cfg.BlockSize, false)

	key := make([]byte, aesKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	enc, err := NewAESGCMEncryptor(key)
	if err != nil {
		return nil, err
	}
	return New(cfg, storage, posMap, enc)
}
