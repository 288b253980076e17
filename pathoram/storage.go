package pathoram

import (
	"encoding/binary"

	"github.com/cryptobiu/MegaBlocks/memory"
	"github.com/cryptobiu/MegaBlocks/obliv"
)

// Storage provides block-level access to the ORAM tree structure.
// Implementations may store data in memory, files, or remote services.
type Storage interface {
	// ReadBucket returns all blocks in the bucket at the given index.
	ReadBucket(idx int) ([]Block, error)

	// WriteBucket writes all blocks to the bucket at the given index.
	WriteBucket(idx int, blocks []Block) error

	// NumBuckets returns the total number of buckets in storage.
	NumBuckets() int

	// BucketSize returns the number of block slots per bucket.
	BucketSize() int

	// BlockSize returns the size of each block's data in bytes.
	BlockSize() int
}

// Block represents a single data block in storage.
// For encrypted storage, Data contains ciphertext.
type Block struct {
	ID   int    // Block ID (-1 = empty/dummy)
	Leaf int    // Assigned leaf position
	Data []byte // Block data (plaintext or ciphertext depending on encryptor)
}

// RemoteStorage backs a Path ORAM tree with the module's shared
// counted-memory substrate: every bucket is one cell of a
// memory.RemoteMemory, so a real ReadBucket/WriteBucket pair bumps
// memory.RealCounters exactly the way MegaBlocks' hash table levels
// do, and real-path's induced (reads+writes) becomes directly
// comparable to cnt-path's closed-form estimate over the same
// RemoteMemory accounting. A bucket slot is encoded as one
// obliv.Element: Addr carries the block ID (obliv.DummyAddr for an
// empty slot) and Value carries the leaf label followed by the
// block's stored bytes.
type RemoteStorage struct {
	mem        *memory.RemoteMemory
	bucketSize int
	blockSize  int
}

// NewRemoteStorage allocates a RemoteStorage of numBuckets buckets,
// each bucketSize slots wide, over blockSize-byte plaintext blocks.
// local marks the instance free, the way memory.NewRemoteMemory does;
// the top-level data tree and every recursive position-map level are
// built non-local so every access is billable, while NewInMemory (in
// oram.go) uses a local instance for ergonomic, cost-free construction.
func NewRemoteStorage(numBuckets, bucketSize, blockSize int, local bool) *RemoteStorage {
	return &RemoteStorage{
		mem:        memory.NewRemoteMemory(bucketSize, numBuckets, local),
		bucketSize: bucketSize,
		blockSize:  blockSize,
	}
}

func encodeSlot(b Block) obliv.Element {
	if b.ID == EmptyBlockID {
		return obliv.Dummy()
	}
	payload := make([]byte, 4+len(b.Data))
	binary.BigEndian.PutUint32(payload, uint32(int32(b.Leaf)))
	copy(payload[4:], b.Data)
	return obliv.New(b.ID, payload)
}

func decodeSlot(e obliv.Element, blockSize int) Block {
	if e.IsDummy() {
		return Block{ID: EmptyBlockID, Leaf: -1, Data: make([]byte, blockSize)}
	}
	leaf := int(int32(binary.BigEndian.Uint32(e.Value[:4])))
	data := make([]byte, len(e.Value)-4)
	copy(data, e.Value[4:])
	return Block{ID: e.Addr, Leaf: leaf, Data: data}
}

// ReadBucket decodes the bucket at idx's cell into its Block slots.
func (s *RemoteStorage) ReadBucket(idx int) ([]Block, error) {
	cell, err := s.mem.ReadCell(idx)
	if err != nil {
		return nil, ErrInvalidConfig
	}
	out := make([]Block, len(cell))
	for i, e := range cell {
		out[i] = decodeSlot(e, s.blockSize)
	}
	return out, nil
}

// WriteBucket encodes blocks into the bucket at idx's cell.
func (s *RemoteStorage) WriteBucket(idx int, blocks []Block) error {
	if len(blocks) != s.bucketSize {
		return ErrInvalidConfig
	}
	cell := make(memory.Block, len(blocks))
	for i, b := range blocks {
		cell[i] = encodeSlot(b)
	}
	if err := s.mem.WriteCell(idx, cell); err != nil {
		return ErrInvalidConfig
	}
	return nil
}

// NumBuckets returns the total number of buckets.
func (s *RemoteStorage) NumBuckets() int {
	return s.mem.NumCells()
}

// BucketSize returns slots per bucket.
func (s *RemoteStorage) BucketSize() int {
	return s.bucketSize
}

// BlockSize returns bytes per plaintext block.
func (s *RemoteStorage) BlockSize() int {
	return s.blockSize
}
