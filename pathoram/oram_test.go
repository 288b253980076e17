package pathoram

import (
	"bytes"
	cryptorand "crypto/rand"
	"fmt"
	"testing"

	"github.com/cryptobiu/MegaBlocks/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemoryValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"valid config", Config{NumBlocks: 100, BlockSize: 512, BucketSize: 5, StashLimit: 100}, nil},
		{"zero blocks", Config{NumBlocks: 0, BlockSize: 512, BucketSize: 5}, ErrInvalidConfig},
		{"negative blocks", Config{NumBlocks: -1, BlockSize: 512}, ErrInvalidConfig},
		{"zero block size", Config{NumBlocks: 100, BlockSize: 0, BucketSize: 5}, ErrInvalidConfig},
		{"negative bucket size", Config{NumBlocks: 100, BlockSize: 512, BucketSize: -5}, ErrInvalidConfig},
		{"negative stash limit", Config{NumBlocks: 100, BlockSize: 512, StashLimit: -1}, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oram, err := NewInMemory(tt.cfg)
			assert.Equal(t, tt.wantErr, err)
			if tt.wantErr == nil {
				require.NotNil(t, oram)
				assert.Equal(t, tt.cfg.NumBlocks, oram.Capacity())
			}
		})
	}
}

func TestNewInMemoryAppliesDefaults(t *testing.T) {
	oram, err := NewInMemory(Config{NumBlocks: 100, BlockSize: 512})
	require.NoError(t, err)
	assert.Equal(t, 5, oram.cfg.BucketSize)
	assert.Equal(t, 100, oram.cfg.StashLimit)
}

func TestTreeHeight(t *testing.T) {
	tests := []struct {
		numBlocks, bucketSize, wantHeight int
	}{
		{1, 1, 1},
		{7, 1, 3},
		{8, 1, 4},
		{100, 5, 5},
		{1000, 4, 8},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("blocks=%d/Z=%d", tt.numBlocks, tt.bucketSize), func(t *testing.T) {
			oram, err := NewInMemory(Config{NumBlocks: tt.numBlocks, BlockSize: 512, BucketSize: tt.bucketSize})
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeight, oram.Height())
		})
	}
}

func TestNumLeaves(t *testing.T) {
	tests := []struct {
		numBlocks, bucketSize, wantLeaves int
	}{
		{7, 1, 4},
		{100, 5, 16},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("blocks=%d/Z=%d", tt.numBlocks, tt.bucketSize), func(t *testing.T) {
			oram, err := NewInMemory(Config{NumBlocks: tt.numBlocks, BlockSize: 512, BucketSize: tt.bucketSize})
			require.NoError(t, err)
			assert.Equal(t, tt.wantLeaves, oram.NumLeaves())
		})
	}
}

func TestPath(t *testing.T) {
	// height-3 tree: root 0, level 1 {1,2}, leaves {3,4,5,6}
	oram, err := NewInMemory(Config{NumBlocks: 7, BlockSize: 512, BucketSize: 1})
	require.NoError(t, err)

	tests := []struct {
		leaf     int
		wantPath []int
	}{
		{0, []int{3, 1, 0}},
		{1, []int{4, 1, 0}},
		{2, []int{5, 2, 0}},
		{3, []int{6, 2, 0}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantPath, oram.Path(tt.leaf))
	}
}

func TestCanPlaceAt(t *testing.T) {
	oram, err := NewInMemory(Config{NumBlocks: 16, BlockSize: 64, BucketSize: 4})
	require.NoError(t, err)

	for _, bucketIdx := range oram.Path(0) {
		assert.True(t, oram.canPlaceAt(0, bucketIdx))
	}
	for leaf := 0; leaf < oram.NumLeaves(); leaf++ {
		assert.True(t, oram.canPlaceAt(leaf, 0), "root reachable from every leaf")
	}
}

func TestAccessWriteThenRead(t *testing.T) {
	oram, err := NewInMemory(Config{NumBlocks: 10, BlockSize: 32, BucketSize: 4})
	require.NoError(t, err)

	data := bytes.Repeat([]byte{0xAB}, 32)
	_, err = oram.Write(0, data)
	require.NoError(t, err)

	got, err := oram.Read(0)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestAccessReadUnwrittenReturnsZeros(t *testing.T) {
	oram, err := NewInMemory(Config{NumBlocks: 10, BlockSize: 32, BucketSize: 4})
	require.NoError(t, err)

	got, err := oram.Read(5)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 32), got)
}

func TestAccessMultipleBlocksSurviveInterleavedAccess(t *testing.T) {
	oram, err := NewInMemory(Config{NumBlocks: 20, BlockSize: 16, BucketSize: 4})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := oram.Write(i, bytes.Repeat([]byte{byte(i)}, 16))
		require.NoError(t, err)
	}
	for i := 9; i >= 0; i-- {
		got, err := oram.Read(i)
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte{byte(i)}, 16), got)
	}
}

func TestAccessInvalidBlockID(t *testing.T) {
	oram, err := NewInMemory(Config{NumBlocks: 10, BlockSize: 16, BucketSize: 4})
	require.NoError(t, err)

	for _, id := range []int{-1, 10, 100} {
		_, err := oram.Read(id)
		assert.Equal(t, ErrInvalidBlockID, err)
		_, err = oram.Write(id, make([]byte, 16))
		assert.Equal(t, ErrInvalidBlockID, err)
	}
}

func TestAccessWrongDataSize(t *testing.T) {
	oram, err := NewInMemory(Config{NumBlocks: 10, BlockSize: 16, BucketSize: 4})
	require.NoError(t, err)

	for _, size := range []int{8, 32, 0} {
		_, err := oram.Write(0, make([]byte, size))
		assert.Equal(t, ErrInvalidDataSize, err)
	}
}

func TestAccessWriteReturnsPreviousValue(t *testing.T) {
	oram, err := NewInMemory(Config{NumBlocks: 10, BlockSize: 16, BucketSize: 4})
	require.NoError(t, err)

	old, err := oram.Write(0, bytes.Repeat([]byte{0xAA}, 16))
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 16), old)

	old, err = oram.Write(0, bytes.Repeat([]byte{0xBB}, 16))
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 16), old)
}

func TestSizeTracksDistinctTouchedBlocks(t *testing.T) {
	oram, err := NewInMemory(Config{NumBlocks: 20, BlockSize: 16, BucketSize: 4})
	require.NoError(t, err)
	assert.Equal(t, 0, oram.Size())

	oram.Write(0, make([]byte, 16))
	oram.Write(5, make([]byte, 16))
	oram.Write(10, make([]byte, 16))
	assert.Equal(t, 3, oram.Size())

	oram.Write(5, make([]byte, 16))
	assert.Equal(t, 3, oram.Size(), "re-writing an existing block doesn't grow Size")

	oram.Read(15)
	assert.Equal(t, 4, oram.Size(), "reading a never-written block still allocates a posMap entry")
}

func TestMaxStashSizeTracksHighWaterMark(t *testing.T) {
	oram, err := NewInMemory(Config{NumBlocks: 50, BlockSize: 32, BucketSize: 4, StashLimit: 100})
	require.NoError(t, err)
	assert.Equal(t, 0, oram.MaxStashSize())

	for i := 0; i < 50; i++ {
		_, err := oram.Write(i, bytes.Repeat([]byte{byte(i)}, 32))
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, oram.MaxStashSize(), oram.StashSize())
	assert.Greater(t, oram.MaxStashSize(), 0)
}

func TestStashStaysWithinLimit(t *testing.T) {
	cfg := Config{NumBlocks: 50, BlockSize: 32, BucketSize: 4, StashLimit: 100}
	oram, err := NewInMemory(cfg)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, err := oram.Write(i, bytes.Repeat([]byte{byte(i)}, 32))
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, oram.StashSize(), cfg.StashLimit)
}

func TestAccessStressPattern(t *testing.T) {
	oram, err := NewInMemory(Config{NumBlocks: 100, BlockSize: 64, BucketSize: 4, StashLimit: 200})
	require.NoError(t, err)

	expected := make(map[int][]byte)
	for i := 0; i < 100; i++ {
		data := make([]byte, 64)
		for j := range data {
			data[j] = byte((i*7 + j) % 256)
		}
		expected[i] = data
		_, err := oram.Write(i, data)
		require.NoError(t, err)
	}

	for round := 0; round < 200; round++ {
		blockID := (round * 17) % 100
		got, err := oram.Read(blockID)
		require.NoError(t, err)
		assert.Equal(t, expected[blockID], got)

		if round%3 == 0 {
			newData := make([]byte, 64)
			for j := range newData {
				newData[j] = byte((round + j) % 256)
			}
			expected[blockID] = newData
			_, err := oram.Write(blockID, newData)
			require.NoError(t, err)
		}
	}
}

func TestEvictionStrategiesPreserveCorrectness(t *testing.T) {
	strategies := []EvictionStrategy{EvictLevelByLevel, EvictGreedyByDepth, EvictDeterministicTwoPath}

	for _, strategy := range strategies {
		t.Run(fmt.Sprintf("strategy=%d", strategy), func(t *testing.T) {
			oram, err := NewInMemory(Config{
				NumBlocks: 64, BlockSize: 32, BucketSize: 4, StashLimit: 100,
				EvictionStrategy: strategy,
			})
			require.NoError(t, err)

			expected := make(map[int][]byte)
			for i := 0; i < 64; i++ {
				data := bytes.Repeat([]byte{byte(i)}, 32)
				expected[i] = data
				_, err := oram.Write(i, data)
				require.NoError(t, err)
			}
			for i := 0; i < 64; i++ {
				got, err := oram.Read(i)
				require.NoError(t, err)
				assert.Equal(t, expected[i], got)
			}
		})
	}
}

func TestEvictionStrategiesStayWithinStashLimit(t *testing.T) {
	strategies := []EvictionStrategy{EvictLevelByLevel, EvictGreedyByDepth, EvictDeterministicTwoPath}

	for _, strategy := range strategies {
		t.Run(fmt.Sprintf("strategy=%d", strategy), func(t *testing.T) {
			cfg := Config{NumBlocks: 128, BlockSize: 16, BucketSize: 4, StashLimit: 200, EvictionStrategy: strategy}
			oram, err := NewInMemory(cfg)
			require.NoError(t, err)

			data := make([]byte, 16)
			for i := 0; i < 128; i++ {
				_, err := oram.Write(i, data)
				require.NoError(t, err)
			}
			for round := 0; round < 500; round++ {
				_, err := oram.Read((round * 13) % 128)
				require.NoError(t, err)
			}
			assert.LessOrEqual(t, oram.StashSize(), cfg.StashLimit)
		})
	}
}

func TestRemoteStorageRoundTripsBuckets(t *testing.T) {
	storage := NewRemoteStorage(7, 4, 64, true)
	assert.Equal(t, 7, storage.NumBuckets())
	assert.Equal(t, 4, storage.BucketSize())
	assert.Equal(t, 64, storage.BlockSize())

	bucket, err := storage.ReadBucket(0)
	require.NoError(t, err)
	for _, b := range bucket {
		assert.Equal(t, EmptyBlockID, b.ID)
	}

	testBlocks := []Block{
		{ID: 1, Leaf: 0, Data: bytes.Repeat([]byte{0x11}, 64)},
		{ID: 2, Leaf: 1, Data: bytes.Repeat([]byte{0x22}, 64)},
		{ID: EmptyBlockID, Leaf: -1, Data: make([]byte, 64)},
		{ID: EmptyBlockID, Leaf: -1, Data: make([]byte, 64)},
	}
	require.NoError(t, storage.WriteBucket(0, testBlocks))

	bucket, err = storage.ReadBucket(0)
	require.NoError(t, err)
	assert.Equal(t, 1, bucket[0].ID)
	assert.Equal(t, 2, bucket[1].ID)
	assert.Equal(t, bytes.Repeat([]byte{0x11}, 64), bucket[0].Data)
}

func TestRemoteStorageBillsOnlyWhenNotLocal(t *testing.T) {
	memory.ResetCounters()
	local := NewRemoteStorage(4, 2, 16, true)
	require.NoError(t, local.WriteBucket(0, make([]Block, 2)))
	_, err := local.ReadBucket(0)
	require.NoError(t, err)
	assert.Equal(t, memory.Counters{}, memory.RealCounters)

	remote := NewRemoteStorage(4, 2, 16, false)
	require.NoError(t, remote.WriteBucket(0, make([]Block, 2)))
	_, err = remote.ReadBucket(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), memory.RealCounters.Writes)
	assert.Equal(t, uint64(1), memory.RealCounters.Reads)
}

func TestInMemoryPositionMap(t *testing.T) {
	posMap := NewInMemoryPositionMap()
	assert.Equal(t, 0, posMap.Size())

	_, exists := posMap.Get(5)
	assert.False(t, exists)

	posMap.Set(5, 10)
	leaf, exists := posMap.Get(5)
	assert.True(t, exists)
	assert.Equal(t, 10, leaf)
	assert.Equal(t, 1, posMap.Size())

	posMap.Set(5, 20)
	leaf, _ = posMap.Get(5)
	assert.Equal(t, 20, leaf)
}

func TestInMemoryPositionMapFootprintBytesGrowsWithAssignments(t *testing.T) {
	posMap := NewInMemoryPositionMap()
	assert.Equal(t, 0, posMap.FootprintBytes())

	posMap.Set(1, 0)
	posMap.Set(2, 1)
	assert.Equal(t, 16, posMap.FootprintBytes())

	posMap.Set(1, 7) // overwriting an existing blockID must not grow the footprint
	assert.Equal(t, 16, posMap.FootprintBytes())
}

func TestAESGCMEncryptorRoundTrips(t *testing.T) {
	key := make([]byte, 32)
	_, err := cryptorand.Read(key)
	require.NoError(t, err)

	enc, err := NewAESGCMEncryptor(key)
	require.NoError(t, err)

	plaintext := []byte("hello world 1234")
	ciphertext, err := enc.Encrypt(1, 2, plaintext)
	require.NoError(t, err)
	assert.Equal(t, len(plaintext)+enc.Overhead(), len(ciphertext))

	decrypted, err := enc.Decrypt(1, 2, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)

	_, err = enc.Decrypt(999, 2, ciphertext)
	assert.Equal(t, ErrDecryptionFailed, err)

	ct1, _ := enc.Encrypt(1, 2, plaintext)
	ct2, _ := enc.Encrypt(1, 2, plaintext)
	assert.NotEqual(t, ct1, ct2, "fresh nonce each call")
}

func TestNoOpEncryptorPassesThrough(t *testing.T) {
	enc := NoOpEncryptor{}
	plaintext := []byte("test data")

	ct, err := enc.Encrypt(1, 2, plaintext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, ct)

	pt, err := enc.Decrypt(1, 2, ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
	assert.Equal(t, 0, enc.Overhead())
}

func TestCiphertextSizeAddsEncryptorOverhead(t *testing.T) {
	assert.Equal(t, 64, CiphertextSize(NoOpEncryptor{}, 64))

	key := make([]byte, 32)
	_, err := cryptorand.Read(key)
	require.NoError(t, err)
	enc, err := NewAESGCMEncryptor(key)
	require.NoError(t, err)
	assert.Equal(t, 64+enc.Overhead(), CiphertextSize(enc, 64))
}

func TestEncryptedBlockSizeReflectsActiveEncryptor(t *testing.T) {
	plain, err := NewInMemory(Config{NumBlocks: 10, BlockSize: 32, BucketSize: 4})
	require.NoError(t, err)
	assert.Equal(t, 32, plain.EncryptedBlockSize())

	key := make([]byte, 32)
	_, err = cryptorand.Read(key)
	require.NoError(t, err)
	enc, err := NewAESGCMEncryptor(key)
	require.NoError(t, err)
	storage := NewRemoteStorage(7, 4, 32, true)
	encrypted, err := New(Config{NumBlocks: 10, BlockSize: 32, BucketSize: 4, StashLimit: 100}, storage, NewInMemoryPositionMap(), enc)
	require.NoError(t, err)
	assert.Equal(t, 32+enc.Overhead(), encrypted.EncryptedBlockSize())
}

func TestNewWithExplicitRemoteStorageBillsRealCounters(t *testing.T) {
	memory.ResetCounters()

	cfg, err := Config{NumBlocks: 64, BlockSize: 32, BucketSize: 4}.Validate()
	require.NoError(t, err)
	_, _, totalBuckets := cfg.ComputeTreeParams()

	storage := NewRemoteStorage(totalBuckets, cfg.BucketSize, cfg.BlockSize, false)
	oram, err := New(cfg, storage, NewInMemoryPositionMap(), NoOpEncryptor{})
	require.NoError(t, err)

	data := bytes.Repeat([]byte{0xAB}, 32)
	_, err = oram.Write(0, data)
	require.NoError(t, err)

	got, err := oram.Read(0)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Greater(t, memory.RealCounters.Reads, uint64(0))
	assert.Greater(t, memory.RealCounters.Writes, uint64(0))
}

func TestWithEncryptionStorageNeverHoldsPlaintext(t *testing.T) {
	key := make([]byte, 32)
	_, err := cryptorand.Read(key)
	require.NoError(t, err)

	cfg, err := Config{NumBlocks: 64, BlockSize: 32, BucketSize: 4}.Validate()
	require.NoError(t, err)
	_, _, totalBuckets := cfg.ComputeTreeParams()

	storage := NewRemoteStorage(totalBuckets, cfg.BucketSize, cfg.BlockSize, true)
	enc, err := NewAESGCMEncryptor(key)
	require.NoError(t, err)

	oram, err := New(cfg, storage, NewInMemoryPositionMap(), enc)
	require.NoError(t, err)

	data := make([]byte, 32)
	copy(data, []byte("secret test data"))
	_, err = oram.Write(0, data)
	require.NoError(t, err)

	got, err := oram.Read(0)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	for i := 0; i < storage.NumBuckets(); i++ {
		bucket, err := storage.ReadBucket(i)
		require.NoError(t, err)
		for _, b := range bucket {
			if b.ID != EmptyBlockID {
				assert.NotContains(t, string(b.Data), "secret")
			}
		}
	}
}

func TestConstantTimeModePreservesCorrectness(t *testing.T) {
	oram, err := NewInMemory(Config{NumBlocks: 64, BlockSize: 32, BucketSize: 4, ConstantTime: true})
	require.NoError(t, err)

	expected := make(map[int][]byte)
	for i := 0; i < 32; i++ {
		data := bytes.Repeat([]byte{byte(i)}, 32)
		expected[i] = data
		_, err := oram.Write(i, data)
		require.NoError(t, err)
	}
	for i := 0; i < 32; i++ {
		got, err := oram.Read(i)
		require.NoError(t, err)
		assert.Equal(t, expected[i], got)
	}
}
