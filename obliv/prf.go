package obliv

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"math/big"
)

// PRF is a keyed pseudorandom function that maps an address to a
// uniform bin in [0, C). Spec treats the identity of the PRF as an
// abstract capability: any implementation satisfying this contract is
// acceptable, the choice only affects the overflow distribution, never
// the I/O cost.
type PRF interface {
	Bin(addr, c int) int
}

// HMACKey is a PRF backed by HMAC-SHA256, keyed with a fresh random
// 256-bit secret. It is the default PRF for bin-packing, the hash
// table and compaction.
type HMACKey struct {
	key []byte
}

// NewHMACKey generates a fresh random HMAC key.
func NewHMACKey() (*HMACKey, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return &HMACKey{key: key}, nil
}

// Bin returns PRF_k(addr) mod c.
func (h *HMACKey) Bin(addr, c int) int {
	mac := hmac.New(sha256.New, h.key)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(addr))
	mac.Write(buf[:])
	sum := mac.Sum(nil)
	n := new(big.Int).SetBytes(sum)
	mod := new(big.Int).SetInt64(int64(c))
	return int(new(big.Int).Mod(n, mod).Int64())
}

// RandomBin returns a uniformly random bin in [0, c), used for dummy
// elements and dummy lookups where no address should be leaked.
func RandomBin(c int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(c)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
