package obliv

import "math/bits"

// NextPowerOfTwoGreaterOrEqual returns the smallest power of two that is
// greater than or equal to x. It returns 1 for x <= 1.
func NextPowerOfTwoGreaterOrEqual(x int) int {
	if x <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(x-1))
}

// ChooseC picks the bin-packing fan-out C for n elements of block
// capacity B: the next power of two at least max(ceil(2n/B), 2).
func ChooseC(n, B int) int {
	val := (2*n + B - 1) / B
	if val < 2 {
		val = 2
	}
	return NextPowerOfTwoGreaterOrEqual(val)
}

// GetMSBAtIndex returns the i-th most significant bit of x (1-indexed
// from the left) within a value of the given bit length. i must be in
// [1, bitLength].
func GetMSBAtIndex(x, i, bitLength int) int {
	shift := bitLength - i
	return (x >> uint(shift)) & 1
}

// IsDummy reports whether an element is a dummy, given just its address.
func IsDummy(addr int) bool {
	return addr == DummyAddr
}

// Log2Ceil returns ceil(log2(x)) for x >= 1.
func Log2Ceil(x int) int {
	if x <= 1 {
		return 0
	}
	return bits.Len(uint(x - 1))
}
