package segment

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"
)

// BloomFilter answers "definitely absent" for terms a segment does not hold.
type BloomFilter struct {
	bits      []uint64
	size      uint64
	hashCount uint32
}

// NewBloomFilter sizes a filter for expectedItems at the given false positive
// rate: m = -(n ln p) / (ln 2)^2 and k = (m/n) ln 2.
func NewBloomFilter(expectedItems int, falsePositiveRate float64) *BloomFilter {
	if expectedItems <= 0 {
		expectedItems = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}
	size := uint64(math.Ceil(-float64(expectedItems) * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	if size < 64 {
		size = 64
	}
	hashCount := uint32(math.Ceil(float64(size) / float64(expectedItems) * math.Ln2))
	if hashCount < 1 {
		hashCount = 1
	}
	if hashCount > 30 {
		hashCount = 30
	}
	return &BloomFilter{
		bits:      make([]uint64, (size+63)/64),
		size:      size,
		hashCount: hashCount,
	}
}

func (bf *BloomFilter) Add(key []byte) {
	h1, h2 := murmur3.Sum128(key)
	for i := uint32(0); i < bf.hashCount; i++ {
		bit := (h1 + uint64(i)*h2) % bf.size
		bf.bits[bit/64] |= 1 << (bit % 64)
	}
}

// MayContain reports false only when key was never added.
func (bf *BloomFilter) MayContain(key []byte) bool {
	h1, h2 := murmur3.Sum128(key)
	for i := uint32(0); i < bf.hashCount; i++ {
		bit := (h1 + uint64(i)*h2) % bf.size
		if bf.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

func (bf *BloomFilter) HashCount() int { return int(bf.hashCount) }

func (bf *BloomFilter) Size() int { return int(bf.size) }

// MarshalBinary encodes hash count, bit count and the bit words.
func (bf *BloomFilter) MarshalBinary() ([]byte, error) {
	out := make([]byte, 12+8*len(bf.bits))
	binary.LittleEndian.PutUint32(out[0:4], bf.hashCount)
	binary.LittleEndian.PutUint64(out[4:12], bf.size)
	for i, w := range bf.bits {
		binary.LittleEndian.PutUint64(out[12+8*i:], w)
	}
	return out, nil
}

func (bf *BloomFilter) UnmarshalBinary(data []byte) error {
	if len(data) < 12 {
		return fmt.Errorf("bloom filter: short buffer (%d bytes)", len(data))
	}
	hashCount := binary.LittleEndian.Uint32(data[0:4])
	size := binary.LittleEndian.Uint64(data[4:12])
	words := (size + 63) / 64
	if size == 0 || hashCount == 0 || uint64(len(data)-12) != words*8 {
		return fmt.Errorf("bloom filter: inconsistent size %d for %d bytes", size, len(data))
	}
	bf.hashCount = hashCount
	bf.size = size
	bf.bits = make([]uint64, words)
	for i := range bf.bits {
		bf.bits[i] = binary.LittleEndian.Uint64(data[12+8*i:])
	}
	return nil
}
