// Package bitarray provides utilities for operating on densely-packed arrays
// of booleans.
package bitarray

import (
	"fmt"
	"math/bits"
	"math/rand"
	"unicode"
)

// TODO: this could be more efficient on many architectures if we used larger
//   blocks than 8-bit bytes.

const blockSize = 8

// A Dense is a bit array where every bit is explicitly represented. Bits
// beyond the logical length are always zero. Operations use copy semantics;
// mutating methods take pointer receivers.
type Dense struct {
	bits []byte
	len  int
}

// NewDense returns a new Dense whose data is a copy of data, and whose length
// is bitLen. If bitLen is longer than data, then trailing zeros are added. If
// bitLen is negative, then it is inferred from data.
func NewDense(data []byte, bitLen int) Dense {
	if bitLen < 0 {
		bitLen = len(data) * blockSize
	}
	b := make([]byte, BytesFor(bitLen))
	copy(b, data)
	d := Dense{bits: b, len: bitLen}
	d.clearTail()
	return d
}

// Empty returns an empty, dense bit array.
func Empty() Dense {
	return Dense{}
}

// FromString builds a Dense from a string of '0' and '1' runes, most
// significant bit last, e.g. "0110" sets bits 1 and 2. Whitespace is
// ignored, so bits may be grouped for readability: "1010 1111".
func FromString(s string) (Dense, error) {
	var d Dense
	for _, c := range s {
		switch {
		case c == '0':
			d.AppendBit(false)
		case c == '1':
			d.AppendBit(true)
		case unicode.IsSpace(c):
		default:
			return Dense{}, fmt.Errorf("parsing bit array: unexpected rune %q", c)
		}
	}
	return d, nil
}

// Size returns the number of bits in d.
func (d Dense) Size() int {
	return d.len
}

// ByteSize returns the number of bytes necessary to represent d.
func (d Dense) ByteSize() int {
	return BytesFor(d.len)
}

// Data returns a copy of the bytes underlying d.
func (d Dense) Data() []byte {
	data := make([]byte, len(d.bits))
	copy(data, d.bits)
	return data
}

// Get returns the bit at idx. Bits beyond the logical length read as zero.
func (d Dense) Get(idx int) bool {
	if idx < 0 || idx >= d.len || idx/blockSize >= len(d.bits) {
		return false
	}
	return 0 < d.bits[idx/blockSize]&(1<<(idx%blockSize))
}

// AppendBit adds a single bit to the end of d.
func (d *Dense) AppendBit(bit bool) {
	pos := d.len % blockSize
	d.len++
	if pos == 0 {
		d.bits = append(d.bits, 0)
	}
	if bit {
		d.bits[len(d.bits)-1] |= 1 << pos
	}
}

// Append adds the contents of other to the end of d.
func (d *Dense) Append(other Dense) {
	for i := 0; i < other.len; i++ {
		d.AppendBit(other.Get(i))
	}
}

// Flip inverts the bit at idx.
func (d *Dense) Flip(idx int) {
	if idx < 0 || idx >= d.len {
		return
	}
	d.bits[idx/blockSize] ^= 1 << (idx % blockSize)
}

// Shuffle randomly permutes the contents of d, using r as a source of
// randomness.
func (d *Dense) Shuffle(r *rand.Rand) {
	r.Shuffle(d.len, d.swap)
}

func (d *Dense) swap(i, j int) {
	a, b := d.Get(i), d.Get(j)
	if a == b {
		return
	}
	d.Flip(i)
	d.Flip(j)
}

// And computes a bitwise AND operation between d and other. If one of the two
// is shorter than the other, then trailing 0s are implicitly added to make
// the sizes match.
func (d Dense) And(other Dense) Dense {
	short := other
	if d.len < other.len {
		short = d
	}
	r := Dense{bits: make([]byte, short.ByteSize()), len: short.len}
	for i := range r.bits {
		r.bits[i] = d.byteAt(i) & other.byteAt(i)
	}
	r.clearTail()
	return r
}

// Or computes a bitwise OR operation between d and other. If one of the two
// is shorter than the other, then trailing 0s are implicitly added to make
// the sizes match.
func (d Dense) Or(other Dense) Dense {
	long := d
	if d.len < other.len {
		long = other
	}
	r := Dense{bits: make([]byte, long.ByteSize()), len: long.len}
	for i := range r.bits {
		r.bits[i] = d.byteAt(i) | other.byteAt(i)
	}
	return r
}

// XOr computes a bitwise XOR operation between d and other. If one of the two
// is shorter than the other, then trailing 0s are implicitly added to make
// the sizes match.
func (d Dense) XOr(other Dense) Dense {
	long := d
	if d.len < other.len {
		long = other
	}
	r := Dense{bits: make([]byte, long.ByteSize()), len: long.len}
	for i := range r.bits {
		r.bits[i] = d.byteAt(i) ^ other.byteAt(i)
	}
	return r
}

// XNor computes a bitwise equality operation between d and other. If one of
// the two is shorter than the other, then trailing 0s are implicitly added to
// make the sizes match.
func (d Dense) XNor(other Dense) Dense {
	long := d
	if d.len < other.len {
		long = other
	}
	r := Dense{bits: make([]byte, long.ByteSize()), len: long.len}
	for i := range r.bits {
		r.bits[i] = ^(d.byteAt(i) ^ other.byteAt(i))
	}
	r.clearTail()
	return r
}

// Not returns a copy of d whose bits have all been flipped.
func (d Dense) Not() Dense {
	return d.XNor(Dense{len: d.len})
}

// Parity returns the overall parity of d, with true corresponding to 1 and
// false to 0.
func (d Dense) Parity() bool {
	var sum byte
	for _, b := range d.bits {
		sum ^= b
	}
	return bits.OnesCount8(sum)%2 == 1
}

// CountOnes returns the total number of bits set in d.
func (d Dense) CountOnes() int {
	var sum int
	for _, b := range d.bits {
		sum += bits.OnesCount8(b)
	}
	return sum
}

// Dot computes the F_2 inner product of d and other.
func (d Dense) Dot(other Dense) bool {
	return d.And(other).Parity()
}

// Equal reports whether d and other have the same length and contents.
func (d Dense) Equal(other Dense) bool {
	if d.len != other.len {
		return false
	}
	for i := range d.bits {
		if d.bits[i] != other.bits[i] {
			return false
		}
	}
	return true
}

// Select selects a subset of bits from d, according to which bits are set in
// mask.
func (d Dense) Select(mask Dense) Dense {
	var r Dense
	for i := 0; i < d.len; i++ {
		if !mask.Get(i) {
			continue
		}
		r.AppendBit(d.Get(i))
	}
	return r
}

// Slice returns a copy of bits [start, end) of d.
func (d Dense) Slice(start, end int) (Dense, error) {
	if start < 0 {
		return Dense{}, fmt.Errorf("slicing bit array with negative start: %d", start)
	}
	if end < start {
		return Dense{}, fmt.Errorf("slicing bit array to negative length: %d", end-start)
	}
	if end > d.len {
		return Dense{}, fmt.Errorf("slicing bit array of len %d up to %d", d.len, end)
	}
	r := Dense{bits: make([]byte, BytesFor(end-start)), len: end - start}
	for i := range r.bits {
		r.bits[i] = d.bitsFrom(start + i*blockSize)
	}
	r.clearTail()
	return r, nil
}

// bitsFrom collects the byte whose low bit is the bit of d at position start.
func (d Dense) bitsFrom(start int) byte {
	i, off := start/blockSize, start%blockSize
	if i >= len(d.bits) {
		return 0
	}
	b := d.bits[i] >> off
	if off > 0 && i+1 < len(d.bits) {
		b |= d.bits[i+1] << (blockSize - off)
	}
	return b
}

func (d Dense) byteAt(i int) byte {
	if i >= len(d.bits) {
		return 0
	}
	return d.bits[i]
}

// clearTail zeroes the bits beyond the logical length, maintaining the
// invariant that trailing bits in the final block read as zero.
func (d *Dense) clearTail() {
	if d.len%blockSize == 0 || len(d.bits) == 0 {
		return
	}
	d.bits[len(d.bits)-1] &= byte(1<<(d.len%blockSize)) - 1
}

// BytesFor returns the number of bytes necessary to hold the given number of
// bits.
func BytesFor(bits int) int {
	return (bits + blockSize - 1) / blockSize
}
