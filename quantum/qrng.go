package quantum

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/sha3"
)

// A QRNG supplies the uniform random values consumed by measurement collapse
// and by key-distribution sampling. It is a ChaCha20-keystream generator
// seeded from an external entropy source conditioned through SHA3-256.
//
// A QRNG is synchronous and not internally locked; when goroutines share one
// instance the caller must serialize access.
type QRNG struct {
	stream          *chacha20.Cipher
	entropyEnhanced bool
}

// NewQRNG returns a generator seeded from entropy. If entropy is nil the
// generator falls back to crypto/rand, which is adequate for simulation but
// loses the caller's entropy provenance.
func NewQRNG(entropy io.Reader) (*QRNG, error) {
	enhanced := entropy != nil
	if entropy == nil {
		entropy = rand.Reader
	}
	seed := make([]byte, 32)
	if _, err := io.ReadFull(entropy, seed); err != nil {
		return nil, fmt.Errorf("seeding qrng: %w", err)
	}
	key := sha3.Sum256(seed)
	stream, err := chacha20.NewUnauthenticatedCipher(key[:], make([]byte, chacha20.NonceSize))
	if err != nil {
		return nil, fmt.Errorf("initializing qrng stream: %w", err)
	}
	return &QRNG{stream: stream, entropyEnhanced: enhanced}, nil
}

// EntropyEnhanced reports whether the generator was seeded from a
// caller-provided entropy source.
func (q *QRNG) EntropyEnhanced() bool { return q.entropyEnhanced }

// Bytes returns n random bytes.
func (q *QRNG) Bytes(n int) []byte {
	buf := make([]byte, n)
	q.stream.XORKeyStream(buf, buf)
	return buf
}

// Uint64 returns a uniform random 64-bit value.
func (q *QRNG) Uint64() uint64 {
	return binary.LittleEndian.Uint64(q.Bytes(8))
}

// Float64 returns a uniform random value in [0, 1).
func (q *QRNG) Float64() float64 {
	return float64(q.Uint64()>>11) / (1 << 53)
}

// Intn returns a uniform random value in [0, n). It uses rejection sampling
// to avoid modulo bias.
func (q *QRNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	max := ^uint64(0) - ^uint64(0)%uint64(n)
	for {
		v := q.Uint64()
		if v < max {
			return int(v % uint64(n))
		}
	}
}

// Bit returns a single uniform random bit.
func (q *QRNG) Bit() byte {
	return q.Bytes(1)[0] & 1
}
