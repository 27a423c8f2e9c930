package common

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

var globalCprng *CPRNG

// CPRNG is a simple thread-safe cryptographically secure pseudo-random number generator.
// Implemented with AES in counter mode with the seed as key and an
// atomic uint64 as counter.
type CPRNG struct {
	block   cipher.Block
	counter uint64
}

func NewCPRNG(seed *[32]byte) (*CPRNG, error) {
	c, err := aes.NewCipher(seed[:])
	if err != nil {
		return nil, err
	}
	return &CPRNG{
		block:   c,
		counter: 0,
	}, nil
}

func init() {
	var seed [32]byte
	_, err := rand.Reader.Read(seed[:])
	if err != nil {
		panic(fmt.Sprintf("Failed to generate seed for CPRNG: %v", err))
	}
	cprng, err := NewCPRNG(&seed)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize CPRNG: %v", err))
	}
	globalCprng = cprng
}

func (c *CPRNG) Read(buf []byte) (n int, err error) {
	var pt, ct [16]byte
	n = len(buf)
	if n == 0 {
		return
	}

	// Number of blocks required
	nBlocks := uint64(((len(buf) - 1) / 16) + 1)

	// Atomically increment counter by the number of blocks and set iv to
	// the first available block.
	iv := atomic.AddUint64(&c.counter, nBlocks) - nBlocks
	for {
		binary.LittleEndian.PutUint64(pt[:], iv)
		iv++

		// Still 16 bytes to go?  Then encrypt directly into buf.
		if len(buf) >= 16 {
			c.block.Encrypt(buf, pt[:])
			buf = buf[16:]
			continue
		}
		if len(buf) == 0 {
			break
		}

		// Otherwise, encrypt into ct and copy into buf.
		c.block.Encrypt(ct[:], pt[:])
		copy(buf, ct[:len(buf)])
		break
	}
	return
}

// FastRandomBits returns a uniformly random value in [0, 2^numBits), drawn
// from a random 256 bit seed generated when the application starts.
// numBits must be at most 64.
func FastRandomBits(numBits uint) uint64 {
	if numBits > 64 {
		panic("FastRandomBits: numBits exceeds 64")
	}
	if numBits == 0 {
		return 0
	}
	var buf [8]byte
	if _, err := globalCprng.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("CPRNG read failed: %v", err))
	}
	v := binary.LittleEndian.Uint64(buf[:])
	if numBits == 64 {
		return v
	}
	return v & ((1 << numBits) - 1)
}

// FastRandomBytes fills buf with random bytes from the process-global CPRNG.
func FastRandomBytes(buf []byte) {
	if _, err := globalCprng.Read(buf); err != nil {
		panic(fmt.Sprintf("CPRNG read failed: %v", err))
	}
}
