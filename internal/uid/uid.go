// Package uid generates opaque identifiers for newly registered servers.
package uid

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/sha256-simd"
)

// SaltSize is the number of random bytes mixed into every identifier.
const SaltSize = 16

// ErrEntropy is returned when the random source cannot provide a full salt.
var ErrEntropy = errors.New("random source unavailable")

// Generator derives identifiers from server address, key and a random salt.
type Generator struct {
	rand io.Reader
}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{rand: rand.Reader}
}

// NewWithReader returns a Generator reading salt from r.
func NewWithReader(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// New returns sha256(ip || port || key || salt) as 64 uppercase hex characters.
func (g *Generator) New(ip string, port uint16, key string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(g.rand, salt); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropy, err)
	}

	var portBuf [2]byte
	binary.BigEndian.PutUint16(portBuf[:], port)

	h := sha256.New()
	h.Write([]byte(ip))
	h.Write(portBuf[:])
	h.Write([]byte(key))
	h.Write(salt)

	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}
