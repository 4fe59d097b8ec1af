// Package hasher computes the content digest of files.
//
// Files are streamed through the hash function with sequential, fixed-size reads,
// so memory usage stays constant regardless of file size. The digest only depends
// on the bytes of the file: names, permissions and timestamps are ignored.
//
// Every supported algorithm yields a 256-bit digest, rendered as 64 lowercase hex characters.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	units "github.com/docker/go-units"
	blake2b "github.com/minio/blake2b-simd"
	"github.com/oneconcern/hashlink/pkg/hasher/status"
	"github.com/zeebo/blake3"
)

const (
	// DefaultBufferSize is the size of each sequential read
	DefaultBufferSize = 1 * units.MiB

	// DigestSizeHex is the length of a hex-encoded digest
	DigestSizeHex = 64
)

// Algorithm selects the hash function used to compute digests
type Algorithm uint8

const (
	// SHA256 is the default algorithm
	SHA256 Algorithm = iota
	// Blake2b is the 256-bit variant of blake2b
	Blake2b
	// Blake3 with its default 256-bit output
	Blake3
)

var algorithmNames = map[Algorithm]string{
	SHA256:  "sha256",
	Blake2b: "blake2b",
	Blake3:  "blake3",
}

func (a Algorithm) String() string {
	if n, ok := algorithmNames[a]; ok {
		return n
	}
	return fmt.Sprintf("algorithm(%d)", a)
}

// ParseAlgorithm maps a configuration string to an Algorithm
func ParseAlgorithm(name string) (Algorithm, error) {
	for a, n := range algorithmNames {
		if strings.EqualFold(n, name) {
			return a, nil
		}
	}
	return SHA256, status.ErrUnknownAlgorithm.Wrapf("%q", name)
}

func (a Algorithm) new() hash.Hash {
	switch a {
	case Blake2b:
		return blake2b.New256()
	case Blake3:
		return blake3.New()
	default:
		return sha256.New()
	}
}

// Option configures a Hasher
type Option func(*Hasher)

// WithAlgorithm sets the hash function. Defaults to SHA256.
func WithAlgorithm(a Algorithm) Option {
	return func(h *Hasher) {
		h.algorithm = a
	}
}

// WithBufferSize sets the size of sequential reads. Defaults to DefaultBufferSize.
func WithBufferSize(size int) Option {
	return func(h *Hasher) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// Hasher computes hex digests of files. It has no side effects.
type Hasher struct {
	algorithm  Algorithm
	bufferSize int
}

// New builds a Hasher
func New(opts ...Option) *Hasher {
	h := &Hasher{
		algorithm:  SHA256,
		bufferSize: DefaultBufferSize,
	}
	for _, apply := range opts {
		apply(h)
	}
	return h
}

// Algorithm used by this hasher
func (h *Hasher) Algorithm() Algorithm {
	return h.algorithm
}

// Digest returns the hex digest of the file at path.
//
// Any read error aborts the computation: no partial digest is ever returned.
func (h *Hasher) Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	digest, err := h.DigestReader(f)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, nil
}

// DigestReader returns the hex digest of everything read from r
func (h *Hasher) DigestReader(r io.Reader) (string, error) {
	sum := h.algorithm.new()
	buf := make([]byte, h.bufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = sum.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}

// IsDigest tells if a string looks like a hex-encoded digest
func IsDigest(s string) bool {
	if len(s) != DigestSizeHex {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
