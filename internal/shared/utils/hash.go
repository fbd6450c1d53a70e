package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	SHA256  HashAlgorithm = "sha256"
	BLAKE2B HashAlgorithm = "blake2b"
	// Extensible: add more algorithms here
	// SHA512 HashAlgorithm = "sha512"
)

// Hasher provides extensible hashing functionality
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{
		algorithm: algorithm,
	}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(SHA256)
}

// Hash computes a hash of the input data
func (h *Hasher) Hash(data []byte) string {
	switch h.algorithm {
	case BLAKE2B:
		hash := blake2b.Sum256(data)
		return hex.EncodeToString(hash[:])
	case SHA256:
		hash := sha256.Sum256(data)
		return hex.EncodeToString(hash[:])
	default:
		// Fallback to SHA256
		hash := sha256.Sum256(data)
		return hex.EncodeToString(hash[:])
	}
}

// HashString computes a hash of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashJSON computes a hash of a JSON-serializable object
// The hash is deterministic (same object = same hash)
func (h *Hasher) HashJSON(v interface{}) (string, error) {
	// Marshal to JSON with sorted keys for deterministic output
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return h.Hash(data), nil
}

// HashFields computes a hash from multiple fields
// Fields are concatenated with a delimiter for consistent hashing
func (h *Hasher) HashFields(fields ...string) string {
	// Sort fields for deterministic ordering
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)

	combined := strings.Join(sorted, "|")
	return h.HashString(combined)
}

// AssetIdentifier generates content-addressed identifiers for captured
// assets. BLAKE2b keeps hashing cheap for screenshot-sized payloads, and
// identical content always maps to the same identifier so repeated captures
// of an unchanged page deduplicate for free.
type AssetIdentifier struct {
	hasher *Hasher
}

// NewAssetIdentifier creates a new asset identifier
func NewAssetIdentifier(hasher *Hasher) *AssetIdentifier {
	if hasher == nil {
		hasher = NewHasher(BLAKE2B)
	}
	return &AssetIdentifier{hasher: hasher}
}

// ContentHash hashes raw asset bytes
func (ai *AssetIdentifier) ContentHash(content []byte) string {
	return ai.hasher.Hash(content)
}

// ShortHash generates a short (8-character) hash for display
func (ai *AssetIdentifier) ShortHash(fullHash string) string {
	if len(fullHash) < 8 {
		return fullHash
	}
	return fullHash[:8]
}

// Verify checks if a hash matches the given content
func (ai *AssetIdentifier) Verify(hash string, content []byte) bool {
	return hash == ai.ContentHash(content)
}
