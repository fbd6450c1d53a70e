package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherAlgorithms(t *testing.T) {
	data := []byte("click #submit")

	sha := NewHasher(SHA256).Hash(data)
	blake := NewHasher(BLAKE2B).Hash(data)

	assert.Len(t, sha, 64)
	assert.Len(t, blake, 64)
	assert.NotEqual(t, sha, blake)

	// Deterministic per algorithm
	assert.Equal(t, sha, NewHasher(SHA256).Hash(data))
	assert.Equal(t, blake, NewHasher(BLAKE2B).Hash(data))
}

func TestHashJSON(t *testing.T) {
	h := DefaultHasher()

	first, err := h.HashJSON(map[string]interface{}{"type": "click", "x": 10})
	require.NoError(t, err)

	second, err := h.HashJSON(map[string]interface{}{"type": "click", "x": 10})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestHashFieldsOrderIndependent(t *testing.T) {
	h := DefaultHasher()

	assert.Equal(t, h.HashFields("a", "b", "c"), h.HashFields("c", "a", "b"))
	assert.NotEqual(t, h.HashFields("a", "b"), h.HashFields("a", "b", "c"))
}

func TestAssetIdentifier(t *testing.T) {
	ai := NewAssetIdentifier(nil)

	content := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	hash := ai.ContentHash(content)

	assert.Len(t, hash, 64)
	assert.True(t, ai.Verify(hash, content))
	assert.False(t, ai.Verify(hash, []byte("other")))
	assert.Len(t, ai.ShortHash(hash), 8)
}
