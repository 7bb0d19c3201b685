package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterminism(t *testing.T) {
	doc := map[string]any{"queryType": "timeseries", "granularity": "day"}

	h1, err := Hash(DomainQuery, doc)
	require.NoError(t, err)
	h2, err := Hash(DomainQuery, doc)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "Hash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestHashIgnoresKeyOrder(t *testing.T) {
	a := []byte(`{"queryType":"timeseries","granularity":"day"}`)
	b := []byte(`{"granularity":"day","queryType":"timeseries"}`)

	ca, err := Canonicalize(a)
	require.NoError(t, err)
	cb, err := Canonicalize(b)
	require.NoError(t, err)

	assert.Equal(t, HashCanonical(DomainQuery, ca), HashCanonical(DomainQuery, cb))
}

func TestHashChangesWithContent(t *testing.T) {
	h1 := MustHash(DomainQuery, map[string]any{"granularity": "day"})
	h2 := MustHash(DomainQuery, map[string]any{"granularity": "hour"})

	assert.NotEqual(t, h1, h2)
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	doc := map[string]any{"queryType": "groupBy"}

	assert.NotEqual(t, MustHash(DomainQuery, doc), MustHash(DomainPrecompiled, doc))
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	got := hashWithDomain("ab", []byte("c"))

	sum := sha256.Sum256([]byte("ab\x00c"))
	assert.Equal(t, hex.EncodeToString(sum[:]), got)
	assert.NotEqual(t, got, hashWithDomain("a", []byte("bc")))
}

func TestHashErrorHandling(t *testing.T) {
	_, err := Hash(DomainQuery, make(chan int))
	assert.Error(t, err)

	assert.Panics(t, func() { MustHash(DomainQuery, func() {}) })
}

func TestEqual(t *testing.T) {
	type doc struct {
		Limit *int   `json:"limit,omitempty"`
		Name  string `json:"name"`
	}
	type docWithNull struct {
		Limit *int   `json:"limit"`
		Name  string `json:"name"`
	}

	eq, err := Equal(doc{Name: "x"}, docWithNull{Name: "x"})
	require.NoError(t, err)
	assert.True(t, eq, "omitted and null optionals are equal")

	limit := 3
	eq, err = Equal(doc{Name: "x", Limit: &limit}, docWithNull{Name: "x"})
	require.NoError(t, err)
	assert.False(t, eq)
}
