package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoll_Deterministic(t *testing.T) {
	a := Roll(42, "dna", 7)
	b := Roll(42, "dna", 7)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, 0.0)
	assert.Less(t, a, 1.0)
}

func TestRoll_DiffersByTag(t *testing.T) {
	a := Roll(42, "dna", 7)
	b := Roll(42, "negotiate.outcome", 7)
	assert.NotEqual(t, a, b)
}

func TestRoll_DiffersByNonce(t *testing.T) {
	a := Roll(42, "dna", 7)
	b := Roll(42, "dna", 8)
	assert.NotEqual(t, a, b)
}

func TestRollInt_Bounds(t *testing.T) {
	for nonce := int64(0); nonce < 200; nonce++ {
		v := RollInt(42, "qty", nonce, 1, 5)
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, 5)
	}
}
