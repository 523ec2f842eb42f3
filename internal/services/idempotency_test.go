package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdempotencyGuardClaimsOnce(t *testing.T) {
	g := NewIdempotencyGuard()

	assert.True(t, g.BeginProcessing("sess-1", "order-1", "pay-1"))
	assert.False(t, g.BeginProcessing("sess-1", "order-1", "pay-1"))
	assert.False(t, g.BeginProcessing("sess-1", "order-1", "pay-1"))
}

func TestIdempotencyGuardSeparatesKeys(t *testing.T) {
	g := NewIdempotencyGuard()

	assert.True(t, g.BeginProcessing("sess-1", "order-1", "pay-1"))
	assert.True(t, g.BeginProcessing("sess-1", "order-2", "pay-2"))
	assert.True(t, g.BeginProcessing("sess-2", "order-1", "pay-1"))
}

func TestIdempotencyGuardNeverReopensAfterFailure(t *testing.T) {
	g := NewIdempotencyGuard()

	// A claim stands even when the attempt behind it failed; a retry must
	// come in as a fresh order.
	assert.True(t, g.BeginProcessing("sess-1", "order-1", "pay-1"))
	assert.False(t, g.BeginProcessing("sess-1", "order-1", "pay-1"))
	assert.True(t, g.BeginProcessing("sess-1", "order-retry", "pay-retry"))
}

func TestIdempotencyGuardReleaseSession(t *testing.T) {
	g := NewIdempotencyGuard()

	assert.True(t, g.BeginProcessing("sess-1", "order-1", "pay-1"))
	assert.True(t, g.BeginProcessing("sess-2", "order-1", "pay-1"))

	g.ReleaseSession("sess-1")

	assert.True(t, g.BeginProcessing("sess-1", "order-1", "pay-1"))
	assert.False(t, g.BeginProcessing("sess-2", "order-1", "pay-1"))
}
