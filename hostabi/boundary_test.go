package hostabi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGuardPassesThrough(t *testing.T) {
	b := NewBoundary(nil)
	got := Guard(b, uint32(99), func() uint32 { return 7 })
	assert.EqualValues(t, 7, got)
}

func TestGuardTrapsPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	b := NewBoundary(zap.New(core))

	got := Guard(b, uint32(99), func() uint32 {
		panic("boom")
	})
	assert.EqualValues(t, 99, got)

	entries := logs.All()
	assert.Len(t, entries, 1)
	assert.Equal(t, "trapped panic at boundary", entries[0].Message)
}

func TestGuardHandleFallsBackToZero(t *testing.T) {
	b := NewBoundary(nil)
	h := b.GuardHandle(func() Handle {
		panic("boom")
	})
	assert.Zero(t, h)
}

func TestGuardVoidSwallowsPanic(t *testing.T) {
	b := NewBoundary(nil)
	assert.NotPanics(t, func() {
		b.GuardVoid(func() { panic("boom") })
	})
}
