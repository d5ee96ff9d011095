package bytespool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSizes(t *testing.T) {
	assert.GreaterOrEqual(t, len(Get(1)), 1)
	assert.GreaterOrEqual(t, len(Get(4096)), 4096)
	assert.GreaterOrEqual(t, len(Get(16384)), 16384)
	assert.Equal(t, 100000, len(Get(100000)))
}

func TestPutRoundTrip(t *testing.T) {
	b := Get(64)
	b[0] = 0xff
	Put(b)

	// Oversized buffers are not pooled; Put must not panic on them.
	Put(make([]byte, 100000))
	Put(nil)
}
