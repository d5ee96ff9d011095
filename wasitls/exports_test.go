package wasitls

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wasmgate/wazero-tls/tlsresult"
)

// A module with a single one-page memory and nothing else.
var memOnlyWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version 1
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: one memory, min 1 page
}

func instantiateMemOnly(t *testing.T) api.Module {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })

	guest, err := r.Instantiate(ctx, memOnlyWasm)
	require.NoError(t, err)
	require.NotNil(t, guest.Memory())
	return guest
}

func TestDrainCapacityBoundedByGuestMemory(t *testing.T) {
	ctx := context.Background()
	m := New()
	guest := instantiateMemOnly(t)

	// A capacity far beyond the guest's one page is rejected before any
	// host buffer is sized from it, even when the handle is also bad.
	rc := m.connectionDrainTLS(ctx, guest, 999, 0, 1<<30, 0)
	assert.Equal(t, uint32(tlsresult.InvalidParameter), rc)

	rc = m.connectionRead(ctx, guest, 999, 0, 1<<30, 0)
	assert.Equal(t, uint32(tlsresult.InvalidParameter), rc)

	// A range the memory does back still reaches the handle check.
	rc = m.connectionDrainTLS(ctx, guest, 999, 0, 64, 128)
	assert.Equal(t, uint32(tlsresult.NullParameter), rc)

	rc = m.connectionRead(ctx, guest, 999, 0, 64, 128)
	assert.Equal(t, uint32(tlsresult.NullParameter), rc)
}
