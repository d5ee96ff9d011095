// Package wasitls exposes the TLS client boundary surface to wasm
// guests as a wazero host module. Every host function takes and returns
// plain u32 values; buffers cross the boundary as (ptr, len) pairs into
// guest linear memory, and every fallible function returns a stable
// result code.
package wasitls

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wasmgate/wazero-tls/tlsapi"
)

// ModuleName is the import namespace guests link against.
const ModuleName = "wasi:tls/client@0.1.0-draft"

// Module is one host-module instance. All guest modules instantiated in
// the same runtime share its handle tables.
type Module struct {
	surface *tlsapi.Surface
	log     *zap.Logger

	// wazero guest modules are not safe for concurrent calls; every
	// call back into a guest (the verifier callback) takes this lock.
	guestMu sync.Mutex
}

// Option configures a Module.
type Option func(*Module)

// WithLogger routes host-module diagnostics through the given logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.log = l
		}
	}
}

// New creates a host module backed by a fresh boundary surface.
func New(opts ...Option) *Module {
	m := &Module{log: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	m.surface = tlsapi.NewSurface(tlsapi.WithLogger(m.log))
	return m
}

// Surface returns the boundary surface behind the module, for host-side
// callers that share handles with guests.
func (m *Module) Surface() *tlsapi.Surface {
	return m.surface
}

// Instantiate registers and instantiates the host module on r.
func (m *Module) Instantiate(ctx context.Context, r wazero.Runtime) error {
	b := r.NewHostModuleBuilder(ModuleName)
	m.export(b)
	_, err := b.Instantiate(ctx)
	return err
}
