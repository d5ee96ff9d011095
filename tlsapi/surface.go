// Package tlsapi is the boundary surface of the module: a flat set of
// entry points over opaque handles and stable result codes, suitable for
// exposure to foreign callers that have no notion of Go ownership or
// panics. Every entry point runs inside the fault boundary, so a fault
// anywhere below it surfaces as a result code, never as an unwind.
package tlsapi

import (
	"go.uber.org/zap"

	"github.com/wasmgate/wazero-tls/hostabi"
	manager_tls "github.com/wasmgate/wazero-tls/manager/tls"
	"github.com/wasmgate/wazero-tls/tlsresult"
)

// Handle is an opaque reference to a boundary-owned resource.
type Handle = hostabi.Handle

// Result is the stable result code every fallible entry point returns.
type Result = tlsresult.Result

// VerifyParams and VerifyCallback form the foreign verifier contract.
type (
	VerifyParams   = manager_tls.VerifyParams
	VerifyCallback = manager_tls.VerifyCallback
)

type builderState struct {
	builder    *manager_tls.Builder
	keyHandles []Handle
}

type configState struct {
	config     *manager_tls.Config
	keyHandles []Handle
}

type connState struct {
	conn   *manager_tls.Connection
	config Handle
}

// Surface owns the handle tables behind one boundary instance. Handles
// from different surfaces are unrelated; embedders typically create one
// Surface per foreign runtime they host.
//
// Handle kinds follow the ownership model: builders, connections and
// root stores are exclusively owned (free is destruction; build consumes
// the builder); configs and certified keys are shared and ref-counted
// (free decrements, destruction happens at zero).
type Surface struct {
	boundary *hostabi.Boundary
	log      *zap.Logger

	builders *hostabi.Table[*builderState]
	configs  *hostabi.SharedTable[*configState]
	conns    *hostabi.Table[*connState]
	keys     *hostabi.SharedTable[*manager_tls.CertifiedKey]
	roots    *hostabi.Table[*manager_tls.RootStore]
}

// Option configures a Surface.
type Option func(*Surface)

// WithLogger routes boundary diagnostics (notably trapped panics)
// through the given logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Surface) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSurface creates an empty boundary surface.
func NewSurface(opts ...Option) *Surface {
	s := &Surface{log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.boundary = hostabi.NewBoundary(s.log)
	s.keys = hostabi.NewSharedTable[*manager_tls.CertifiedKey](nil)
	s.roots = hostabi.NewTable[*manager_tls.RootStore](nil)
	s.builders = hostabi.NewTable(func(st *builderState) {
		s.releaseKeys(st.keyHandles)
	})
	s.configs = hostabi.NewSharedTable(func(st *configState) {
		s.releaseKeys(st.keyHandles)
	})
	s.conns = hostabi.NewTable(func(st *connState) {
		_ = st.conn.Close()
		s.configs.Release(st.config)
	})
	return s
}

func (s *Surface) releaseKeys(handles []Handle) {
	for _, h := range handles {
		s.keys.Release(h)
	}
}

// guard runs a fallible entry point inside the fault boundary.
func (s *Surface) guard(fn func() Result) Result {
	return hostabi.Guard(s.boundary, tlsresult.General, fn)
}

// guardBool runs a predicate entry point; a trapped fault reads false.
func (s *Surface) guardBool(fn func() bool) bool {
	return hostabi.Guard(s.boundary, false, fn)
}

// AllCipherSuites returns the supported cipher-suite catalog. Entries
// are plain values; their IDs are valid inputs to
// ClientConfigBuilderNewCustom.
func (s *Surface) AllCipherSuites() []manager_tls.SupportedCipherSuite {
	return hostabi.Guard(s.boundary, nil, manager_tls.AllCipherSuites)
}
