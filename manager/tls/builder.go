package tls

import (
	"fmt"
)

// Builder accumulates a client configuration. It is exclusively owned by
// its creator and is not safe for concurrent mutation; all operations on
// one builder must be serialized by the caller. Build finalizes it into
// an immutable Config.
type Builder struct {
	suites    []uint16 // nil means the engine's default selection
	versions  []uint16
	verifier  Verifier
	alpn      [][]byte
	enableSNI bool
	resolver  *clientCertResolver
}

// NewBuilder returns a builder preloaded with the engine's safe default
// cipher and version selection and a deny-all verifier. No trusted roots
// are configured: without a root store or a custom verifier, no
// handshake built from this builder can succeed.
func NewBuilder() *Builder {
	return &Builder{
		versions:  []uint16{versionTLS12, versionTLS13},
		verifier:  denyAllVerifier{},
		enableSNI: true,
	}
}

// NewCustomBuilder is NewBuilder with an explicit cipher-suite selection
// (in preference order) and an explicit protocol-version selection. Every
// requested suite must be in the supported catalog. Unrecognized version
// numbers are dropped silently; an empty resulting selection fails.
//
// The engine applies the suite selection to TLS 1.2 negotiation only:
// TLS 1.3 suites are fixed by the protocol engine and not configurable.
func NewCustomBuilder(suiteIDs []uint16, versionNums []uint16) (*Builder, error) {
	if len(suiteIDs) == 0 {
		return nil, fmt.Errorf("%w: empty cipher suite selection", ErrUnknownCipherSuite)
	}
	suites := make([]uint16, 0, len(suiteIDs))
	for _, id := range suiteIDs {
		if _, ok := FindCipherSuite(id); !ok {
			return nil, fmt.Errorf("%w: 0x%04x", ErrUnknownCipherSuite, id)
		}
		suites = append(suites, id)
	}
	versions := filterVersions(versionNums)
	if len(versions) == 0 {
		return nil, ErrNoSupportedVersions
	}
	b := NewBuilder()
	b.suites = suites
	b.versions = versions
	return b, nil
}

// SetCallbackVerifier installs a foreign-callback verifier. A nil
// callback is rejected here, at registration time, never at call time.
func (b *Builder) SetCallbackVerifier(cb VerifyCallback) error {
	v, err := newCallbackVerifier(cb)
	if err != nil {
		return err
	}
	b.verifier = v
	return nil
}

// SetVerifier installs an arbitrary verifier implementation.
func (b *Builder) SetVerifier(v Verifier) error {
	if v == nil {
		return ErrNilCallback
	}
	b.verifier = v
	return nil
}

// UseTrustStore installs a trust-store verifier over a clone of the
// store's current pool. Later mutation of the store does not affect this
// builder or any config built from it.
func (b *Builder) UseTrustStore(store *RootStore) {
	b.verifier = newTrustStoreVerifier(store)
}

// LoadRootsFromFile parses the named PEM file into a fresh trust store
// and installs a trust-store verifier over it. Partial success installs
// the roots that parsed and still reports ErrCertificateParse.
func (b *Builder) LoadRootsFromFile(path string) error {
	store, err := LoadRootsFromFile(path)
	if store != nil && store.Len() > 0 {
		b.UseTrustStore(store)
	}
	return err
}

// SetALPNProtocols replaces the ALPN list with a deep copy of protocols;
// the caller may free its buffers immediately after the call. An empty
// list disables ALPN advertisement.
func (b *Builder) SetALPNProtocols(protocols [][]byte) {
	if len(protocols) == 0 {
		b.alpn = nil
		return
	}
	alpn := make([][]byte, len(protocols))
	for i, p := range protocols {
		alpn[i] = append([]byte(nil), p...)
	}
	b.alpn = alpn
}

// SetEnableSNI toggles sending the server name during the handshake.
// The default is enabled.
func (b *Builder) SetEnableSNI(enable bool) {
	b.enableSNI = enable
}

// SetCertifiedKeys installs a client-certificate resolver over the given
// keys, in the caller's preference order. The keys are referenced, not
// copied; the same key may back any number of builders and configs.
// Installing replaces any previously installed resolver.
func (b *Builder) SetCertifiedKeys(keys []*CertifiedKey) error {
	for i, k := range keys {
		if k == nil {
			return fmt.Errorf("nil certified key at index %d", i)
		}
	}
	b.resolver = newClientCertResolver(keys)
	return nil
}

// Build finalizes the builder into an immutable Config. If no verifier
// was configured the deny-all verifier stays in place; if no certified
// keys were set the config performs no client auth. The builder must not
// be used again after Build.
func (b *Builder) Build() *Config {
	return &Config{
		suites:    b.suites,
		versions:  b.versions,
		verifier:  b.verifier,
		alpn:      b.alpn,
		enableSNI: b.enableSNI,
		resolver:  b.resolver,
	}
}
