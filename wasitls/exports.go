package wasitls

import (
	"context"
	"encoding/binary"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wasmgate/wazero-tls/tlsresult"
)

func (m *Module) export(b wazero.HostModuleBuilder) {
	fns := map[string]any{
		"client-config-builder-new":                      m.clientConfigBuilderNew,
		"client-config-builder-new-custom":               m.clientConfigBuilderNewCustom,
		"client-config-builder-set-certificate-verifier": m.clientConfigBuilderSetCertificateVerifier,
		"client-config-builder-use-trust-store":          m.clientConfigBuilderUseTrustStore,
		"client-config-builder-load-roots-from-file":     m.clientConfigBuilderLoadRootsFromFile,
		"client-config-builder-set-alpn-protocols":       m.clientConfigBuilderSetALPNProtocols,
		"client-config-builder-set-enable-sni":           m.clientConfigBuilderSetEnableSNI,
		"client-config-builder-set-certified-keys":       m.clientConfigBuilderSetCertifiedKeys,
		"client-config-builder-build":                    m.clientConfigBuilderBuild,
		"client-config-builder-free":                     m.clientConfigBuilderFree,
		"client-config-free":                             m.clientConfigFree,
		"client-connection-new":                          m.clientConnectionNew,
		"connection-set-userdata":                        m.connectionSetUserdata,
		"connection-wants-read":                          m.connectionWantsRead,
		"connection-wants-write":                         m.connectionWantsWrite,
		"connection-is-handshaking":                      m.connectionIsHandshaking,
		"connection-feed-tls":                            m.connectionFeedTLS,
		"connection-drain-tls":                           m.connectionDrainTLS,
		"connection-read":                                m.connectionRead,
		"connection-write":                               m.connectionWrite,
		"connection-alpn-protocol":                       m.connectionALPNProtocol,
		"connection-cipher-suite":                        m.connectionCipherSuite,
		"connection-protocol-version":                    m.connectionProtocolVersion,
		"connection-peer-certificate":                    m.connectionPeerCertificate,
		"connection-free":                                m.connectionFree,
		"certified-key-new":                              m.certifiedKeyNew,
		"certified-key-free":                             m.certifiedKeyFree,
		"root-store-new":                                 m.rootStoreNew,
		"root-store-add-pem":                             m.rootStoreAddPEM,
		"root-store-free":                                m.rootStoreFree,
		"all-cipher-suites-len":                          m.allCipherSuitesLen,
		"cipher-suite-id":                                m.cipherSuiteID,
		"cipher-suite-name":                              m.cipherSuiteName,
	}
	for name, fn := range fns {
		b.NewFunctionBuilder().WithFunc(fn).Export(name)
	}
}

// readBytes returns a view into guest memory. The view is only valid
// until the guest runs again; callees that retain data must copy it.
func readBytes(mod api.Module, ptr, length uint32) ([]byte, bool) {
	if length == 0 {
		return nil, true
	}
	return mod.Memory().Read(ptr, length)
}

func readString(mod api.Module, ptr, length uint32) (string, bool) {
	b, ok := readBytes(mod, ptr, length)
	if !ok {
		return "", false
	}
	return string(b), true
}

func readU16List(mod api.Module, ptr, count uint32) ([]uint16, bool) {
	raw, ok := readBytes(mod, ptr, count*2)
	if !ok {
		return nil, false
	}
	out := make([]uint16, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return out, true
}

func readU32List(mod api.Module, ptr, count uint32) ([]uint32, bool) {
	raw, ok := readBytes(mod, ptr, count*4)
	if !ok {
		return nil, false
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return out, true
}

func writeU32(mod api.Module, ptr, v uint32) bool {
	return mod.Memory().WriteUint32Le(ptr, v)
}

// writeOut copies data into the guest buffer at (ptr, cap) and stores
// the data's length at outLenPtr. When the buffer is too small the
// length is still stored so the guest can retry with a bigger buffer.
func writeOut(mod api.Module, data []byte, ptr, capacity, outLenPtr uint32) uint32 {
	if !writeU32(mod, outLenPtr, uint32(len(data))) {
		return uint32(tlsresult.InvalidParameter)
	}
	if uint32(len(data)) > capacity {
		return uint32(tlsresult.InsufficientSize)
	}
	if len(data) > 0 && !mod.Memory().Write(ptr, data) {
		return uint32(tlsresult.InvalidParameter)
	}
	return uint32(tlsresult.Ok)
}

func badMemory() uint32 { return uint32(tlsresult.InvalidParameter) }

// --- client-config-builder ---

func (m *Module) clientConfigBuilderNew(_ context.Context) uint32 {
	return m.surface.ClientConfigBuilderNew()
}

func (m *Module) clientConfigBuilderNewCustom(_ context.Context, mod api.Module, suitesPtr, suitesLen, versionsPtr, versionsLen, outHandlePtr uint32) uint32 {
	suites, ok := readU16List(mod, suitesPtr, suitesLen)
	if !ok {
		return badMemory()
	}
	versions, ok := readU16List(mod, versionsPtr, versionsLen)
	if !ok {
		return badMemory()
	}
	h, rc := m.surface.ClientConfigBuilderNewCustom(suites, versions)
	if !writeU32(mod, outHandlePtr, h) {
		return badMemory()
	}
	return uint32(rc)
}

func (m *Module) clientConfigBuilderSetCertificateVerifier(_ context.Context, mod api.Module, builder, fnNamePtr, fnNameLen uint32) uint32 {
	name, ok := readString(mod, fnNamePtr, fnNameLen)
	if !ok {
		return badMemory()
	}
	cb, err := m.newGuestVerifier(mod, name)
	if err != nil {
		m.log.Warn("guest verifier registration failed",
			zap.String("module", mod.Name()),
			zap.String("export", name),
			zap.Error(err))
		return uint32(tlsresult.InvalidParameter)
	}
	return uint32(m.surface.ClientConfigBuilderSetCertificateVerifier(builder, cb))
}

func (m *Module) clientConfigBuilderUseTrustStore(_ context.Context, builder, roots uint32) uint32 {
	return uint32(m.surface.ClientConfigBuilderUseTrustStore(builder, roots))
}

func (m *Module) clientConfigBuilderLoadRootsFromFile(_ context.Context, mod api.Module, builder, pathPtr, pathLen uint32) uint32 {
	path, ok := readString(mod, pathPtr, pathLen)
	if !ok {
		return badMemory()
	}
	return uint32(m.surface.ClientConfigBuilderLoadRootsFromFile(builder, path))
}

// The ALPN list crosses the boundary as a list of (ptr, len) pairs, 8
// bytes per entry, component-model list layout.
func (m *Module) clientConfigBuilderSetALPNProtocols(_ context.Context, mod api.Module, builder, listPtr, listLen uint32) uint32 {
	pairs, ok := readU32List(mod, listPtr, listLen*2)
	if !ok {
		return badMemory()
	}
	protocols := make([][]byte, listLen)
	for i := range protocols {
		p, ok := readBytes(mod, pairs[i*2], pairs[i*2+1])
		if !ok {
			return badMemory()
		}
		protocols[i] = p
	}
	return uint32(m.surface.ClientConfigBuilderSetALPNProtocols(builder, protocols))
}

func (m *Module) clientConfigBuilderSetEnableSNI(_ context.Context, builder, enable uint32) uint32 {
	return uint32(m.surface.ClientConfigBuilderSetEnableSNI(builder, enable != 0))
}

func (m *Module) clientConfigBuilderSetCertifiedKeys(_ context.Context, mod api.Module, builder, keysPtr, keysLen uint32) uint32 {
	keys, ok := readU32List(mod, keysPtr, keysLen)
	if !ok {
		return badMemory()
	}
	return uint32(m.surface.ClientConfigBuilderSetCertifiedKeys(builder, keys))
}

func (m *Module) clientConfigBuilderBuild(_ context.Context, mod api.Module, builder, outHandlePtr uint32) uint32 {
	h, rc := m.surface.ClientConfigBuilderBuild(builder)
	if !writeU32(mod, outHandlePtr, h) {
		return badMemory()
	}
	return uint32(rc)
}

func (m *Module) clientConfigBuilderFree(_ context.Context, builder uint32) {
	m.surface.ClientConfigBuilderFree(builder)
}

// --- client-config / client-connection ---

func (m *Module) clientConfigFree(_ context.Context, config uint32) {
	m.surface.ClientConfigFree(config)
}

func (m *Module) clientConnectionNew(_ context.Context, mod api.Module, config, namePtr, nameLen, outHandlePtr uint32) uint32 {
	name, ok := readString(mod, namePtr, nameLen)
	if !ok {
		return badMemory()
	}
	h, rc := m.surface.ClientConnectionNew(config, name)
	if !writeU32(mod, outHandlePtr, h) {
		return badMemory()
	}
	return uint32(rc)
}

// --- connection ---

func (m *Module) connectionSetUserdata(_ context.Context, conn, userdata uint32) uint32 {
	return uint32(m.surface.ConnectionSetUserdata(conn, userdata))
}

func (m *Module) connectionWantsRead(_ context.Context, conn uint32) uint32 {
	return b2u(m.surface.ConnectionWantsRead(conn))
}

func (m *Module) connectionWantsWrite(_ context.Context, conn uint32) uint32 {
	return b2u(m.surface.ConnectionWantsWrite(conn))
}

func (m *Module) connectionIsHandshaking(_ context.Context, conn uint32) uint32 {
	return b2u(m.surface.ConnectionIsHandshaking(conn))
}

func (m *Module) connectionFeedTLS(_ context.Context, mod api.Module, conn, ptr, length uint32) uint32 {
	b, ok := readBytes(mod, ptr, length)
	if !ok {
		return badMemory()
	}
	return uint32(m.surface.ConnectionFeedTLS(conn, b))
}

func (m *Module) connectionDrainTLS(_ context.Context, mod api.Module, conn, ptr, capacity, outLenPtr uint32) uint32 {
	// capacity sizes a host buffer, so the (ptr, capacity) range must be
	// backed by guest memory before anything is allocated.
	if _, ok := readBytes(mod, ptr, capacity); !ok {
		return badMemory()
	}
	buf := make([]byte, capacity)
	n, rc := m.surface.ConnectionDrainTLS(conn, buf)
	if rc != tlsresult.Ok {
		return uint32(rc)
	}
	return writeOut(mod, buf[:n], ptr, capacity, outLenPtr)
}

func (m *Module) connectionRead(_ context.Context, mod api.Module, conn, ptr, capacity, outLenPtr uint32) uint32 {
	if _, ok := readBytes(mod, ptr, capacity); !ok {
		return badMemory()
	}
	buf := make([]byte, capacity)
	n, rc := m.surface.ConnectionRead(conn, buf)
	if rc != tlsresult.Ok {
		return uint32(rc)
	}
	return writeOut(mod, buf[:n], ptr, capacity, outLenPtr)
}

func (m *Module) connectionWrite(_ context.Context, mod api.Module, conn, ptr, length, outLenPtr uint32) uint32 {
	b, ok := readBytes(mod, ptr, length)
	if !ok {
		return badMemory()
	}
	n, rc := m.surface.ConnectionWrite(conn, b)
	if rc != tlsresult.Ok {
		return uint32(rc)
	}
	if !writeU32(mod, outLenPtr, uint32(n)) {
		return badMemory()
	}
	return uint32(tlsresult.Ok)
}

func (m *Module) connectionALPNProtocol(_ context.Context, mod api.Module, conn, ptr, capacity, outLenPtr uint32) uint32 {
	proto := m.surface.ConnectionALPNProtocol(conn)
	if proto == nil {
		return uint32(tlsresult.NotFound)
	}
	return writeOut(mod, proto, ptr, capacity, outLenPtr)
}

func (m *Module) connectionCipherSuite(_ context.Context, conn uint32) uint32 {
	return uint32(m.surface.ConnectionNegotiatedCipherSuite(conn))
}

func (m *Module) connectionProtocolVersion(_ context.Context, conn uint32) uint32 {
	return uint32(m.surface.ConnectionProtocolVersion(conn))
}

func (m *Module) connectionPeerCertificate(_ context.Context, mod api.Module, conn, index, ptr, capacity, outLenPtr uint32) uint32 {
	der := m.surface.ConnectionPeerCertificate(conn, int(index))
	if der == nil {
		return uint32(tlsresult.NotFound)
	}
	return writeOut(mod, der, ptr, capacity, outLenPtr)
}

func (m *Module) connectionFree(_ context.Context, conn uint32) {
	m.surface.ConnectionFree(conn)
}

// --- certified-key / root-store ---

func (m *Module) certifiedKeyNew(_ context.Context, mod api.Module, chainPtr, chainLen, keyPtr, keyLen, outHandlePtr uint32) uint32 {
	chain, ok := readBytes(mod, chainPtr, chainLen)
	if !ok {
		return badMemory()
	}
	key, ok := readBytes(mod, keyPtr, keyLen)
	if !ok {
		return badMemory()
	}
	h, rc := m.surface.CertifiedKeyNew(chain, key)
	if !writeU32(mod, outHandlePtr, h) {
		return badMemory()
	}
	return uint32(rc)
}

func (m *Module) certifiedKeyFree(_ context.Context, key uint32) {
	m.surface.CertifiedKeyFree(key)
}

func (m *Module) rootStoreNew(_ context.Context) uint32 {
	return m.surface.RootStoreNew()
}

func (m *Module) rootStoreAddPEM(_ context.Context, mod api.Module, store, ptr, length, strict uint32) uint32 {
	pemData, ok := readBytes(mod, ptr, length)
	if !ok {
		return badMemory()
	}
	return uint32(m.surface.RootStoreAddPEM(store, pemData, strict != 0))
}

func (m *Module) rootStoreFree(_ context.Context, store uint32) {
	m.surface.RootStoreFree(store)
}

// --- cipher-suite catalog ---

func (m *Module) allCipherSuitesLen(_ context.Context) uint32 {
	return uint32(len(m.surface.AllCipherSuites()))
}

func (m *Module) cipherSuiteID(_ context.Context, index uint32) uint32 {
	suites := m.surface.AllCipherSuites()
	if int(index) >= len(suites) {
		return 0
	}
	return uint32(suites[index].ID)
}

func (m *Module) cipherSuiteName(_ context.Context, mod api.Module, index, ptr, capacity, outLenPtr uint32) uint32 {
	suites := m.surface.AllCipherSuites()
	if int(index) >= len(suites) {
		return uint32(tlsresult.NotFound)
	}
	return writeOut(mod, []byte(suites[index].Name), ptr, capacity, outLenPtr)
}

func b2u(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
