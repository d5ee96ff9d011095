package tlsapi

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmgate/wazero-tls/tlsresult"
)

// selfSignedPEM returns a certificate and matching key in PEM form.
func selfSignedPEM(t *testing.T) (certPEM, keyPEM []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:         true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func TestBuilderLifecycle(t *testing.T) {
	s := NewSurface()

	b := s.ClientConfigBuilderNew()
	require.NotZero(t, b)

	cfg, rc := s.ClientConfigBuilderBuild(b)
	require.Equal(t, tlsresult.Ok, rc)
	require.NotZero(t, cfg)

	// Build consumed the builder: every further use fails, free included.
	rc = s.ClientConfigBuilderSetEnableSNI(b, false)
	assert.Equal(t, tlsresult.NullParameter, rc)
	_, rc = s.ClientConfigBuilderBuild(b)
	assert.Equal(t, tlsresult.NullParameter, rc)
	s.ClientConfigBuilderFree(b) // no-op

	s.ClientConfigFree(cfg)
}

func TestBuilderNewCustom(t *testing.T) {
	s := NewSurface()
	suites := s.AllCipherSuites()
	require.NotEmpty(t, suites)

	b, rc := s.ClientConfigBuilderNewCustom([]uint16{suites[0].ID}, []uint16{0x0304})
	require.Equal(t, tlsresult.Ok, rc)
	require.NotZero(t, b)
	s.ClientConfigBuilderFree(b)

	// Unknown suite produces no handle.
	b, rc = s.ClientConfigBuilderNewCustom([]uint16{0xffff}, []uint16{0x0304})
	assert.Equal(t, tlsresult.InvalidParameter, rc)
	assert.Zero(t, b)

	// All versions filtered out produces no handle either.
	b, rc = s.ClientConfigBuilderNewCustom([]uint16{suites[0].ID}, []uint16{0x0301})
	assert.Equal(t, tlsresult.InvalidParameter, rc)
	assert.Zero(t, b)
}

func TestFreeNullHandlesAreNoOps(t *testing.T) {
	s := NewSurface()
	assert.NotPanics(t, func() {
		s.ClientConfigBuilderFree(0)
		s.ClientConfigFree(0)
		s.ConnectionFree(0)
		s.CertifiedKeyFree(0)
		s.RootStoreFree(0)
	})
}

func TestStaleHandlesFail(t *testing.T) {
	s := NewSurface()
	const stale = Handle(12345)

	assert.Equal(t, tlsresult.NullParameter, s.ClientConfigBuilderSetEnableSNI(stale, true))
	assert.Equal(t, tlsresult.NullParameter, s.ClientConfigBuilderUseTrustStore(stale, stale))
	assert.Equal(t, tlsresult.NullParameter, s.ConnectionFeedTLS(stale, []byte{1}))
	assert.Equal(t, tlsresult.NullParameter, s.ConnectionSetUserdata(stale, 1))
	assert.Equal(t, tlsresult.NullParameter, s.RootStoreAddPEM(stale, []byte("x"), false))

	_, rc := s.ClientConnectionNew(stale, "example.com")
	assert.Equal(t, tlsresult.NullParameter, rc)
	_, rc = s.ConnectionRead(stale, make([]byte, 8))
	assert.Equal(t, tlsresult.NullParameter, rc)

	assert.False(t, s.ConnectionWantsRead(stale))
	assert.False(t, s.ConnectionIsHandshaking(stale))
	assert.Nil(t, s.ConnectionALPNProtocol(stale))
	assert.Zero(t, s.ConnectionNegotiatedCipherSuite(stale))
}

func TestRootStoreOps(t *testing.T) {
	s := NewSurface()
	certPEM, _ := selfSignedPEM(t)

	store := s.RootStoreNew()
	require.NotZero(t, store)

	assert.Equal(t, tlsresult.Ok, s.RootStoreAddPEM(store, certPEM, true))
	assert.Equal(t, tlsresult.NullParameter, s.RootStoreAddPEM(store, nil, true))
	assert.Equal(t, tlsresult.CertificateParse, s.RootStoreAddPEM(store, []byte("junk"), true))

	b := s.ClientConfigBuilderNew()
	assert.Equal(t, tlsresult.Ok, s.ClientConfigBuilderUseTrustStore(b, store))

	// The builder took a snapshot; the store can go away first.
	s.RootStoreFree(store)
	cfg, rc := s.ClientConfigBuilderBuild(b)
	require.Equal(t, tlsresult.Ok, rc)
	s.ClientConfigFree(cfg)
}

func TestCertifiedKeyOps(t *testing.T) {
	s := NewSurface()
	certPEM, keyPEM := selfSignedPEM(t)

	key, rc := s.CertifiedKeyNew(certPEM, keyPEM)
	require.Equal(t, tlsresult.Ok, rc)
	require.NotZero(t, key)

	_, rc = s.CertifiedKeyNew(nil, keyPEM)
	assert.Equal(t, tlsresult.NullParameter, rc)
	_, rc = s.CertifiedKeyNew([]byte("junk"), keyPEM)
	assert.Equal(t, tlsresult.CertificateParse, rc)
	_, rc = s.CertifiedKeyNew(certPEM, []byte("junk"))
	assert.Equal(t, tlsresult.PrivateKeyParse, rc)

	b := s.ClientConfigBuilderNew()
	assert.Equal(t, tlsresult.Ok, s.ClientConfigBuilderSetCertifiedKeys(b, []Handle{key}))

	// A stale key handle in the list rejects the whole call.
	assert.Equal(t, tlsresult.NullParameter,
		s.ClientConfigBuilderSetCertifiedKeys(b, []Handle{key, 9999}))

	// The builder retains the key; the caller's free is not the last.
	s.CertifiedKeyFree(key)
	cfg, rc := s.ClientConfigBuilderBuild(b)
	require.Equal(t, tlsresult.Ok, rc)
	s.ClientConfigFree(cfg)
}

func TestKeyReleasedWithUnbuiltBuilder(t *testing.T) {
	s := NewSurface()
	certPEM, keyPEM := selfSignedPEM(t)

	key, rc := s.CertifiedKeyNew(certPEM, keyPEM)
	require.Equal(t, tlsresult.Ok, rc)

	b := s.ClientConfigBuilderNew()
	require.Equal(t, tlsresult.Ok, s.ClientConfigBuilderSetCertifiedKeys(b, []Handle{key}))
	s.ClientConfigBuilderFree(b)

	// The builder's reference is gone; the caller's is still live.
	b2 := s.ClientConfigBuilderNew()
	assert.Equal(t, tlsresult.Ok, s.ClientConfigBuilderSetCertifiedKeys(b2, []Handle{key}))
	s.ClientConfigBuilderFree(b2)
	s.CertifiedKeyFree(key)

	// Now it is dead.
	b3 := s.ClientConfigBuilderNew()
	assert.Equal(t, tlsresult.NullParameter, s.ClientConfigBuilderSetCertifiedKeys(b3, []Handle{key}))
	s.ClientConfigBuilderFree(b3)
}

func TestConnectionLifecycle(t *testing.T) {
	s := NewSurface()

	b := s.ClientConfigBuilderNew()
	cfg, rc := s.ClientConfigBuilderBuild(b)
	require.Equal(t, tlsresult.Ok, rc)

	conn, rc := s.ClientConnectionNew(cfg, "example.com")
	require.Equal(t, tlsresult.Ok, rc)
	require.NotZero(t, conn)

	assert.True(t, s.ConnectionIsHandshaking(conn))
	assert.Equal(t, tlsresult.Ok, s.ConnectionSetUserdata(conn, uint32(7)))

	// Nothing decrypted yet reads as empty success.
	n, rc := s.ConnectionRead(conn, make([]byte, 16))
	assert.Equal(t, tlsresult.Ok, rc)
	assert.Zero(t, n)

	// Introspection before completion reads sentinels.
	assert.Nil(t, s.ConnectionALPNProtocol(conn))
	assert.Zero(t, s.ConnectionNegotiatedCipherSuite(conn))
	assert.Zero(t, s.ConnectionProtocolVersion(conn))
	assert.Nil(t, s.ConnectionPeerCertificate(conn, 0))

	// The connection holds the config alive: freeing the caller's
	// handle now must not break the connection.
	s.ClientConfigFree(cfg)
	assert.Equal(t, tlsresult.Ok, s.ConnectionFeedTLS(conn, nil))

	s.ConnectionFree(conn)
	assert.False(t, s.ConnectionIsHandshaking(conn))
	s.ConnectionFree(conn) // double free is a no-op
}

func TestClientConnectionNewValidatesName(t *testing.T) {
	s := NewSurface()
	b := s.ClientConfigBuilderNew()
	cfg, rc := s.ClientConfigBuilderBuild(b)
	require.Equal(t, tlsresult.Ok, rc)
	defer s.ClientConfigFree(cfg)

	conn, rc := s.ClientConnectionNew(cfg, "")
	assert.Equal(t, tlsresult.NullParameter, rc)
	assert.Zero(t, conn)

	conn, rc = s.ClientConnectionNew(cfg, "192.0.2.7")
	assert.Equal(t, tlsresult.InvalidDnsName, rc)
	assert.Zero(t, conn)

	// A failed construction takes no config reference.
	s.ClientConfigFree(cfg)
	_, rc = s.ClientConnectionNew(cfg, "example.com")
	assert.Equal(t, tlsresult.NullParameter, rc)
}

func TestConnectionDrainsClientHello(t *testing.T) {
	s := NewSurface()
	b := s.ClientConfigBuilderNew()
	cfg, rc := s.ClientConfigBuilderBuild(b)
	require.Equal(t, tlsresult.Ok, rc)
	defer s.ClientConfigFree(cfg)

	conn, rc := s.ClientConnectionNew(cfg, "example.com")
	require.Equal(t, tlsresult.Ok, rc)
	defer s.ConnectionFree(conn)

	require.Eventually(t, func() bool { return s.ConnectionWantsWrite(conn) },
		5*time.Second, time.Millisecond)

	n, rc := s.ConnectionDrainTLS(conn, make([]byte, 32*1024))
	assert.Equal(t, tlsresult.Ok, rc)
	assert.Greater(t, n, 0)
	assert.False(t, s.ConnectionWantsWrite(conn))
}

func TestBoundarySurvivesPanicInCallback(t *testing.T) {
	s := NewSurface()
	b := s.ClientConfigBuilderNew()
	rc := s.ClientConfigBuilderSetCertificateVerifier(b, func(any, *VerifyParams) uint32 {
		panic("never invoked here")
	})
	assert.Equal(t, tlsresult.Ok, rc)
	s.ClientConfigBuilderFree(b)

	// Nil callback is rejected at registration.
	b2 := s.ClientConfigBuilderNew()
	assert.Equal(t, tlsresult.InvalidParameter, s.ClientConfigBuilderSetCertificateVerifier(b2, nil))
	s.ClientConfigBuilderFree(b2)
}
