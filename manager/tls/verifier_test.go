package tls

import (
	"crypto/elliptic"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmgate/wazero-tls/tlsresult"
)

func verifyCode(t *testing.T, err error) tlsresult.Result {
	t.Helper()
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	return verr.Code
}

func TestDenyAllVerifier(t *testing.T) {
	err := denyAllVerifier{}.Verify(&VerifyParams{DNSName: "example.com"}, nil)
	assert.Equal(t, tlsresult.CertBadSignature, verifyCode(t, err))
}

func TestTrustStoreVerifier(t *testing.T) {
	ca := newTestCA(t)
	key := newECDSAKey(t, elliptic.P256())
	certPEM, keyPEM := ca.issue(t, key, []string{"example.com"}, false)
	ck, err := NewCertifiedKey(certPEM, keyPEM)
	require.NoError(t, err)
	leafDER := ck.cert.Certificate[0]

	store := NewRootStore()
	_, err = store.AddPEM(ca.PEM, true)
	require.NoError(t, err)
	v := newTrustStoreVerifier(store)

	assert.NoError(t, v.Verify(&VerifyParams{
		EndEntityCertDER: leafDER,
		DNSName:          "example.com",
	}, nil))

	err = v.Verify(&VerifyParams{EndEntityCertDER: leafDER, DNSName: "other.example"}, nil)
	assert.Equal(t, tlsresult.CertNameMismatch, verifyCode(t, err))
}

func TestTrustStoreVerifierUnknownIssuer(t *testing.T) {
	ca := newTestCA(t)
	key := newECDSAKey(t, elliptic.P256())
	certPEM, keyPEM := ca.issue(t, key, []string{"example.com"}, false)
	ck, err := NewCertifiedKey(certPEM, keyPEM)
	require.NoError(t, err)

	// Empty trust store: the chain cannot be built.
	v := newTrustStoreVerifier(NewRootStore())
	err = v.Verify(&VerifyParams{
		EndEntityCertDER: ck.cert.Certificate[0],
		DNSName:          "example.com",
	}, nil)
	assert.Equal(t, tlsresult.CertUnknownIssuer, verifyCode(t, err))
}

func TestTrustStoreVerifierBadEncoding(t *testing.T) {
	v := newTrustStoreVerifier(NewRootStore())
	err := v.Verify(&VerifyParams{
		EndEntityCertDER: []byte{0x30, 0x01, 0xff},
		DNSName:          "example.com",
	}, nil)
	assert.Equal(t, tlsresult.CertBadEncoding, verifyCode(t, err))
}

func TestTrustStoreCloneIsolation(t *testing.T) {
	ca := newTestCA(t)
	key := newECDSAKey(t, elliptic.P256())
	certPEM, keyPEM := ca.issue(t, key, []string{"example.com"}, false)
	ck, err := NewCertifiedKey(certPEM, keyPEM)
	require.NoError(t, err)

	store := NewRootStore()
	v := newTrustStoreVerifier(store)

	// Roots added after install are not seen by the verifier.
	_, err = store.AddPEM(ca.PEM, true)
	require.NoError(t, err)
	err = v.Verify(&VerifyParams{
		EndEntityCertDER: ck.cert.Certificate[0],
		DNSName:          "example.com",
	}, nil)
	assert.Equal(t, tlsresult.CertUnknownIssuer, verifyCode(t, err))
}

func TestCallbackVerifier(t *testing.T) {
	params := &VerifyParams{DNSName: "example.com"}

	accept, err := newCallbackVerifier(func(any, *VerifyParams) uint32 {
		return uint32(tlsresult.Ok)
	})
	require.NoError(t, err)
	assert.NoError(t, accept.Verify(params, nil))

	reject, _ := newCallbackVerifier(func(any, *VerifyParams) uint32 {
		return uint32(tlsresult.CertRevoked)
	})
	assert.Equal(t, tlsresult.CertRevoked, verifyCode(t, reject.Verify(params, nil)))

	unknown, _ := newCallbackVerifier(func(any, *VerifyParams) uint32 {
		return 42
	})
	assert.Equal(t, tlsresult.General, verifyCode(t, unknown.Verify(params, nil)))
}

func TestCallbackVerifierNilCallback(t *testing.T) {
	_, err := newCallbackVerifier(nil)
	assert.ErrorIs(t, err, ErrNilCallback)
}

func TestCallbackVerifierPanicTrapped(t *testing.T) {
	v, err := newCallbackVerifier(func(any, *VerifyParams) uint32 {
		panic("callback blew up")
	})
	require.NoError(t, err)
	assert.Equal(t, tlsresult.General, verifyCode(t, v.Verify(&VerifyParams{DNSName: "example.com"}, nil)))
}

func TestCallbackVerifierGuardsServerName(t *testing.T) {
	called := false
	v, err := newCallbackVerifier(func(any, *VerifyParams) uint32 {
		called = true
		return uint32(tlsresult.Ok)
	})
	require.NoError(t, err)

	// Names the callback protocol cannot represent never reach it.
	for _, name := range []string{"exa\x00mple.com", "192.0.2.1", ""} {
		err := v.Verify(&VerifyParams{DNSName: name}, nil)
		assert.Equal(t, tlsresult.General, verifyCode(t, err), "%q", name)
	}
	assert.False(t, called)
}

func TestCallbackVerifierReceivesUserdata(t *testing.T) {
	var got any
	v, err := newCallbackVerifier(func(userdata any, _ *VerifyParams) uint32 {
		got = userdata
		return uint32(tlsresult.Ok)
	})
	require.NoError(t, err)
	require.NoError(t, v.Verify(&VerifyParams{DNSName: "example.com"}, "token"))
	assert.Equal(t, "token", got)
}

func TestX509ErrToVerifyErrorFallback(t *testing.T) {
	verr := x509ErrToVerifyError(errors.New("something else"))
	assert.Equal(t, tlsresult.CertOtherError, verr.Code)
}
