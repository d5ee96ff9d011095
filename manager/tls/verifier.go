package tls

import (
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/wasmgate/wazero-tls/tlsresult"
)

// VerifyParams is the evidence handed to a verifier for one verification
// attempt. It is a borrowed view: the byte slices are only valid for the
// duration of the call and must not be retained by any verifier.
type VerifyParams struct {
	EndEntityCertDER     []byte
	IntermediateCertsDER [][]byte
	DNSName              string
	OCSPResponse         []byte
}

// VerifyCallback is a caller-supplied trust decision. It receives the
// connection's userdata and the borrowed params view, and returns a code
// from the tlsresult enumeration: Ok accepts the certificate, a
// certificate-family code rejects it with that specific failure, any
// other recognized code rejects with that code, and an unrecognized code
// rejects with the generic failure.
//
// The callback must be safe to invoke concurrently from multiple threads:
// one config may back arbitrarily many live connections, each driving its
// handshake on its own thread.
type VerifyCallback func(userdata any, params *VerifyParams) uint32

// Verifier is the pluggable server-certificate acceptance policy carried
// by a config.
type Verifier interface {
	// Verify returns nil to accept the presented certificate chain, or a
	// *VerifyError carrying the code to report.
	Verify(params *VerifyParams, userdata any) error
}

// denyAllVerifier rejects every certificate. It is the default for a
// builder on which no verifier was ever configured, so that forgetting
// to configure trust fails closed instead of trusting everything.
type denyAllVerifier struct{}

func (denyAllVerifier) Verify(*VerifyParams, any) error {
	return verifyErr(tlsresult.CertBadSignature, "no verifier configured")
}

// trustStoreVerifier performs chain validation against a fixed root set
// and checks the presented DNS name against the certificate.
type trustStoreVerifier struct {
	roots *x509.CertPool
}

func newTrustStoreVerifier(store *RootStore) *trustStoreVerifier {
	return &trustStoreVerifier{roots: store.clonePool()}
}

func (v *trustStoreVerifier) Verify(params *VerifyParams, _ any) error {
	leaf, err := x509.ParseCertificate(params.EndEntityCertDER)
	if err != nil {
		return verifyErr(tlsresult.CertBadEncoding, err.Error())
	}
	intermediates := x509.NewCertPool()
	for _, der := range params.IntermediateCertsDER {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return verifyErr(tlsresult.CertBadEncoding, err.Error())
		}
		intermediates.AddCert(cert)
	}
	_, err = leaf.Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		DNSName:       params.DNSName,
	})
	if err != nil {
		return x509ErrToVerifyError(err)
	}
	return nil
}

func x509ErrToVerifyError(err error) *VerifyError {
	switch e := err.(type) {
	case x509.CertificateInvalidError:
		switch e.Reason {
		case x509.Expired:
			return verifyErr(tlsresult.CertExpired, e.Error())
		case x509.NotAuthorizedToSign, x509.CANotAuthorizedForThisName:
			return verifyErr(tlsresult.CertUntrusted, e.Error())
		case x509.IncompatibleUsage:
			return verifyErr(tlsresult.CertInvalidPurpose, e.Error())
		default:
			return verifyErr(tlsresult.CertOtherError, e.Error())
		}
	case x509.HostnameError:
		return verifyErr(tlsresult.CertNameMismatch, e.Error())
	case x509.UnknownAuthorityError:
		return verifyErr(tlsresult.CertUnknownIssuer, e.Error())
	default:
		return verifyErr(tlsresult.CertOtherError, err.Error())
	}
}

// callbackVerifier defers the entire trust decision to foreign code. The
// call is synchronous and happens on whichever thread drives the
// connection's handshake; a panic escaping the callback is trapped here
// and reported as a generic verification failure rather than unwinding
// through the engine.
type callbackVerifier struct {
	callback VerifyCallback
}

func newCallbackVerifier(cb VerifyCallback) (*callbackVerifier, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}
	return &callbackVerifier{callback: cb}, nil
}

func (v *callbackVerifier) Verify(params *VerifyParams, userdata any) (err error) {
	if strings.ContainsRune(params.DNSName, 0) {
		return verifyErr(tlsresult.General, "NUL byte in server name")
	}
	if verr := validateServerName(params.DNSName); verr != nil {
		return verifyErr(tlsresult.General, fmt.Sprintf("server name not a dns name: %v", verr))
	}
	defer func() {
		if r := recover(); r != nil {
			err = verifyErr(tlsresult.General, fmt.Sprintf("panic in verifier callback: %v", r))
		}
	}()
	raw := v.callback(userdata, params)
	code, recognized := tlsresult.FromU32(raw)
	switch {
	case !recognized:
		return verifyErr(tlsresult.General, fmt.Sprintf("verifier callback returned unknown code %d", raw))
	case code == tlsresult.Ok:
		return nil
	default:
		return verifyErr(code, "rejected by verifier callback")
	}
}
