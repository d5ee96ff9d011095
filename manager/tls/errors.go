package tls

import (
	"errors"
	"fmt"

	"github.com/wasmgate/wazero-tls/tlsresult"
)

var (
	ErrUnknownCipherSuite  = errors.New("tls: cipher suite not in the supported catalog")
	ErrNoSupportedVersions = errors.New("tls: no supported protocol version selected")
	ErrNilCallback         = errors.New("tls: nil verifier callback")
	ErrCertificateParse    = errors.New("tls: certificate parse error")
	ErrPrivateKeyParse     = errors.New("tls: private key parse error")
	ErrEmptyServerName     = errors.New("tls: empty server name")
	ErrInvalidDNSName      = errors.New("tls: server name is not a valid dns name")
	ErrClosed              = errors.New("tls: connection is closed")
	ErrNotEstablished      = errors.New("tls: handshake not complete")
)

// VerifyError is a trust-decision failure. It carries the stable result
// code that gets reported across the boundary, so verifiers (including
// foreign callbacks) decide the exact code the caller observes.
type VerifyError struct {
	Code   tlsresult.Result
	Detail string
}

func (e *VerifyError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("tls: verification failed: %s", e.Code)
	}
	return fmt.Sprintf("tls: verification failed: %s: %s", e.Code, e.Detail)
}

func verifyErr(code tlsresult.Result, detail string) *VerifyError {
	return &VerifyError{Code: code, Detail: detail}
}
