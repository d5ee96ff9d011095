package tlsapi

import (
	"errors"
	"io"
	"io/fs"

	manager_tls "github.com/wasmgate/wazero-tls/manager/tls"
	"github.com/wasmgate/wazero-tls/tlsresult"
)

// errToResult collapses an engine error into the stable code the foreign
// caller observes. Trust-decision errors carry their own code; the rest
// map by error family.
func errToResult(err error) Result {
	if err == nil {
		return tlsresult.Ok
	}
	var verr *manager_tls.VerifyError
	if errors.As(err, &verr) {
		return verr.Code
	}
	switch {
	case errors.Is(err, manager_tls.ErrCertificateParse):
		return tlsresult.CertificateParse
	case errors.Is(err, manager_tls.ErrPrivateKeyParse):
		return tlsresult.PrivateKeyParse
	case errors.Is(err, manager_tls.ErrUnknownCipherSuite),
		errors.Is(err, manager_tls.ErrNoSupportedVersions),
		errors.Is(err, manager_tls.ErrNilCallback):
		return tlsresult.InvalidParameter
	case errors.Is(err, manager_tls.ErrEmptyServerName):
		return tlsresult.NullParameter
	case errors.Is(err, manager_tls.ErrInvalidDNSName):
		return tlsresult.InvalidDnsName
	case errors.Is(err, manager_tls.ErrClosed):
		return tlsresult.AlreadyUsed
	case isIOError(err):
		return tlsresult.Io
	default:
		return tlsresult.General
	}
}

func isIOError(err error) bool {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}
