// Package tlsresult defines the stable result-code enumeration shared by
// every boundary entry point and by the certificate-verifier callback
// protocol. Codes are part of the foreign ABI and never change value.
package tlsresult

import "fmt"

// Result is an enumerated result code returned across the boundary.
type Result uint32

const (
	Ok               Result = 7000
	Io               Result = 7001
	NullParameter    Result = 7002
	InvalidDnsName   Result = 7003
	CertificateParse Result = 7004
	PrivateKeyParse  Result = 7005
	InsufficientSize Result = 7006
	NotFound         Result = 7007
	InvalidParameter Result = 7008
	General          Result = 7009
	AlreadyUsed      Result = 7010
)

// Certificate-specific verification failures. A verifier callback that
// rejects a certificate should return one of these.
const (
	CertBadEncoding                    Result = 7101
	CertExpired                        Result = 7102
	CertNotYetValid                    Result = 7103
	CertRevoked                        Result = 7104
	CertUntrusted                      Result = 7105
	CertUnknownIssuer                  Result = 7106
	CertBadSignature                   Result = 7107
	CertNameMismatch                   Result = 7108
	CertUnhandledCriticalExtension     Result = 7109
	CertInvalidPurpose                 Result = 7110
	CertApplicationVerificationFailure Result = 7111
	CertOtherError                     Result = 7112
)

var names = map[Result]string{
	Ok:               "ok",
	Io:               "io error",
	NullParameter:    "null parameter",
	InvalidDnsName:   "invalid dns name",
	CertificateParse: "certificate parse error",
	PrivateKeyParse:  "private key parse error",
	InsufficientSize: "insufficient buffer size",
	NotFound:         "not found",
	InvalidParameter: "invalid parameter",
	General:          "general failure",
	AlreadyUsed:      "resource already used",

	CertBadEncoding:                    "certificate: bad encoding",
	CertExpired:                        "certificate: expired",
	CertNotYetValid:                    "certificate: not yet valid",
	CertRevoked:                        "certificate: revoked",
	CertUntrusted:                      "certificate: untrusted",
	CertUnknownIssuer:                  "certificate: unknown issuer",
	CertBadSignature:                   "certificate: bad signature",
	CertNameMismatch:                   "certificate: name mismatch",
	CertUnhandledCriticalExtension:     "certificate: unhandled critical extension",
	CertInvalidPurpose:                 "certificate: invalid purpose",
	CertApplicationVerificationFailure: "certificate: application verification failure",
	CertOtherError:                     "certificate: other error",
}

func (r Result) String() string {
	if s, ok := names[r]; ok {
		return s
	}
	return fmt.Sprintf("unknown result %d", uint32(r))
}

// FromU32 interprets a raw code received from foreign code. The second
// return reports whether the code is part of the enumeration.
func FromU32(v uint32) (Result, bool) {
	r := Result(v)
	_, ok := names[r]
	return r, ok
}

// IsCertError reports whether r belongs to the certificate family.
func (r Result) IsCertError() bool {
	return r >= CertBadEncoding && r <= CertOtherError
}
