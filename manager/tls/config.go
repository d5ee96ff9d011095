package tls

import (
	"crypto/tls"

	"github.com/wasmgate/wazero-tls/tlsresult"
)

// Config is a finalized, read-only client configuration. It never
// changes after Build, which is what makes it safe to share: any number
// of connections on any number of threads may be created from one Config
// without coordination.
type Config struct {
	suites    []uint16
	versions  []uint16
	verifier  Verifier
	alpn      [][]byte
	enableSNI bool
	resolver  *clientCertResolver
}

// ALPNProtocols returns a copy of the configured ALPN list, in order.
func (c *Config) ALPNProtocols() [][]byte {
	if c.alpn == nil {
		return nil
	}
	out := make([][]byte, len(c.alpn))
	for i, p := range c.alpn {
		out[i] = append([]byte(nil), p...)
	}
	return out
}

// SNIEnabled reports whether connections advertise the server name.
func (c *Config) SNIEnabled() bool { return c.enableSNI }

// HasClientCertificates reports whether a client-cert resolver with at
// least one key is installed.
func (c *Config) HasClientCertificates() bool {
	return c.resolver != nil && c.resolver.HasCertificates()
}

// NewConnection creates a client connection from this config, bound to
// serverName. The name is validated before any resource is allocated.
func (c *Config) NewConnection(serverName string) (*Connection, error) {
	if err := validateServerName(serverName); err != nil {
		return nil, err
	}
	return newConnection(c, serverName), nil
}

// engineConfig assembles the protocol engine's configuration for one
// connection. Verification always goes through the config's Verifier;
// the engine's built-in chain validation is bypassed so that the
// deny-all default and callback verifiers see every handshake.
func (c *Config) engineConfig(conn *Connection) *tls.Config {
	var min, max uint16 = versionTLS12, versionTLS13
	if len(c.versions) > 0 {
		min, max = versionBounds(c.versions)
	}
	ec := &tls.Config{
		MinVersion:         min,
		MaxVersion:         max,
		CipherSuites:       c.suites,
		NextProtos:         alpnStrings(c.alpn),
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			return c.verifyState(cs, conn)
		},
	}
	if c.enableSNI {
		ec.ServerName = conn.serverName
	}
	if c.HasClientCertificates() {
		ec.GetClientCertificate = c.resolver.getClientCertificate
	}
	return ec
}

func (c *Config) verifyState(cs tls.ConnectionState, conn *Connection) error {
	if len(cs.PeerCertificates) == 0 {
		return verifyErr(tlsresult.CertOtherError, "no server certificate presented")
	}
	params := &VerifyParams{
		EndEntityCertDER: cs.PeerCertificates[0].Raw,
		DNSName:          conn.serverName,
		OCSPResponse:     cs.OCSPResponse,
	}
	for _, cert := range cs.PeerCertificates[1:] {
		params.IntermediateCertsDER = append(params.IntermediateCertsDER, cert.Raw)
	}
	return c.verifier.Verify(params, conn.Userdata())
}

func alpnStrings(alpn [][]byte) []string {
	if len(alpn) == 0 {
		return nil
	}
	out := make([]string, len(alpn))
	for i, p := range alpn {
		out[i] = string(p)
	}
	return out
}
