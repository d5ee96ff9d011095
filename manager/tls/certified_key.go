package tls

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// CertifiedKey pairs a certificate chain with its private key and the
// signature schemes the key can produce. One CertifiedKey may be shared
// by any number of configs simultaneously; it is immutable once built.
type CertifiedKey struct {
	cert    tls.Certificate
	schemes []tls.SignatureScheme
}

// NewCertifiedKey parses a PEM certificate chain (end entity first) and a
// PEM private key (PKCS#1, PKCS#8 or SEC 1). The key must match the end
// entity certificate's public key.
func NewCertifiedKey(certChainPEM, keyPEM []byte) (*CertifiedKey, error) {
	chain, err := parseChainPEM(certChainPEM)
	if err != nil {
		return nil, err
	}
	key, err := parsePrivateKeyPEM(keyPEM)
	if err != nil {
		return nil, err
	}
	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return nil, fmt.Errorf("%w: end entity: %v", ErrCertificateParse, err)
	}
	if !keyMatchesCertificate(key, leaf) {
		return nil, fmt.Errorf("%w: key does not match end entity certificate", ErrPrivateKeyParse)
	}
	schemes, err := schemesForKey(key)
	if err != nil {
		return nil, err
	}
	return &CertifiedKey{
		cert: tls.Certificate{
			Certificate: chain,
			PrivateKey:  key,
			Leaf:        leaf,
		},
		schemes: schemes,
	}, nil
}

// SupportedSchemes returns the signature schemes the key can produce.
func (k *CertifiedKey) SupportedSchemes() []tls.SignatureScheme {
	out := make([]tls.SignatureScheme, len(k.schemes))
	copy(out, k.schemes)
	return out
}

// supportsAny reports whether the key can sign with at least one of the
// offered schemes.
func (k *CertifiedKey) supportsAny(offered []tls.SignatureScheme) bool {
	for _, o := range offered {
		for _, s := range k.schemes {
			if o == s {
				return true
			}
		}
	}
	return false
}

func parseChainPEM(data []byte) ([][]byte, error) {
	var chain [][]byte
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCertificateParse, err)
		}
		chain = append(chain, block.Bytes)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: no certificates in chain", ErrCertificateParse)
	}
	return chain, nil
}

func parsePrivateKeyPEM(data []byte) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no pem block", ErrPrivateKeyParse)
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: not pkcs1, pkcs8 or sec1", ErrPrivateKeyParse)
}

func keyMatchesCertificate(key crypto.PrivateKey, leaf *x509.Certificate) bool {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return false
	}
	type equaler interface{ Equal(x crypto.PublicKey) bool }
	pub, ok := signer.Public().(equaler)
	if !ok {
		return false
	}
	return pub.Equal(leaf.PublicKey)
}

func schemesForKey(key crypto.PrivateKey) ([]tls.SignatureScheme, error) {
	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		switch k.Curve {
		case elliptic.P256():
			return []tls.SignatureScheme{tls.ECDSAWithP256AndSHA256}, nil
		case elliptic.P384():
			return []tls.SignatureScheme{tls.ECDSAWithP384AndSHA384}, nil
		case elliptic.P521():
			return []tls.SignatureScheme{tls.ECDSAWithP521AndSHA512}, nil
		default:
			return nil, fmt.Errorf("%w: unsupported ecdsa curve", ErrPrivateKeyParse)
		}
	case ed25519.PrivateKey:
		return []tls.SignatureScheme{tls.Ed25519}, nil
	case *rsa.PrivateKey:
		return []tls.SignatureScheme{
			tls.PSSWithSHA256, tls.PSSWithSHA384, tls.PSSWithSHA512,
			tls.PKCS1WithSHA256, tls.PKCS1WithSHA384, tls.PKCS1WithSHA512,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrPrivateKeyParse, key)
	}
}

// clientCertResolver selects the client certificate to present when the
// server requests client auth. The first key in caller order that can
// produce a signature the server accepts wins; order is the caller's
// preference mechanism. With no compatible key the handshake continues
// without client auth.
type clientCertResolver struct {
	keys []*CertifiedKey
}

func newClientCertResolver(keys []*CertifiedKey) *clientCertResolver {
	return &clientCertResolver{keys: keys}
}

// HasCertificates reports whether the resolver holds any key at all.
func (r *clientCertResolver) HasCertificates() bool {
	return len(r.keys) > 0
}

// ResolveFor returns the first key compatible with the offered schemes,
// or nil when none is.
func (r *clientCertResolver) ResolveFor(offered []tls.SignatureScheme) *CertifiedKey {
	for _, k := range r.keys {
		if k.supportsAny(offered) {
			return k
		}
	}
	return nil
}

func (r *clientCertResolver) getClientCertificate(info *tls.CertificateRequestInfo) (*tls.Certificate, error) {
	if k := r.ResolveFor(info.SignatureSchemes); k != nil {
		cert := k.cert
		return &cert, nil
	}
	// Declining is an empty certificate, not an error.
	return &tls.Certificate{}, nil
}
