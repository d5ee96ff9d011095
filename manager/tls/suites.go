package tls

import (
	"crypto/tls"
)

// SupportedCipherSuite describes one entry of the supported cipher-suite
// catalog. It is a plain value: callers enumerate the catalog and pass
// suite IDs back when constructing a custom builder.
type SupportedCipherSuite struct {
	ID   uint16
	Name string
}

const (
	versionTLS12 uint16 = tls.VersionTLS12
	versionTLS13 uint16 = tls.VersionTLS13
)

var (
	allSuites   []SupportedCipherSuite
	suitesByID  map[uint16]SupportedCipherSuite
	allVersions = []uint16{tls.VersionTLS12, tls.VersionTLS13}
)

func init() {
	catalog := tls.CipherSuites()
	allSuites = make([]SupportedCipherSuite, 0, len(catalog))
	suitesByID = make(map[uint16]SupportedCipherSuite, len(catalog))
	for _, cs := range catalog {
		s := SupportedCipherSuite{ID: cs.ID, Name: cs.Name}
		allSuites = append(allSuites, s)
		suitesByID[cs.ID] = s
	}
}

// AllCipherSuites returns the supported catalog in the engine's
// preference order.
func AllCipherSuites() []SupportedCipherSuite {
	out := make([]SupportedCipherSuite, len(allSuites))
	copy(out, allSuites)
	return out
}

// FindCipherSuite looks a suite up by its IANA-registered ID.
func FindCipherSuite(id uint16) (SupportedCipherSuite, bool) {
	s, ok := suitesByID[id]
	return s, ok
}

// filterVersions maps requested numeric protocol versions to the
// supported ones. Unrecognized version numbers are dropped silently, not
// rejected; that leniency is part of the boundary contract.
func filterVersions(requested []uint16) []uint16 {
	var out []uint16
	for _, v := range requested {
		for _, sv := range allVersions {
			if v == sv && !containsVersion(out, v) {
				out = append(out, v)
			}
		}
	}
	return out
}

func containsVersion(vs []uint16, v uint16) bool {
	for _, x := range vs {
		if x == v {
			return true
		}
	}
	return false
}

func versionBounds(vs []uint16) (min, max uint16) {
	min, max = vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
