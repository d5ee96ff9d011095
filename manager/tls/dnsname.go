package tls

import (
	"fmt"
	"net"
	"strings"
)

// validateServerName checks that name is usable as the DNS name a
// connection is bound to. IP literals are rejected: the handshake target
// must be a name that certificate subject matching can be run against.
func validateServerName(name string) error {
	if name == "" {
		return ErrEmptyServerName
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: embedded NUL byte", ErrInvalidDNSName)
	}
	if net.ParseIP(name) != nil {
		return fmt.Errorf("%w: ip address %q", ErrInvalidDNSName, name)
	}
	host := strings.TrimSuffix(name, ".")
	if host == "" || len(host) > 253 {
		return ErrInvalidDNSName
	}
	for _, label := range strings.Split(host, ".") {
		if !validLabel(label) {
			return fmt.Errorf("%w: bad label %q", ErrInvalidDNSName, label)
		}
	}
	return nil
}

func validLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == '-':
			if i == 0 || i == len(label)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
