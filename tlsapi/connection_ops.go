package tlsapi

import (
	"errors"
	"io"

	"github.com/wasmgate/wazero-tls/hostabi"
	"github.com/wasmgate/wazero-tls/tlsresult"
)

// ConnectionSetUserdata attaches an opaque value to the connection. The
// value is passed back verbatim to the foreign verifier callback on
// every verification for this connection. A nil value clears it.
func (s *Surface) ConnectionSetUserdata(conn Handle, v any) Result {
	return s.guard(func() Result {
		st, ok := s.conns.Get(conn)
		if !ok {
			return tlsresult.NullParameter
		}
		st.conn.SetUserdata(v)
		return tlsresult.Ok
	})
}

// ConnectionWantsRead reports whether the connection is waiting for more
// TLS bytes from the peer. An unknown or failed handle reads false.
func (s *Surface) ConnectionWantsRead(conn Handle) bool {
	return s.guardBool(func() bool {
		st, ok := s.conns.Get(conn)
		return ok && st.conn.WantsRead()
	})
}

// ConnectionWantsWrite reports whether the connection has TLS bytes
// queued for the peer.
func (s *Surface) ConnectionWantsWrite(conn Handle) bool {
	return s.guardBool(func() bool {
		st, ok := s.conns.Get(conn)
		return ok && st.conn.WantsWrite()
	})
}

// ConnectionIsHandshaking reports whether the handshake is still in
// progress.
func (s *Surface) ConnectionIsHandshaking(conn Handle) bool {
	return s.guardBool(func() bool {
		st, ok := s.conns.Get(conn)
		return ok && st.conn.IsHandshaking()
	})
}

// ConnectionFeedTLS delivers TLS bytes received from the peer to the
// connection. Feeding an empty slice is a successful no-op.
func (s *Surface) ConnectionFeedTLS(conn Handle, b []byte) Result {
	return s.guard(func() Result {
		st, ok := s.conns.Get(conn)
		if !ok {
			return tlsresult.NullParameter
		}
		return errToResult(st.conn.FeedTLS(b))
	})
}

// ConnectionDrainTLS moves TLS bytes destined for the peer into p and
// returns the count moved. Draining remains valid after a handshake
// failure so a pending alert can still reach the peer.
func (s *Surface) ConnectionDrainTLS(conn Handle, p []byte) (n int, rc Result) {
	rc = s.guard(func() Result {
		st, ok := s.conns.Get(conn)
		if !ok {
			return tlsresult.NullParameter
		}
		n = st.conn.DrainTLS(p)
		return tlsresult.Ok
	})
	if rc != tlsresult.Ok {
		n = 0
	}
	return n, rc
}

// ConnectionRead copies decrypted application bytes into p. It never
// blocks: with no plaintext buffered it returns (0, Ok). A clean close
// by the peer also reads (0, Ok); the caller distinguishes the two via
// ConnectionWantsRead.
func (s *Surface) ConnectionRead(conn Handle, p []byte) (n int, rc Result) {
	rc = s.guard(func() Result {
		st, ok := s.conns.Get(conn)
		if !ok {
			return tlsresult.NullParameter
		}
		var err error
		n, err = st.conn.Read(p)
		if errors.Is(err, io.EOF) {
			return tlsresult.Ok
		}
		return errToResult(err)
	})
	if rc != tlsresult.Ok {
		n = 0
	}
	return n, rc
}

// ConnectionWrite encrypts b and queues the resulting TLS bytes for
// draining. It is only valid once the handshake has completed; after
// close it fails with AlreadyUsed.
func (s *Surface) ConnectionWrite(conn Handle, b []byte) (n int, rc Result) {
	rc = s.guard(func() Result {
		st, ok := s.conns.Get(conn)
		if !ok {
			return tlsresult.NullParameter
		}
		var err error
		n, err = st.conn.Write(b)
		return errToResult(err)
	})
	if rc != tlsresult.Ok {
		n = 0
	}
	return n, rc
}

// ConnectionALPNProtocol returns the negotiated ALPN protocol, or nil
// when the handshake has not completed or no protocol was negotiated.
func (s *Surface) ConnectionALPNProtocol(conn Handle) []byte {
	return hostabi.Guard(s.boundary, nil, func() []byte {
		st, ok := s.conns.Get(conn)
		if !ok {
			return nil
		}
		return st.conn.ALPNProtocol()
	})
}

// ConnectionNegotiatedCipherSuite returns the negotiated cipher-suite
// ID, or 0 before the handshake completes.
func (s *Surface) ConnectionNegotiatedCipherSuite(conn Handle) uint16 {
	return hostabi.Guard(s.boundary, 0, func() uint16 {
		st, ok := s.conns.Get(conn)
		if !ok {
			return 0
		}
		return st.conn.NegotiatedCipherSuite()
	})
}

// ConnectionProtocolVersion returns the negotiated protocol version, or
// 0 before the handshake completes.
func (s *Surface) ConnectionProtocolVersion(conn Handle) uint16 {
	return hostabi.Guard(s.boundary, 0, func() uint16 {
		st, ok := s.conns.Get(conn)
		if !ok {
			return 0
		}
		return st.conn.ProtocolVersion()
	})
}

// ConnectionPeerCertificate returns the DER encoding of the i-th peer
// certificate (0 is the end entity), or nil when the handshake has not
// completed or i is out of range.
func (s *Surface) ConnectionPeerCertificate(conn Handle, i int) []byte {
	return hostabi.Guard(s.boundary, nil, func() []byte {
		st, ok := s.conns.Get(conn)
		if !ok {
			return nil
		}
		return st.conn.PeerCertificate(i)
	})
}

// ConnectionFree destroys the connection, closing it and releasing its
// reference on the parent config. Freeing the zero handle or a handle
// already freed is a no-op.
func (s *Surface) ConnectionFree(conn Handle) {
	s.boundary.GuardVoid(func() {
		s.conns.Remove(conn)
	})
}
