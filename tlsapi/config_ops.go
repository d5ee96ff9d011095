package tlsapi

import (
	"go.uber.org/zap"

	"github.com/wasmgate/wazero-tls/tlsresult"
)

// ClientConfigFree decrements the config's reference count; the config
// is destroyed when the count reaches zero. Live connections hold their
// own count, so freeing the caller's handle while connections exist is
// safe. Freeing the zero handle is a no-op.
func (s *Surface) ClientConfigFree(config Handle) {
	s.boundary.GuardVoid(func() {
		s.configs.Release(config)
	})
}

// ClientConnectionNew creates a connection from a config, bound to
// serverName. The name must be a valid DNS name: an empty name fails
// with NullParameter, an IP literal or malformed name with
// InvalidDnsName, before any handle is produced. The new connection
// holds a reference to the config for its lifetime.
func (s *Surface) ClientConnectionNew(config Handle, serverName string) (h Handle, rc Result) {
	rc = s.guard(func() Result {
		st, ok := s.configs.Get(config)
		if !ok {
			return tlsresult.NullParameter
		}
		conn, err := st.config.NewConnection(serverName)
		if err != nil {
			return errToResult(err)
		}
		s.configs.Retain(config)
		h = s.conns.Add(&connState{conn: conn, config: config})
		s.log.Debug("client connection created",
			zap.Uint32("config", config),
			zap.Uint32("connection", h),
			zap.String("server_name", serverName))
		return tlsresult.Ok
	})
	if rc != tlsresult.Ok {
		h = 0
	}
	return h, rc
}
