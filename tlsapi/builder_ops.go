package tlsapi

import (
	"go.uber.org/zap"

	manager_tls "github.com/wasmgate/wazero-tls/manager/tls"
	"github.com/wasmgate/wazero-tls/tlsresult"
)

// ClientConfigBuilderNew creates a builder with the engine's safe
// default cipher and version selection and a deny-all verifier. The
// caller exclusively owns the handle and must eventually either build it
// or free it.
func (s *Surface) ClientConfigBuilderNew() Handle {
	return s.boundary.GuardHandle(func() Handle {
		return s.builders.Add(&builderState{builder: manager_tls.NewBuilder()})
	})
}

// ClientConfigBuilderNewCustom creates a builder with an explicit
// cipher-suite and protocol-version selection. Suites not in the
// supported catalog fail with InvalidParameter; unrecognized version
// numbers are dropped silently, and a selection that ends up empty fails
// with InvalidParameter. On failure no builder is produced.
func (s *Surface) ClientConfigBuilderNewCustom(suiteIDs, versions []uint16) (h Handle, rc Result) {
	rc = s.guard(func() Result {
		b, err := manager_tls.NewCustomBuilder(suiteIDs, versions)
		if err != nil {
			return errToResult(err)
		}
		h = s.builders.Add(&builderState{builder: b})
		return tlsresult.Ok
	})
	if rc != tlsresult.Ok {
		h = 0
	}
	return h, rc
}

// ClientConfigBuilderSetCertificateVerifier installs a foreign-callback
// verifier. A nil callback fails with InvalidParameter at registration
// time; the callback is never null-checked at call time.
func (s *Surface) ClientConfigBuilderSetCertificateVerifier(builder Handle, cb VerifyCallback) Result {
	return s.guard(func() Result {
		st, ok := s.builders.Get(builder)
		if !ok {
			return tlsresult.NullParameter
		}
		return errToResult(st.builder.SetCallbackVerifier(cb))
	})
}

// ClientConfigBuilderUseTrustStore installs a trust-store verifier over
// a clone of the store's current contents.
func (s *Surface) ClientConfigBuilderUseTrustStore(builder, roots Handle) Result {
	return s.guard(func() Result {
		st, ok := s.builders.Get(builder)
		if !ok {
			return tlsresult.NullParameter
		}
		store, ok := s.roots.Get(roots)
		if !ok {
			return tlsresult.NullParameter
		}
		st.builder.UseTrustStore(store)
		return tlsresult.Ok
	})
}

// ClientConfigBuilderLoadRootsFromFile parses a PEM file of trusted
// roots and installs a trust-store verifier over it. When some blocks
// fail to parse the call reports CertificateParse but the roots that did
// parse are still installed.
func (s *Surface) ClientConfigBuilderLoadRootsFromFile(builder Handle, path string) Result {
	return s.guard(func() Result {
		st, ok := s.builders.Get(builder)
		if !ok {
			return tlsresult.NullParameter
		}
		return errToResult(st.builder.LoadRootsFromFile(path))
	})
}

// ClientConfigBuilderSetALPNProtocols replaces the ALPN list with a deep
// copy of protocols. The caller may free its buffers immediately after
// the call returns. An empty list disables ALPN.
func (s *Surface) ClientConfigBuilderSetALPNProtocols(builder Handle, protocols [][]byte) Result {
	return s.guard(func() Result {
		st, ok := s.builders.Get(builder)
		if !ok {
			return tlsresult.NullParameter
		}
		st.builder.SetALPNProtocols(protocols)
		return tlsresult.Ok
	})
}

// ClientConfigBuilderSetEnableSNI toggles server-name advertisement.
// Enabled by default.
func (s *Surface) ClientConfigBuilderSetEnableSNI(builder Handle, enable bool) Result {
	return s.guard(func() Result {
		st, ok := s.builders.Get(builder)
		if !ok {
			return tlsresult.NullParameter
		}
		st.builder.SetEnableSNI(enable)
		return tlsresult.Ok
	})
}

// ClientConfigBuilderSetCertifiedKeys installs a client-certificate
// resolver over the given keys in caller order. Each key's reference
// count is incremented; the counts drop when the builder is freed or the
// config built from it is destroyed. Replaces any previously set list.
func (s *Surface) ClientConfigBuilderSetCertifiedKeys(builder Handle, keys []Handle) Result {
	return s.guard(func() Result {
		st, ok := s.builders.Get(builder)
		if !ok {
			return tlsresult.NullParameter
		}
		engineKeys := make([]*manager_tls.CertifiedKey, len(keys))
		for i, kh := range keys {
			k, ok := s.keys.Get(kh)
			if !ok {
				return tlsresult.NullParameter
			}
			engineKeys[i] = k
		}
		if err := st.builder.SetCertifiedKeys(engineKeys); err != nil {
			return errToResult(err)
		}
		for _, kh := range keys {
			s.keys.Retain(kh)
		}
		s.releaseKeys(st.keyHandles)
		st.keyHandles = append([]Handle(nil), keys...)
		return tlsresult.Ok
	})
}

// ClientConfigBuilderBuild consumes the builder and produces a shared,
// immutable config with a reference count of one. The builder handle is
// invalid for any further use, including free.
func (s *Surface) ClientConfigBuilderBuild(builder Handle) (h Handle, rc Result) {
	rc = s.guard(func() Result {
		st, ok := s.builders.Take(builder)
		if !ok {
			return tlsresult.NullParameter
		}
		h = s.configs.Add(&configState{
			config:     st.builder.Build(),
			keyHandles: st.keyHandles,
		})
		s.log.Debug("client config built",
			zap.Uint32("builder", builder), zap.Uint32("config", h))
		return tlsresult.Ok
	})
	if rc != tlsresult.Ok {
		h = 0
	}
	return h, rc
}

// ClientConfigBuilderFree discards a builder that was never built.
// Freeing the zero handle, or a handle already consumed by build, is a
// no-op.
func (s *Surface) ClientConfigBuilderFree(builder Handle) {
	s.boundary.GuardVoid(func() {
		s.builders.Remove(builder)
	})
}
