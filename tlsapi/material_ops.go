package tlsapi

import (
	manager_tls "github.com/wasmgate/wazero-tls/manager/tls"
	"github.com/wasmgate/wazero-tls/tlsresult"
)

// CertifiedKeyNew parses a PEM certificate chain and a PEM private key
// into a certified key. The key must match the chain's end-entity
// certificate. Certified keys are shared: builders that adopt one
// retain it, so the caller may free its own handle at any time.
func (s *Surface) CertifiedKeyNew(certChainPEM, keyPEM []byte) (h Handle, rc Result) {
	rc = s.guard(func() Result {
		if len(certChainPEM) == 0 || len(keyPEM) == 0 {
			return tlsresult.NullParameter
		}
		key, err := manager_tls.NewCertifiedKey(certChainPEM, keyPEM)
		if err != nil {
			return errToResult(err)
		}
		h = s.keys.Add(key)
		return tlsresult.Ok
	})
	if rc != tlsresult.Ok {
		h = 0
	}
	return h, rc
}

// CertifiedKeyFree releases the caller's reference on the key. Freeing
// the zero handle is a no-op.
func (s *Surface) CertifiedKeyFree(key Handle) {
	s.boundary.GuardVoid(func() {
		s.keys.Release(key)
	})
}

// RootStoreNew creates an empty trust store.
func (s *Surface) RootStoreNew() Handle {
	return s.boundary.GuardHandle(func() Handle {
		return s.roots.Add(manager_tls.NewRootStore())
	})
}

// RootStoreAddPEM adds trust anchors parsed from PEM data. Unparsable
// certificates are skipped unless strict is set; the call fails with
// CertificateParse when strict and anything was skipped, or when
// nothing at all was added.
func (s *Surface) RootStoreAddPEM(store Handle, pemData []byte, strict bool) Result {
	return s.guard(func() Result {
		st, ok := s.roots.Get(store)
		if !ok {
			return tlsresult.NullParameter
		}
		if len(pemData) == 0 {
			return tlsresult.NullParameter
		}
		_, err := st.AddPEM(pemData, strict)
		return errToResult(err)
	})
}

// RootStoreFree destroys the trust store. Configs built from it hold
// their own copy of the anchors, so freeing it never invalidates them.
// Freeing the zero handle is a no-op.
func (s *Surface) RootStoreFree(store Handle) {
	s.boundary.GuardVoid(func() {
		s.roots.Remove(store)
	})
}
