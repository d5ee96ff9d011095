package tls

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RootStore is a set of trusted CA certificates. It is mutable while the
// caller holds it; verifiers take a clone of the pool at install time, so
// later mutation never affects an already-configured builder or config.
type RootStore struct {
	pool  *x509.CertPool
	count int
}

// NewRootStore creates an empty trust store.
func NewRootStore() *RootStore {
	return &RootStore{pool: x509.NewCertPool()}
}

// Len reports the number of certificates added so far.
func (s *RootStore) Len() int { return s.count }

// AddPEM parses PEM certificate blocks from data and adds the ones that
// parse to the store. In strict mode any unparsable block fails the call;
// otherwise parse failures are tolerated as long as at least one
// certificate was added. Either way, certificates that did parse stay in
// the store.
func (s *RootStore) AddPEM(data []byte, strict bool) (added int, err error) {
	var failed int
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, perr := x509.ParseCertificate(block.Bytes)
		if perr != nil {
			failed++
			continue
		}
		s.pool.AddCert(cert)
		s.count++
		added++
	}
	if failed > 0 && (strict || added == 0) {
		return added, fmt.Errorf("%w: %d of %d blocks failed", ErrCertificateParse, failed, added+failed)
	}
	if added == 0 {
		return 0, fmt.Errorf("%w: no certificates found", ErrCertificateParse)
	}
	return added, nil
}

func (s *RootStore) clonePool() *x509.CertPool {
	return s.pool.Clone()
}

func (s *RootStore) clone() *RootStore {
	return &RootStore{pool: s.pool.Clone(), count: s.count}
}

type rootsCacheKey struct {
	path    string
	modTime time.Time
	size    int64
}

type cachedRoots struct {
	store       *RootStore
	parseFailed bool
}

// Parsed root files are memoized so that building many configs from the
// same CA bundle does not re-read and re-parse it. The key includes the
// file's mtime and size, so a rewritten bundle misses the cache. A
// same-size rewrite within the filesystem's mtime granularity can still
// hit the stale entry.
var rootsCache, _ = lru.New[rootsCacheKey, *cachedRoots](16)

// LoadRootsFromFile reads a PEM file of trusted roots. Partial success is
// allowed: when some blocks fail to parse the successfully parsed roots
// are still returned, alongside ErrCertificateParse. A nil store is only
// returned with an I/O error or when nothing parsed at all.
func LoadRootsFromFile(path string) (*RootStore, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat roots file: %w", err)
	}
	key := rootsCacheKey{path: path, modTime: fi.ModTime(), size: fi.Size()}
	if c, ok := rootsCache.Get(key); ok {
		return cacheResult(c)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roots file: %w", err)
	}
	store := NewRootStore()
	_, perr := store.AddPEM(data, false)
	if perr != nil && store.Len() == 0 {
		return nil, perr
	}
	rootsCache.Add(key, &cachedRoots{store: store, parseFailed: perr != nil})
	return cacheResult(&cachedRoots{store: store, parseFailed: perr != nil})
}

// cacheResult hands out a clone of the cached store. RootStore is
// mutable, so sharing the cached pointer would let one caller's AddPEM
// leak into every later load of the same file.
func cacheResult(c *cachedRoots) (*RootStore, error) {
	store := c.store.clone()
	if c.parseFailed {
		return store, ErrCertificateParse
	}
	return store, nil
}
