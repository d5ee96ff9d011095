package bytespool

import "sync"

// Pooled scratch buffers for shuttling TLS records and plaintext across
// the boundary. TLS records are at most 16KiB plus framing, so two pool
// classes cover every transfer this module performs.
const (
	smallSize = 4096
	largeSize = 18432 // one maximum TLS record with header and padding
)

var (
	small = sync.Pool{New: func() any { b := make([]byte, smallSize); return &b }}
	large = sync.Pool{New: func() any { b := make([]byte, largeSize); return &b }}
)

// Get returns a buffer with at least the given capacity. Buffers larger
// than a full TLS record are allocated directly and not pooled.
func Get(size int) []byte {
	switch {
	case size <= smallSize:
		return (*small.Get().(*[]byte))[:smallSize]
	case size <= largeSize:
		return (*large.Get().(*[]byte))[:largeSize]
	default:
		return make([]byte, size)
	}
}

// Put returns a buffer obtained from Get to its pool.
func Put(b []byte) {
	switch cap(b) {
	case smallSize:
		b = b[:smallSize]
		small.Put(&b)
	case largeSize:
		b = b[:largeSize]
		large.Put(&b)
	}
}
