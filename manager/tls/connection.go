package tls

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/wasmgate/wazero-tls/internal/bytespool"
	"github.com/wasmgate/wazero-tls/tlsresult"
)

// State is a connection's lifecycle phase.
type State int32

const (
	StateHandshaking State = iota + 1
	StateEstablished
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is one in-progress or established TLS client session. The
// connection performs no transport I/O itself: the driving code feeds
// bytes arriving from the peer with FeedTLS and drains bytes destined
// for the peer with DrainTLS, while WantsRead/WantsWrite report the
// engine's pending I/O demand. A connection is exclusively owned by its
// creator and freed with Close.
type Connection struct {
	serverName string
	pipe       *recordPipe
	engine     *tls.Conn

	state atomic.Int32
	hsOK  atomic.Bool
	// closed when the handshake outcome is decided
	hsDone chan struct{}

	mu       sync.Mutex
	userdata any
	plain    bytes.Buffer
	readErr  error
	hsErr    error

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func newConnection(cfg *Config, serverName string) *Connection {
	c := &Connection{
		serverName: serverName,
		pipe:       newRecordPipe(),
		hsDone:     make(chan struct{}),
	}
	c.state.Store(int32(StateHandshaking))
	c.engine = tls.Client(c.pipe, cfg.engineConfig(c))
	c.wg.Add(1)
	go c.run()
	return c
}

// run drives the handshake and, once established, keeps decrypted
// application data buffered for non-blocking reads.
func (c *Connection) run() {
	defer c.wg.Done()
	err := c.handshake()
	if err != nil {
		c.mu.Lock()
		c.hsErr = err
		c.mu.Unlock()
		c.state.CompareAndSwap(int32(StateHandshaking), int32(StateFailed))
		close(c.hsDone)
		return
	}
	c.hsOK.Store(true)
	c.state.CompareAndSwap(int32(StateHandshaking), int32(StateEstablished))
	close(c.hsDone)
	c.readPlaintext()
}

func (c *Connection) handshake() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = verifyErr(tlsresult.General, fmt.Sprintf("panic during handshake: %v", r))
		}
	}()
	return c.engine.Handshake()
}

func (c *Connection) readPlaintext() {
	buf := bytespool.Get(16384)
	defer bytespool.Put(buf)
	for {
		n, err := c.engine.Read(buf)
		c.mu.Lock()
		if n > 0 {
			c.plain.Write(buf[:n])
		}
		if err != nil {
			if c.readErr == nil {
				c.readErr = err
			}
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

// ServerName returns the DNS name the connection was bound to.
func (c *Connection) ServerName() string { return c.serverName }

// State returns the connection's current lifecycle phase.
func (c *Connection) State() State { return State(c.state.Load()) }

// IsHandshaking reports whether the handshake is still in progress.
func (c *Connection) IsHandshaking() bool { return c.State() == StateHandshaking }

// Err returns the terminal handshake error, or nil while none occurred.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hsErr
}

// SetUserdata associates an opaque value with the connection. It is
// handed to the callback verifier on every verification attempt for
// this connection.
func (c *Connection) SetUserdata(v any) {
	c.mu.Lock()
	c.userdata = v
	c.mu.Unlock()
}

// Userdata returns the value set with SetUserdata, or nil.
func (c *Connection) Userdata() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userdata
}

// WantsRead reports whether the engine is waiting for more bytes from
// the peer. Non-blocking.
func (c *Connection) WantsRead() bool {
	switch c.State() {
	case StateFailed, StateClosed:
		return false
	}
	return c.pipe.readWanted()
}

// WantsWrite reports whether the engine has bytes queued for the peer.
// Non-blocking.
func (c *Connection) WantsWrite() bool {
	if c.State() == StateClosed {
		return false
	}
	return c.pipe.pendingWrite()
}

// FeedTLS hands bytes that arrived from the peer to the engine. The
// buffer is copied; the caller may reuse it immediately. After a
// terminal handshake failure FeedTLS reports that failure.
func (c *Connection) FeedTLS(b []byte) error {
	switch c.State() {
	case StateClosed:
		return ErrClosed
	case StateFailed:
		return c.Err()
	}
	return c.pipe.feed(b)
}

// DrainTLS moves bytes the engine wants sent to the peer into p and
// returns how many were moved. Zero means nothing is pending. Draining
// stays valid after a handshake failure so the closing alert can still
// reach the peer.
func (c *Connection) DrainTLS(p []byte) int {
	return c.pipe.drain(p)
}

// Read copies buffered decrypted application data into p. It never
// blocks: with nothing buffered it returns (0, nil), or the stream's
// terminal error once the peer closed.
func (c *Connection) Read(p []byte) (int, error) {
	if c.State() == StateClosed {
		return 0, ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.plain.Len() > 0 {
		n, _ := c.plain.Read(p)
		return n, nil
	}
	if c.readErr != nil {
		return 0, c.readErr
	}
	if c.hsErr != nil {
		return 0, c.hsErr
	}
	return 0, nil
}

// Write encrypts p and queues the resulting records for DrainTLS. It is
// only valid on an established connection.
func (c *Connection) Write(p []byte) (int, error) {
	switch c.State() {
	case StateEstablished:
		return c.engine.Write(p)
	case StateClosed:
		return 0, ErrClosed
	case StateFailed:
		return 0, c.Err()
	default:
		return 0, ErrNotEstablished
	}
}

// ALPNProtocol returns the negotiated ALPN protocol, or nil until the
// handshake completes or when none was negotiated.
func (c *Connection) ALPNProtocol() []byte {
	if !c.hsOK.Load() {
		return nil
	}
	proto := c.engine.ConnectionState().NegotiatedProtocol
	if proto == "" {
		return nil
	}
	return []byte(proto)
}

// NegotiatedCipherSuite returns the negotiated suite ID, or zero until
// the handshake completes.
func (c *Connection) NegotiatedCipherSuite() uint16 {
	if !c.hsOK.Load() {
		return 0
	}
	return c.engine.ConnectionState().CipherSuite
}

// ProtocolVersion returns the negotiated protocol version number, or
// zero until the handshake completes.
func (c *Connection) ProtocolVersion() uint16 {
	if !c.hsOK.Load() {
		return 0
	}
	return c.engine.ConnectionState().Version
}

// PeerCertificate returns the DER bytes of the peer certificate at the
// given chain index (0 is the end entity), or nil while the handshake is
// incomplete or when the index is out of range.
func (c *Connection) PeerCertificate(i int) []byte {
	if !c.hsOK.Load() || i < 0 {
		return nil
	}
	certs := c.engine.ConnectionState().PeerCertificates
	if i >= len(certs) {
		return nil
	}
	return certs[i].Raw
}

// Close tears the connection down, abandoning an in-progress handshake,
// and waits for the connection's internal goroutines to stop. Close is
// idempotent on one Connection value, but the boundary contract makes
// freeing the same handle twice the caller's responsibility.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		prev := State(c.state.Swap(int32(StateClosed)))
		var errs error
		if prev == StateEstablished {
			// Queues a close_notify alert; notifying can only fail on
			// the record layer, which never fails in-memory.
			errs = multierr.Append(errs, c.engine.Close())
		}
		errs = multierr.Append(errs, c.pipe.Close())
		c.wg.Wait()
		c.closeErr = errs
	})
	return c.closeErr
}

// recordPipe is the in-memory transport between the protocol engine and
// the boundary caller. The engine sees it as a net.Conn; the caller sees
// the feed/drain half. Reads block the engine's goroutine until bytes
// are fed, which is what makes "wants read" observable.
type recordPipe struct {
	mu          sync.Mutex
	readReady   *sync.Cond
	inbound     bytes.Buffer
	outbound    bytes.Buffer
	readWaiting bool
	closed      bool
}

func newRecordPipe() *recordPipe {
	p := &recordPipe{}
	p.readReady = sync.NewCond(&p.mu)
	return p
}

func (p *recordPipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.inbound.Len() == 0 && !p.closed {
		p.readWaiting = true
		p.readReady.Wait()
	}
	p.readWaiting = false
	if p.inbound.Len() == 0 {
		return 0, io.EOF
	}
	n, _ := p.inbound.Read(b)
	return n, nil
}

func (p *recordPipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.outbound.Write(b)
	return len(b), nil
}

func (p *recordPipe) feed(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.inbound.Write(b)
	p.readReady.Broadcast()
	return nil
}

func (p *recordPipe) drain(b []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.outbound.Len() == 0 {
		return 0
	}
	n, _ := p.outbound.Read(b)
	return n
}

func (p *recordPipe) readWanted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readWaiting && p.inbound.Len() == 0
}

func (p *recordPipe) pendingWrite() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbound.Len() > 0
}

func (p *recordPipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.readReady.Broadcast()
	return nil
}

func (p *recordPipe) LocalAddr() net.Addr              { return nil }
func (p *recordPipe) RemoteAddr() net.Addr             { return nil }
func (p *recordPipe) SetDeadline(time.Time) error      { return nil }
func (p *recordPipe) SetReadDeadline(time.Time) error  { return nil }
func (p *recordPipe) SetWriteDeadline(time.Time) error { return nil }
