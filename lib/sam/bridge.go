package sam

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"golang.org/x/time/rate"

	"github.com/go-i2p/go-router-embed/lib/config"
)

var log = logger.GetGoI2PLogger()

// Bridge is the SAM-compatible application bridge subsystem. It binds
// a stream (TCP) listener and a datagram (UDP) socket, both on
// loopback ephemeral ports by default, and reports the bound port
// pair for the endpoint registry. The SAM request grammar itself is
// handled by the session layer; the bridge owns sockets and
// connection lifecycle.
type Bridge struct {
	cfg *config.SAMConfig

	mu      sync.Mutex
	ln      net.Listener
	pc      net.PacketConn
	conns   map[net.Conn]struct{}
	limiter *rate.Limiter
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	ready atomic.Bool
}

// NewBridge creates a stopped SAM bridge.
func NewBridge(cfg *config.SAMConfig) *Bridge {
	return &Bridge{
		cfg:   cfg,
		conns: make(map[net.Conn]struct{}),
	}
}

func (b *Bridge) Name() string { return "sam" }

// StartAsync binds both bridge sockets. Either both binds succeed or
// neither port is held, preserving the both-or-neither endpoint
// invariant.
func (b *Bridge) StartAsync(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ln != nil {
		return oops.Errorf("sam bridge already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tcpAddr := net.JoinHostPort(b.cfg.Host, strconv.Itoa(b.cfg.TCPPort))
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		return oops.Wrapf(err, "sam stream listen on %s", tcpAddr)
	}

	udpAddr := net.JoinHostPort(b.cfg.Host, strconv.Itoa(b.cfg.UDPPort))
	pc, err := net.ListenPacket("udp", udpAddr)
	if err != nil {
		ln.Close()
		return oops.Wrapf(err, "sam datagram bind on %s", udpAddr)
	}

	b.ln = ln
	b.pc = pc

	perSecond := b.cfg.AcceptsPerSecond
	if perSecond <= 0 {
		perSecond = 32
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	b.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)

	runCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.wg.Add(2)
	go b.acceptLoop(runCtx, ln)
	go b.datagramLoop(pc)

	log.WithFields(logger.Fields{
		"at":       "(Bridge) StartAsync",
		"tcp_port": b.tcpPortLocked(),
		"udp_port": b.udpPortLocked(),
	}).Info("sam bridge listening")

	b.ready.Store(true)
	return nil
}

// acceptLoop accepts bridge clients at a bounded rate and holds each
// connection until shutdown or client close.
func (b *Bridge) acceptLoop(ctx context.Context, ln net.Listener) {
	defer b.wg.Done()

	for {
		if err := b.limiter.Wait(ctx); err != nil {
			return
		}
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed during shutdown.
			return
		}

		b.track(conn)
		b.wg.Add(1)
		go b.serveConn(conn)

		log.WithFields(logger.Fields{
			"at":     "(Bridge) acceptLoop",
			"remote": conn.RemoteAddr().String(),
		}).Debug("sam client connected")
	}
}

// serveConn keeps a client connection open until either side closes
// it. Protocol handling is attached by the session layer.
func (b *Bridge) serveConn(conn net.Conn) {
	defer b.wg.Done()
	defer b.untrack(conn)
	_, _ = io.Copy(io.Discard, conn)
	conn.Close()
}

// datagramLoop drains the datagram socket until it is closed.
func (b *Bridge) datagramLoop(pc net.PacketConn) {
	defer b.wg.Done()

	buf := make([]byte, 64*1024)
	for {
		_, _, err := pc.ReadFrom(buf)
		if err != nil {
			return
		}
	}
}

// StopGraceful stops accepting, closes existing client connections,
// and waits for the loops to exit.
func (b *Bridge) StopGraceful() {
	b.stop(true)
}

// StopForced closes all sockets immediately.
func (b *Bridge) StopForced() {
	b.stop(false)
}

func (b *Bridge) stop(wait bool) {
	b.mu.Lock()
	b.ready.Store(false)
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	if b.ln != nil {
		b.ln.Close()
		b.ln = nil
	}
	if b.pc != nil {
		b.pc.Close()
		b.pc = nil
	}
	for conn := range b.conns {
		conn.Close()
	}
	b.conns = make(map[net.Conn]struct{})
	b.mu.Unlock()

	if wait {
		b.wg.Wait()
	}

	log.WithFields(logger.Fields{
		"at":       "(Bridge) stop",
		"graceful": wait,
	}).Debug("sam bridge stopped")
}

// IsReady reports whether both bridge sockets are bound.
func (b *Bridge) IsReady() bool {
	return b.ready.Load()
}

// TCPPort returns the bound stream port, 0 when unbound.
func (b *Bridge) TCPPort() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tcpPortLocked()
}

// UDPPort returns the bound datagram port, 0 when unbound.
func (b *Bridge) UDPPort() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.udpPortLocked()
}

func (b *Bridge) tcpPortLocked() int {
	if b.ln == nil {
		return 0
	}
	if addr, ok := b.ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

func (b *Bridge) udpPortLocked() int {
	if b.pc == nil {
		return 0
	}
	if addr, ok := b.pc.LocalAddr().(*net.UDPAddr); ok {
		return addr.Port
	}
	return 0
}

func (b *Bridge) track(conn net.Conn) {
	b.mu.Lock()
	b.conns[conn] = struct{}{}
	b.mu.Unlock()
}

func (b *Bridge) untrack(conn net.Conn) {
	b.mu.Lock()
	delete(b.conns, conn)
	b.mu.Unlock()
}
