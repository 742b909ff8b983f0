package transport

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-router-embed/lib/config"
)

var log = logger.GetGoI2PLogger()

// Transport is the transport-layer subsystem. It owns the router's
// listener socket, bound on an ephemeral port by default and left
// unpublished for embedded instances. Wire protocol framing is
// attached by higher layers; the subsystem itself only accepts and
// holds connections.
type Transport struct {
	cfg *config.TransportConfig

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ready atomic.Bool
}

// NewTransport creates a stopped transport subsystem. The listener is
// bound by StartAsync.
func NewTransport(cfg *config.TransportConfig) *Transport {
	return &Transport{
		cfg:   cfg,
		conns: make(map[net.Conn]struct{}),
	}
}

func (t *Transport) Name() string { return "transport" }

// StartAsync binds the transport listener and launches the accept
// loop. Restartable after a stop.
func (t *Transport) StartAsync(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ln != nil {
		return oops.Errorf("transport already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return oops.Wrapf(err, "transport listen on %s", addr)
	}
	t.ln = ln

	runCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	t.wg.Add(1)
	go t.acceptLoop(runCtx, ln)

	if t.cfg.ClockSkewCheck {
		go logClockSkew()
	}

	log.WithFields(logger.Fields{
		"at":        "(Transport) StartAsync",
		"address":   ln.Addr().String(),
		"published": t.cfg.Publish,
	}).Info("transport listening")

	t.ready.Store(true)
	return nil
}

// acceptLoop holds inbound connections open until shutdown. Exits
// when the listener closes.
func (t *Transport) acceptLoop(ctx context.Context, ln net.Listener) {
	defer t.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed during shutdown.
			return
		}
		if ctx.Err() != nil {
			conn.Close()
			return
		}
		t.track(conn)
		t.wg.Add(1)
		go t.holdConn(conn)
	}
}

// holdConn discards inbound bytes until the peer or shutdown closes
// the connection.
func (t *Transport) holdConn(conn net.Conn) {
	defer t.wg.Done()
	defer t.untrack(conn)
	_, _ = io.Copy(io.Discard, conn)
	conn.Close()
}

// StopGraceful closes the listener, then open connections, and waits
// for the accept and connection goroutines to exit.
func (t *Transport) StopGraceful() {
	t.stop(true)
}

// StopForced closes everything immediately without waiting for
// goroutines to drain.
func (t *Transport) StopForced() {
	t.stop(false)
}

func (t *Transport) stop(wait bool) {
	t.mu.Lock()
	t.ready.Store(false)
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.ln != nil {
		t.ln.Close()
		t.ln = nil
	}
	for conn := range t.conns {
		conn.Close()
	}
	t.conns = make(map[net.Conn]struct{})
	t.mu.Unlock()

	if wait {
		t.wg.Wait()
	}

	log.WithFields(logger.Fields{
		"at":       "(Transport) stop",
		"graceful": wait,
	}).Debug("transport stopped")
}

// IsReady reports whether the listener is bound and accepting.
func (t *Transport) IsReady() bool {
	return t.ready.Load()
}

// Addr returns the bound listener address, nil when stopped.
func (t *Transport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

func (t *Transport) track(conn net.Conn) {
	t.mu.Lock()
	t.conns[conn] = struct{}{}
	t.mu.Unlock()
}

func (t *Transport) untrack(conn net.Conn) {
	t.mu.Lock()
	delete(t.conns, conn)
	t.mu.Unlock()
}
