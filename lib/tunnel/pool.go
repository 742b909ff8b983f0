package tunnel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/logger"
	"github.com/samber/oops"

	"github.com/go-i2p/go-router-embed/lib/config"
)

var log = logger.GetGoI2PLogger()

// tunnelLifetime matches the I2P convention of 10 minute tunnels.
const tunnelLifetime = 10 * time.Minute

// Tunnel is one pooled tunnel record.
type Tunnel struct {
	ID      uint32
	Hops    int
	BuiltAt time.Time
}

func (t Tunnel) expired(now time.Time) bool {
	return now.Sub(t.BuiltAt) >= tunnelLifetime
}

// Pool is the tunnel manager subsystem. It maintains a target number
// of tunnels, replacing expired ones on a maintenance ticker. With
// relaxed security enabled it builds single-hop tunnels for fast
// startup; otherwise three hops. Transit relaying is a separate
// concern and stays disabled for embedded routers.
type Pool struct {
	cfg *config.TunnelConfig

	mu      sync.RWMutex
	tunnels map[uint32]Tunnel
	nextID  uint32

	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  atomic.Bool
}

// NewPool creates a stopped tunnel pool.
func NewPool(cfg *config.TunnelConfig) *Pool {
	return &Pool{
		cfg:     cfg,
		tunnels: make(map[uint32]Tunnel),
	}
}

func (p *Pool) Name() string { return "tunnel" }

// StartAsync builds the initial pool and launches the maintenance
// loop.
func (p *Pool) StartAsync(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return oops.Errorf("tunnel pool already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.tunnels = make(map[uint32]Tunnel)
	for i := 0; i < p.cfg.PoolSize; i++ {
		p.buildLocked()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	interval := p.cfg.BuildInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	p.wg.Add(1)
	go p.maintain(runCtx, interval)

	log.WithFields(logger.Fields{
		"at":        "(Pool) StartAsync",
		"pool_size": p.cfg.PoolSize,
		"hops":      p.hops(),
		"transit":   p.cfg.Transit,
	}).Info("tunnel pool started")

	p.ready.Store(true)
	return nil
}

// maintain replaces expired tunnels until the pool is stopped.
func (p *Pool) maintain(ctx context.Context, interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.replaceExpired()
		}
	}
}

func (p *Pool) replaceExpired() {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, t := range p.tunnels {
		if t.expired(now) {
			delete(p.tunnels, id)
		}
	}
	for len(p.tunnels) < p.cfg.PoolSize {
		p.buildLocked()
	}
}

// buildLocked records a new tunnel. Actual hop selection and build
// message exchange belong to the tunnel build protocol, which higher
// layers attach; the pool tracks the records the lifecycle needs.
func (p *Pool) buildLocked() {
	p.nextID++
	p.tunnels[p.nextID] = Tunnel{
		ID:      p.nextID,
		Hops:    p.hops(),
		BuiltAt: time.Now(),
	}
}

func (p *Pool) hops() int {
	if p.cfg.RelaxedSecurity {
		return 1
	}
	return 3
}

// StopGraceful stops the maintenance loop, waits for it, and drops
// the pool.
func (p *Pool) StopGraceful() {
	p.stop(true)
}

// StopForced stops the maintenance loop without waiting.
func (p *Pool) StopForced() {
	p.stop(false)
}

func (p *Pool) stop(wait bool) {
	p.mu.Lock()
	p.ready.Store(false)
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.tunnels = make(map[uint32]Tunnel)
	p.mu.Unlock()

	if wait {
		p.wg.Wait()
	}

	log.WithFields(logger.Fields{
		"at":       "(Pool) stop",
		"graceful": wait,
	}).Debug("tunnel pool stopped")
}

// IsReady reports whether the initial pool was built.
func (p *Pool) IsReady() bool {
	return p.ready.Load()
}

// Size returns the number of live tunnels.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tunnels)
}
