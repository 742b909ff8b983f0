package router

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-i2p/logger"

	"github.com/go-i2p/go-router-embed/lib/config"
	"github.com/go-i2p/go-router-embed/lib/netdb"
	"github.com/go-i2p/go-router-embed/lib/sam"
	"github.com/go-i2p/go-router-embed/lib/transport"
	"github.com/go-i2p/go-router-embed/lib/tunnel"
)

var log = logger.GetGoI2PLogger()

// destroyTimeout bounds how long Destroy blocks waiting for the
// forced shutdown to complete before abandoning the wait.
const destroyTimeout = 10 * time.Second

// Router is the handle for one embedded router instance. Status and
// SAM endpoints are published atomically, so the read accessors are
// safe from any goroutine concurrently with one in-flight control
// call. Start, Stop, and Destroy themselves must be serialized by the
// caller.
type Router struct {
	cfg *config.RouterConfig

	// status is the atomically published aggregate state. Only the
	// control and bootstrap/shutdown goroutines write it.
	status atomic.Int32
	// endpoints publishes the SAM port pair before the Running
	// transition becomes visible.
	endpoints endpointRegistry
	// destroyed marks the handle invalid; every operation checks it
	// first and fails with ErrNotInitialized afterwards.
	destroyed atomic.Bool
	// forced escalates an in-progress shutdown from graceful to
	// immediate. Checked before every teardown step.
	forced atomic.Bool

	// mu serializes lifecycle transitions. The caller owns control
	// call serialization; the mutex keeps state transitions ordered
	// with respect to the bootstrap and shutdown goroutines.
	mu sync.Mutex

	// subsystems in fixed start order; shutdown runs in reverse.
	subsystems []Subsystem
	// bridge is the SAM bridge member of subsystems, nil when the
	// bridge is disabled by configuration.
	bridge BridgeSubsystem

	// started tracks which subsystems came up this cycle, so a stop
	// after a partial bootstrap only tears down what actually ran.
	started   []Subsystem
	startedMu sync.Mutex

	// bootCancel aborts an in-progress bootstrap; calling Stop while
	// Starting is the cancellation path.
	bootCancel context.CancelFunc
	// bootDone is closed when the bootstrap goroutine exits, letting
	// shutdown wait so subsystem starts and stops never overlap.
	bootDone chan struct{}
	// quiesced is closed when shutdown completes and the router is
	// back in the stopped state.
	quiesced chan struct{}
}

// CreateRouter allocates a new router handle with the given
// configuration, or the embedded default profile when cfg is nil.
// The handle starts in the stopped state. Independent handles may be
// created concurrently.
func CreateRouter(cfg *config.RouterConfig) (*Router, error) {
	if cfg == nil {
		cfg = config.DefaultRouterConfig()
	}

	log.WithFields(logger.Fields{
		"at":     "router.CreateRouter",
		"reason": "allocating embedded router handle",
	}).Debug("creating router")

	subs := []Subsystem{
		transport.NewTransport(cfg.Transport),
		netdb.NewStdNetDB(cfg.NetDb),
		tunnel.NewPool(cfg.Tunnel),
	}

	var bridge BridgeSubsystem
	if cfg.SAM != nil && cfg.SAM.Enabled {
		b := sam.NewBridge(cfg.SAM)
		bridge = b
		subs = append(subs, b)
	}

	return newRouter(cfg, subs, bridge), nil
}

// newRouter wires a handle from pre-built subsystems. Tests use this
// to substitute stub subsystems for the real listeners.
func newRouter(cfg *config.RouterConfig, subs []Subsystem, bridge BridgeSubsystem) *Router {
	r := &Router{
		cfg:        cfg,
		subsystems: subs,
		bridge:     bridge,
	}
	r.status.Store(int32(StatusStopped))
	return r
}

// Start initiates asynchronous bootstrap of all subsystems and
// returns without waiting for them. The caller polls Status for the
// outcome: Running on success, Error on bootstrap failure. Only
// configuration problems detected before the handoff are returned
// synchronously.
func (r *Router) Start() error {
	if r == nil {
		return ErrInvalidParam
	}
	if r.destroyed.Load() {
		return ErrNotInitialized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch Status(r.status.Load()) {
	case StatusStarting, StatusRunning, StatusError:
		return ErrAlreadyStarted
	case StatusStopping:
		return ErrShuttingDown
	}

	if err := validateConfig(r.cfg); err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"at":     "(Router) Start",
			"reason": "configuration rejected before bootstrap",
		}).Error("router start failed")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.bootCancel = cancel
	r.bootDone = make(chan struct{})
	r.quiesced = make(chan struct{})
	r.forced.Store(false)
	r.startedMu.Lock()
	r.started = nil
	r.startedMu.Unlock()

	r.status.Store(int32(StatusStarting))
	log.WithFields(logger.Fields{
		"at":     "(Router) Start",
		"reason": "bootstrap handed off",
	}).Info("router starting")

	go r.bootstrap(ctx)
	return nil
}

// bootstrap starts every subsystem in order, waits for readiness, and
// commits the Running transition after the SAM endpoints are
// published. Runs on its own goroutine.
func (r *Router) bootstrap(ctx context.Context) {
	defer close(r.bootDone)

	readyTimeout := r.cfg.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 30 * time.Second
	}

	for _, sub := range r.subsystems {
		if ctx.Err() != nil {
			// Cancelled by Stop; the shutdown path owns the
			// remaining transitions.
			return
		}

		if err := sub.StartAsync(ctx); err != nil {
			log.WithError(err).WithFields(logger.Fields{
				"at":        "(Router) bootstrap",
				"subsystem": sub.Name(),
				"reason":    "subsystem failed to start",
			}).Error("router bootstrap failed")
			r.publishError()
			return
		}
		r.markStarted(sub)

		if err := waitReady(ctx, sub, readyTimeout); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).WithFields(logger.Fields{
				"at":        "(Router) bootstrap",
				"subsystem": sub.Name(),
				"reason":    "subsystem never became ready",
			}).Error("router bootstrap failed")
			r.publishError()
			return
		}

		log.WithFields(logger.Fields{
			"at":        "(Router) bootstrap",
			"subsystem": sub.Name(),
		}).Debug("subsystem ready")
	}

	// Publish the endpoint pair before Running can be observed, so a
	// reader that sees Running is guaranteed to see both ports.
	if r.bridge != nil {
		r.endpoints.publish(&SAMEndpoints{
			TCPPort: r.bridge.TCPPort(),
			UDPPort: r.bridge.UDPPort(),
		})
	}

	if r.status.CompareAndSwap(int32(StatusStarting), int32(StatusRunning)) {
		log.WithFields(logger.Fields{
			"at": "(Router) bootstrap",
		}).Info("router running")
	}
	// A failed swap means Stop raced in during the final steps; the
	// shutdown goroutine is already waiting on bootDone.
}

// publishError moves the router to the error state unless a stop
// already claimed the transition.
func (r *Router) publishError() {
	r.status.CompareAndSwap(int32(StatusStarting), int32(StatusError))
}

// Stop initiates shutdown and returns without waiting for it. Valid
// while the router is running, still starting (cancellation), or in
// the error state. A second Stop observed while shutdown is still in
// progress escalates it to an immediate, forced shutdown and still
// succeeds.
func (r *Router) Stop() error {
	if r == nil {
		return ErrInvalidParam
	}
	if r.destroyed.Load() {
		return ErrNotInitialized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch Status(r.status.Load()) {
	case StatusStopped:
		return ErrNotStarted
	case StatusStopping:
		log.WithFields(logger.Fields{
			"at":     "(Router) Stop",
			"reason": "shutdown already requested",
		}).Warn("escalating to forced shutdown")
		r.forced.Store(true)
		return nil
	}

	r.status.Store(int32(StatusStopping))
	if r.bootCancel != nil {
		r.bootCancel()
	}

	log.WithFields(logger.Fields{
		"at":     "(Router) Stop",
		"reason": "graceful shutdown initiated",
	}).Info("router stopping")

	go r.shutdown()
	return nil
}

// shutdown tears down started subsystems in reverse order, resets the
// endpoint registry, and commits the Stopped transition. Runs on its
// own goroutine; escalation to forced shutdown is observed between
// steps via the forced flag.
func (r *Router) shutdown() {
	// Wait for the bootstrap goroutine so subsystem starts and stops
	// never overlap. Bootstrap observes the cancelled context between
	// steps, so this wait is bounded.
	<-r.bootDone

	// Capture this cycle's channel up front: once Stopped is stored a
	// caller may restart and replace r.quiesced with the next cycle's
	// channel, which must not be the one closed here.
	quiesced := r.quiesced

	r.startedMu.Lock()
	started := make([]Subsystem, len(r.started))
	copy(started, r.started)
	r.startedMu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		sub := started[i]
		if r.forced.Load() {
			log.WithFields(logger.Fields{
				"at":        "(Router) shutdown",
				"subsystem": sub.Name(),
			}).Warn("forced subsystem stop")
			sub.StopForced()
		} else {
			log.WithFields(logger.Fields{
				"at":        "(Router) shutdown",
				"subsystem": sub.Name(),
			}).Debug("graceful subsystem stop")
			sub.StopGraceful()
		}
	}

	r.endpoints.reset()
	r.status.Store(int32(StatusStopped))
	close(quiesced)

	log.WithFields(logger.Fields{
		"at": "(Router) shutdown",
	}).Info("router stopped")
}

// Destroy forces shutdown from any state, waits briefly for it to
// complete, releases owned resources, and invalidates the handle.
// Safe on a nil receiver. Not safe concurrently with any other
// operation on the same handle.
func (r *Router) Destroy() {
	if r == nil || r.destroyed.Load() {
		return
	}

	r.mu.Lock()
	r.forced.Store(true)
	var quiesced chan struct{}
	switch Status(r.status.Load()) {
	case StatusStarting, StatusRunning, StatusError:
		r.status.Store(int32(StatusStopping))
		if r.bootCancel != nil {
			r.bootCancel()
		}
		go r.shutdown()
		quiesced = r.quiesced
	case StatusStopping:
		quiesced = r.quiesced
	}
	r.mu.Unlock()

	if quiesced != nil {
		select {
		case <-quiesced:
		case <-time.After(destroyTimeout):
			log.WithFields(logger.Fields{
				"at":     "(Router) Destroy",
				"reason": "forced shutdown did not complete in time",
			}).Error("abandoning shutdown wait")
		}
	}

	r.mu.Lock()
	r.subsystems = nil
	r.bridge = nil
	r.endpoints.reset()
	r.status.Store(int32(StatusStopped))
	r.destroyed.Store(true)
	r.mu.Unlock()

	log.WithFields(logger.Fields{
		"at": "(Router) Destroy",
	}).Info("router destroyed")
}

// Wait blocks until the router reaches the stopped state. Returns
// immediately when the router is not running.
func (r *Router) Wait() {
	if r == nil || r.destroyed.Load() {
		return
	}
	r.mu.Lock()
	quiesced := r.quiesced
	stopped := Status(r.status.Load()) == StatusStopped
	r.mu.Unlock()

	if quiesced == nil || stopped {
		return
	}
	<-quiesced
}

// Status returns the current aggregate state. Safe from any
// goroutine.
func (r *Router) Status() (Status, error) {
	if r == nil {
		return StatusStopped, ErrInvalidParam
	}
	if r.destroyed.Load() {
		return StatusStopped, ErrNotInitialized
	}
	return Status(r.status.Load()), nil
}

// SAMAvailable reports whether the SAM bridge is operational: the
// router is running, the bridge is enabled, and both ports are bound.
// Returns ErrBridgeUnavailable when the bridge is disabled by
// configuration.
func (r *Router) SAMAvailable() (bool, error) {
	if r == nil {
		return false, ErrInvalidParam
	}
	if r.destroyed.Load() {
		return false, ErrNotInitialized
	}
	if r.cfg.SAM == nil || !r.cfg.SAM.Enabled {
		return false, ErrBridgeUnavailable
	}
	if Status(r.status.Load()) != StatusRunning {
		return false, nil
	}
	return r.endpoints.snapshot() != nil, nil
}

// SAMTCPPort returns the bound SAM stream port, or 0 while unbound.
func (r *Router) SAMTCPPort() (int, error) {
	if r == nil {
		return 0, ErrInvalidParam
	}
	if r.destroyed.Load() {
		return 0, ErrNotInitialized
	}
	if r.cfg.SAM == nil || !r.cfg.SAM.Enabled {
		return 0, ErrBridgeUnavailable
	}
	if eps := r.endpoints.snapshot(); eps != nil {
		return eps.TCPPort, nil
	}
	return 0, nil
}

// SAMUDPPort returns the bound SAM datagram port, or 0 while unbound.
func (r *Router) SAMUDPPort() (int, error) {
	if r == nil {
		return 0, ErrInvalidParam
	}
	if r.destroyed.Load() {
		return 0, ErrNotInitialized
	}
	if r.cfg.SAM == nil || !r.cfg.SAM.Enabled {
		return 0, ErrBridgeUnavailable
	}
	if eps := r.endpoints.snapshot(); eps != nil {
		return eps.UDPPort, nil
	}
	return 0, nil
}

func (r *Router) markStarted(sub Subsystem) {
	r.startedMu.Lock()
	r.started = append(r.started, sub)
	r.startedMu.Unlock()
}

// validateConfig rejects configurations whose problems are detectable
// without touching the network, so Start can surface them
// synchronously.
func validateConfig(cfg *config.RouterConfig) error {
	if cfg == nil {
		return ErrInvalidParam
	}
	if cfg.Transport == nil || cfg.Transport.Host == "" {
		return ErrNetwork
	}
	if cfg.Transport.Port < 0 || cfg.Transport.Port > 65535 {
		return ErrNetwork
	}
	if cfg.SAM != nil && cfg.SAM.Enabled {
		if cfg.SAM.Host == "" {
			return ErrNetwork
		}
		if cfg.SAM.TCPPort < 0 || cfg.SAM.TCPPort > 65535 ||
			cfg.SAM.UDPPort < 0 || cfg.SAM.UDPPort > 65535 {
			return ErrNetwork
		}
	}
	if cfg.Tunnel == nil || cfg.Tunnel.PoolSize <= 0 {
		return ErrResource
	}
	if cfg.NetDb == nil {
		return ErrResource
	}
	return nil
}
