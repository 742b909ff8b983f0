package router

import (
	"context"
	"time"
)

// Subsystem is the contract between the lifecycle controller and the
// services it supervises. The controller treats implementations as
// black boxes: it starts them in a fixed order, polls readiness, and
// stops them in reverse order.
type Subsystem interface {
	// Name identifies the subsystem in logs.
	Name() string

	// StartAsync acquires resources (sockets, storage) and launches
	// background work. It must return promptly; long-running
	// operation belongs in goroutines it owns. The context is
	// cancelled when startup is aborted.
	StartAsync(ctx context.Context) error

	// StopGraceful drains in-flight work, persists state where
	// applicable, and releases resources. May block briefly.
	StopGraceful()

	// StopForced releases resources immediately, abandoning drains
	// and persistence. Must not block indefinitely.
	StopForced()

	// IsReady reports whether the subsystem is fully operational.
	IsReady() bool
}

// BridgeSubsystem extends Subsystem with the bound port pair of the
// application bridge, consumed by the endpoint registry once the
// bridge reports ready.
type BridgeSubsystem interface {
	Subsystem

	// TCPPort returns the bound stream port, 0 when unbound.
	TCPPort() int
	// UDPPort returns the bound datagram port, 0 when unbound.
	UDPPort() int
}

// waitReady polls a subsystem's readiness probe until it reports
// ready, the context is cancelled, or the timeout elapses.
func waitReady(ctx context.Context, sub Subsystem, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if sub.IsReady() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrResource
		case <-ticker.C:
		}
	}
}
