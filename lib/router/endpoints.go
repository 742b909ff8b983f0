package router

import (
	"sync/atomic"
)

// SAMEndpoints is the port pair the SAM bridge bound for this start
// cycle. Instances are immutable once published.
type SAMEndpoints struct {
	TCPPort int
	UDPPort int
}

// endpointRegistry publishes the SAM endpoint pair with a single
// pointer swap so concurrent readers observe either no endpoints or
// both ports, never a half-written pair. Written exactly once per
// start cycle (on successful bind) and reset once per stop cycle.
type endpointRegistry struct {
	pair atomic.Pointer[SAMEndpoints]
}

func (e *endpointRegistry) publish(eps *SAMEndpoints) {
	e.pair.Store(eps)
}

func (e *endpointRegistry) reset() {
	e.pair.Store(nil)
}

// snapshot returns the current pair, nil when unbound.
func (e *endpointRegistry) snapshot() *SAMEndpoints {
	return e.pair.Load()
}
