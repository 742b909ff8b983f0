// Package embedded is the host-facing control surface for an
// embedded router instance. It mirrors a C-style API: an opaque
// handle, integer result codes (0 success, negative failure), and a
// polled integer status, which makes it straightforward to re-export
// through a foreign function interface.
//
// # Usage pattern
//
//	h := embedded.Init()
//	if h == nil {
//	    return
//	}
//	defer embedded.Destroy(h)
//
//	if rc := embedded.Start(h); rc != embedded.ResultSuccess {
//	    return
//	}
//
//	for embedded.GetStatus(h) == int32(embedded.StatusStarting) {
//	    time.Sleep(100 * time.Millisecond)
//	}
//
//	if embedded.SAMAvailable(h) == 1 {
//	    tcp := embedded.GetSAMTCPPort(h)
//	    udp := embedded.GetSAMUDPPort(h)
//	    // Connect application clients to 127.0.0.1:tcp / :udp.
//	}
//
//	embedded.Stop(h)
//
// Start and Stop only initiate work; the final outcome of a start is
// read from GetStatus (StatusRunning or StatusError), never from the
// Start return code. Status and port accessors are safe from any
// goroutine; Start, Stop, and Destroy on one handle must be
// serialized by the caller.
package embedded
