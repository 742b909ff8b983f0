// Package router implements the lifecycle core of an embeddable
// anonymity-network router: an opaque per-instance handle whose
// start, stop, and destroy operations sequence the supervised
// subsystems (transport, netdb, tunnel manager, SAM bridge) while
// publishing an atomically observable aggregate status and the bound
// SAM endpoint pair.
//
// # Concurrency contract
//
// Start, Stop, and Destroy on one handle must be serialized by the
// caller; they never block on network operations and hand slow work
// to background goroutines. The read accessors (Status, SAMAvailable,
// SAMTCPPort, SAMUDPPort) are wait-free and safe from any goroutine
// concurrently with one in-flight control call. Status transitions
// are totally ordered per handle, and a reader that observes
// StatusRunning is guaranteed the endpoint pair was published first.
//
// # State machine
//
//	Stopped --Start--> Starting --ok--> Running --Stop--> Stopping --> Stopped
//	                   Starting --fail--> Error
//	                   Starting --Stop--> Stopping   (cancellation)
//	any state --Destroy--> handle invalidated
//
// Calling Stop a second time while shutdown is still in progress
// escalates it from graceful to forced. Error is quiescent; it is
// exited only via Stop or Destroy.
package router
