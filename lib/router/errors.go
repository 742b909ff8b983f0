package router

import (
	"errors"
)

// Sentinel errors returned by lifecycle operations. lib/embedded maps
// these onto the numeric result codes of the host-facing surface, so
// each sentinel must stay distinct under errors.Is; they are plain
// stdlib errors for that reason, while contextual errors elsewhere in
// the tree are built with oops.
var (
	// ErrInvalidParam is returned for nil handles or arguments.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrNotInitialized is returned for destroyed handles.
	ErrNotInitialized = errors.New("router not initialized")

	// ErrAlreadyStarted is returned when Start is called while the
	// router is starting, running, or in the error state.
	ErrAlreadyStarted = errors.New("router already started")

	// ErrNotStarted is returned when Stop is called on a stopped
	// router.
	ErrNotStarted = errors.New("router not started")

	// ErrShuttingDown is returned when Start is called while a
	// shutdown is still completing.
	ErrShuttingDown = errors.New("router is shutting down")

	// ErrNetwork indicates a network-level configuration problem
	// detected synchronously, such as an unusable listen address.
	ErrNetwork = errors.New("network configuration error")

	// ErrResource indicates a local resource problem detected
	// synchronously, such as an invalid tunnel pool size.
	ErrResource = errors.New("resource configuration error")

	// ErrBridgeUnavailable is returned by SAM accessors when the
	// bridge subsystem is disabled for this router instance.
	ErrBridgeUnavailable = errors.New("SAM bridge unavailable")
)
