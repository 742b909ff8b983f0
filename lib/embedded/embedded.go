package embedded

import (
	"errors"

	"github.com/go-i2p/logger"

	"github.com/go-i2p/go-router-embed/lib/config"
	"github.com/go-i2p/go-router-embed/lib/router"
)

var log = logger.GetGoI2PLogger()

// ResultCode is the integer result of a lifecycle operation. Zero is
// success; negative values are failures.
type ResultCode int32

const (
	ResultSuccess              ResultCode = 0
	ResultErrGeneric           ResultCode = -1
	ResultErrInvalidParam      ResultCode = -2
	ResultErrNotInitialized    ResultCode = -3
	ResultErrAlreadyStarted    ResultCode = -4
	ResultErrNotStarted        ResultCode = -5
	ResultErrNetwork           ResultCode = -6
	ResultErrResource          ResultCode = -7
	ResultErrBridgeUnavailable ResultCode = -8
)

// StatusCode is the non-negative aggregate router state returned by
// GetStatus.
type StatusCode int32

const (
	StatusStopped  StatusCode = 0
	StatusStarting StatusCode = 1
	StatusRunning  StatusCode = 2
	StatusStopping StatusCode = 3
	StatusError    StatusCode = 4
)

// RouterHandle is the opaque handle a host process holds for one
// router instance. A nil handle is rejected with
// ResultErrInvalidParam; a destroyed handle with
// ResultErrNotInitialized.
type RouterHandle struct {
	r *router.Router
}

// Init creates a router with the embedded default profile: transport
// on an unpublished ephemeral port, transit relaying disabled, SAM
// bridge on ephemeral loopback ports, ephemeral local storage, and
// relaxed tunnel security for fast startup. Returns nil on allocation
// failure. Independent handles may be created concurrently.
func Init() *RouterHandle {
	return InitWithConfig(config.DefaultRouterConfig())
}

// InitWithConfig creates a router with a caller-supplied
// configuration. Returns nil on failure.
func InitWithConfig(cfg *config.RouterConfig) *RouterHandle {
	r, err := router.CreateRouter(cfg)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{
			"at":     "embedded.InitWithConfig",
			"reason": "router allocation failed",
		}).Error("init failed")
		return nil
	}
	return &RouterHandle{r: r}
}

// Start initiates asynchronous startup and returns immediately.
// Success means startup was initiated; poll GetStatus for the final
// outcome (StatusRunning or StatusError). Must not be called
// concurrently with Stop or Destroy on the same handle.
func Start(h *RouterHandle) ResultCode {
	if h == nil || h.r == nil {
		return ResultErrInvalidParam
	}
	return resultFromError(h.r.Start())
}

// Stop initiates shutdown and returns immediately. The first call
// while running or starting begins a graceful shutdown; a second call
// while shutdown is still in progress escalates it to forced and
// still succeeds.
func Stop(h *RouterHandle) ResultCode {
	if h == nil || h.r == nil {
		return ResultErrInvalidParam
	}
	return resultFromError(h.r.Stop())
}

// Destroy forces shutdown if needed, releases all resources, and
// invalidates the handle; any later call with it returns
// ResultErrNotInitialized. Accepts nil as a no-op. May block briefly
// while forcing shutdown to completion.
func Destroy(h *RouterHandle) {
	if h == nil || h.r == nil {
		return
	}
	h.r.Destroy()
}

// GetStatus returns the current status code, or a negative result
// code for a nil or destroyed handle. Safe from any goroutine.
func GetStatus(h *RouterHandle) int32 {
	if h == nil || h.r == nil {
		return int32(ResultErrInvalidParam)
	}
	st, err := h.r.Status()
	if err != nil {
		return int32(resultFromError(err))
	}
	return int32(st)
}

// SAMAvailable returns 1 when the router is running and the SAM
// bridge is bound, 0 otherwise, or a negative result code for a nil
// or destroyed handle or a disabled bridge. Safe from any goroutine.
func SAMAvailable(h *RouterHandle) int32 {
	if h == nil || h.r == nil {
		return int32(ResultErrInvalidParam)
	}
	ok, err := h.r.SAMAvailable()
	if err != nil {
		return int32(resultFromError(err))
	}
	if ok {
		return 1
	}
	return 0
}

// GetSAMTCPPort returns the bound SAM stream port, 0 while unbound or
// not running, or a negative result code for a nil or destroyed
// handle or a disabled bridge. Safe from any goroutine.
func GetSAMTCPPort(h *RouterHandle) int32 {
	if h == nil || h.r == nil {
		return int32(ResultErrInvalidParam)
	}
	port, err := h.r.SAMTCPPort()
	if err != nil {
		return int32(resultFromError(err))
	}
	return int32(port)
}

// GetSAMUDPPort returns the bound SAM datagram port, 0 while unbound
// or not running, or a negative result code for a nil or destroyed
// handle or a disabled bridge. Safe from any goroutine.
func GetSAMUDPPort(h *RouterHandle) int32 {
	if h == nil || h.r == nil {
		return int32(ResultErrInvalidParam)
	}
	port, err := h.r.SAMUDPPort()
	if err != nil {
		return int32(resultFromError(err))
	}
	return int32(port)
}

// resultFromError maps the router package's sentinel errors onto
// numeric result codes.
func resultFromError(err error) ResultCode {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, router.ErrInvalidParam):
		return ResultErrInvalidParam
	case errors.Is(err, router.ErrNotInitialized):
		return ResultErrNotInitialized
	case errors.Is(err, router.ErrAlreadyStarted):
		return ResultErrAlreadyStarted
	case errors.Is(err, router.ErrNotStarted):
		return ResultErrNotStarted
	case errors.Is(err, router.ErrNetwork):
		return ResultErrNetwork
	case errors.Is(err, router.ErrResource):
		return ResultErrResource
	case errors.Is(err, router.ErrBridgeUnavailable):
		return ResultErrBridgeUnavailable
	default:
		return ResultErrGeneric
	}
}
