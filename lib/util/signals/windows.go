//go:build windows

package signals

import (
	"os/signal"
	"syscall"
)

func init() {
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
}

// Handle dispatches received signals to registered handlers until
// StopHandle is called. Windows has no SIGHUP, so reload handlers are
// never invoked.
func Handle() {
	for {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			handleInterrupted()
		}
	}
}
