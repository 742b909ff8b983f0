package embedded_test

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-i2p/go-router-embed/lib/config"
	"github.com/go-i2p/go-router-embed/lib/embedded"
)

// testConfig returns the default profile tuned for fast tests: real
// loopback listeners, ephemeral everything.
func testConfig(t *testing.T) *config.RouterConfig {
	t.Helper()
	cfg := config.DefaultRouterConfig()
	cfg.NetDb.Path = t.TempDir()
	cfg.ReadyTimeout = 5 * time.Second
	cfg.Tunnel.BuildInterval = 50 * time.Millisecond
	return cfg
}

func pollStatus(t *testing.T, h *embedded.RouterHandle, want embedded.StatusCode) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if embedded.GetStatus(h) == int32(want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("router never reached status %d, still %d", want, embedded.GetStatus(h))
}

func TestInit_StatusIsStopped(t *testing.T) {
	h := embedded.InitWithConfig(testConfig(t))
	require.NotNil(t, h)
	defer embedded.Destroy(h)

	assert.Equal(t, int32(embedded.StatusStopped), embedded.GetStatus(h))
}

func TestStart_ReturnsPromptly(t *testing.T) {
	h := embedded.InitWithConfig(testConfig(t))
	require.NotNil(t, h)
	defer embedded.Destroy(h)

	begin := time.Now()
	rc := embedded.Start(h)
	elapsed := time.Since(begin)

	assert.Equal(t, embedded.ResultSuccess, rc)
	assert.Less(t, elapsed, time.Second, "start must only initiate async work")

	st := embedded.GetStatus(h)
	assert.Contains(t, []int32{
		int32(embedded.StatusStarting),
		int32(embedded.StatusRunning),
		int32(embedded.StatusError),
	}, st)
}

func TestStart_AlreadyStarted(t *testing.T) {
	h := embedded.InitWithConfig(testConfig(t))
	require.NotNil(t, h)
	defer embedded.Destroy(h)

	require.Equal(t, embedded.ResultSuccess, embedded.Start(h))
	pollStatus(t, h, embedded.StatusRunning)

	assert.Equal(t, embedded.ResultErrAlreadyStarted, embedded.Start(h))
	assert.Equal(t, int32(embedded.StatusRunning), embedded.GetStatus(h))
}

func TestStart_NilHandle(t *testing.T) {
	assert.Equal(t, embedded.ResultErrInvalidParam, embedded.Start(nil))
	assert.Equal(t, embedded.ResultErrInvalidParam, embedded.Stop(nil))
	assert.Equal(t, int32(embedded.ResultErrInvalidParam), embedded.GetStatus(nil))
	assert.Equal(t, int32(embedded.ResultErrInvalidParam), embedded.SAMAvailable(nil))
	assert.Equal(t, int32(embedded.ResultErrInvalidParam), embedded.GetSAMTCPPort(nil))
	assert.Equal(t, int32(embedded.ResultErrInvalidParam), embedded.GetSAMUDPPort(nil))
}

func TestStop_NotStarted(t *testing.T) {
	h := embedded.InitWithConfig(testConfig(t))
	require.NotNil(t, h)
	defer embedded.Destroy(h)

	assert.Equal(t, embedded.ResultErrNotStarted, embedded.Stop(h))
	assert.Equal(t, int32(embedded.StatusStopped), embedded.GetStatus(h))
}

func TestDoubleStop_ForcedShutdownTerminates(t *testing.T) {
	h := embedded.InitWithConfig(testConfig(t))
	require.NotNil(t, h)
	defer embedded.Destroy(h)

	require.Equal(t, embedded.ResultSuccess, embedded.Start(h))
	pollStatus(t, h, embedded.StatusRunning)

	assert.Equal(t, embedded.ResultSuccess, embedded.Stop(h))
	// An immediate second stop escalates to forced and still
	// succeeds, unless the first shutdown already completed.
	rc := embedded.Stop(h)
	assert.Contains(t, []embedded.ResultCode{
		embedded.ResultSuccess,
		embedded.ResultErrNotStarted,
	}, rc)

	pollStatus(t, h, embedded.StatusStopped)
}

func TestSAMBridge_PortsWhileRunning(t *testing.T) {
	h := embedded.InitWithConfig(testConfig(t))
	require.NotNil(t, h)
	defer embedded.Destroy(h)

	require.Equal(t, embedded.ResultSuccess, embedded.Start(h))
	pollStatus(t, h, embedded.StatusRunning)

	assert.Equal(t, int32(1), embedded.SAMAvailable(h))

	tcp := embedded.GetSAMTCPPort(h)
	udp := embedded.GetSAMUDPPort(h)
	assert.GreaterOrEqual(t, tcp, int32(1))
	assert.LessOrEqual(t, tcp, int32(65535))
	assert.GreaterOrEqual(t, udp, int32(1))
	assert.LessOrEqual(t, udp, int32(65535))

	// The reported stream port accepts connections.
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", tcp))
	require.NoError(t, err)
	conn.Close()

	require.Equal(t, embedded.ResultSuccess, embedded.Stop(h))
	pollStatus(t, h, embedded.StatusStopped)
}

func TestSAMBridge_PortsZeroAfterStop(t *testing.T) {
	h := embedded.InitWithConfig(testConfig(t))
	require.NotNil(t, h)
	defer embedded.Destroy(h)

	require.Equal(t, embedded.ResultSuccess, embedded.Start(h))
	pollStatus(t, h, embedded.StatusRunning)
	require.Equal(t, embedded.ResultSuccess, embedded.Stop(h))
	pollStatus(t, h, embedded.StatusStopped)

	assert.Equal(t, int32(0), embedded.GetSAMTCPPort(h))
	assert.Equal(t, int32(0), embedded.GetSAMUDPPort(h))
	assert.Equal(t, int32(0), embedded.SAMAvailable(h))
}

func TestSAMBridge_DisabledYieldsBridgeUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.SAM.Enabled = false
	h := embedded.InitWithConfig(cfg)
	require.NotNil(t, h)
	defer embedded.Destroy(h)

	require.Equal(t, embedded.ResultSuccess, embedded.Start(h))
	pollStatus(t, h, embedded.StatusRunning)

	assert.Equal(t, int32(embedded.ResultErrBridgeUnavailable), embedded.SAMAvailable(h))
	assert.Equal(t, int32(embedded.ResultErrBridgeUnavailable), embedded.GetSAMTCPPort(h))
	assert.Equal(t, int32(embedded.ResultErrBridgeUnavailable), embedded.GetSAMUDPPort(h))

	require.Equal(t, embedded.ResultSuccess, embedded.Stop(h))
	pollStatus(t, h, embedded.StatusStopped)
}

func TestDestroy_NilIsNoOp(t *testing.T) {
	embedded.Destroy(nil)
	embedded.Destroy(&embedded.RouterHandle{})
}

func TestDestroy_HandleUnusableAfterwards(t *testing.T) {
	h := embedded.InitWithConfig(testConfig(t))
	require.NotNil(t, h)

	require.Equal(t, embedded.ResultSuccess, embedded.Start(h))
	pollStatus(t, h, embedded.StatusRunning)

	embedded.Destroy(h)

	assert.Equal(t, int32(embedded.ResultErrNotInitialized), embedded.GetStatus(h))
	assert.Equal(t, int32(embedded.ResultErrNotInitialized), embedded.SAMAvailable(h))
	assert.Equal(t, int32(embedded.ResultErrNotInitialized), embedded.GetSAMTCPPort(h))
	assert.Equal(t, int32(embedded.ResultErrNotInitialized), embedded.GetSAMUDPPort(h))
	assert.Equal(t, embedded.ResultErrNotInitialized, embedded.Start(h))
	assert.Equal(t, embedded.ResultErrNotInitialized, embedded.Stop(h))

	// Destroy twice is harmless.
	embedded.Destroy(h)
}

// TestConcurrentReaders_DuringStart exercises the atomic-pair
// property through the numeric surface: a reader that observes
// StatusRunning around both port reads must see both ports bound.
// The two getters are separate snapshots, so reads spanning a stop's
// reset are excluded by re-checking status afterwards; within this
// test's single start/stop cycle that brackets the reads inside the
// published window.
func TestConcurrentReaders_DuringStart(t *testing.T) {
	h := embedded.InitWithConfig(testConfig(t))
	require.NotNil(t, h)
	defer embedded.Destroy(h)

	var stop atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				if embedded.GetStatus(h) != int32(embedded.StatusRunning) {
					continue
				}
				tcp := embedded.GetSAMTCPPort(h)
				udp := embedded.GetSAMUDPPort(h)
				if embedded.GetStatus(h) != int32(embedded.StatusRunning) {
					continue
				}
				if tcp == 0 || udp == 0 {
					t.Errorf("running without full pair: tcp=%d udp=%d", tcp, udp)
					return
				}
			}
		}()
	}

	require.Equal(t, embedded.ResultSuccess, embedded.Start(h))
	pollStatus(t, h, embedded.StatusRunning)
	require.Equal(t, embedded.ResultSuccess, embedded.Stop(h))
	pollStatus(t, h, embedded.StatusStopped)

	stop.Store(true)
	wg.Wait()
}

// TestFullLifecycleScenario is the end-to-end contract walk: create,
// start, poll to running, read both ports, stop, poll to stopped,
// destroy, and verify the handle is dead.
func TestFullLifecycleScenario(t *testing.T) {
	h := embedded.InitWithConfig(testConfig(t))
	require.NotNil(t, h)

	require.Equal(t, int32(embedded.StatusStopped), embedded.GetStatus(h))
	require.Equal(t, embedded.ResultSuccess, embedded.Start(h))

	pollStatus(t, h, embedded.StatusRunning)

	tcp := embedded.GetSAMTCPPort(h)
	udp := embedded.GetSAMUDPPort(h)
	require.NotZero(t, tcp)
	require.NotZero(t, udp)

	require.Equal(t, embedded.ResultSuccess, embedded.Stop(h))
	pollStatus(t, h, embedded.StatusStopped)
	require.Equal(t, int32(0), embedded.GetSAMTCPPort(h))

	embedded.Destroy(h)
	require.Equal(t, int32(embedded.ResultErrNotInitialized), embedded.GetStatus(h))
}

// TestIndependentInstances runs two routers side by side in one
// process; their bridges must bind distinct ports.
func TestIndependentInstances(t *testing.T) {
	h1 := embedded.InitWithConfig(testConfig(t))
	h2 := embedded.InitWithConfig(testConfig(t))
	require.NotNil(t, h1)
	require.NotNil(t, h2)
	defer embedded.Destroy(h1)
	defer embedded.Destroy(h2)

	require.Equal(t, embedded.ResultSuccess, embedded.Start(h1))
	require.Equal(t, embedded.ResultSuccess, embedded.Start(h2))
	pollStatus(t, h1, embedded.StatusRunning)
	pollStatus(t, h2, embedded.StatusRunning)

	assert.NotEqual(t, embedded.GetSAMTCPPort(h1), embedded.GetSAMTCPPort(h2))

	require.Equal(t, embedded.ResultSuccess, embedded.Stop(h1))
	require.Equal(t, embedded.ResultSuccess, embedded.Stop(h2))
	pollStatus(t, h1, embedded.StatusStopped)
	pollStatus(t, h2, embedded.StatusStopped)
}
