package tunnel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-i2p/go-router-embed/lib/config"
)

func poolConfig() *config.TunnelConfig {
	return &config.TunnelConfig{
		Transit:         false,
		RelaxedSecurity: true,
		PoolSize:        2,
		BuildInterval:   20 * time.Millisecond,
	}
}

func TestPool_BuildsInitialPool(t *testing.T) {
	p := NewPool(poolConfig())
	require.NoError(t, p.StartAsync(context.Background()))
	defer p.StopForced()

	assert.True(t, p.IsReady())
	assert.Equal(t, 2, p.Size())
}

func TestPool_RelaxedSecurityBuildsSingleHop(t *testing.T) {
	p := NewPool(poolConfig())
	require.NoError(t, p.StartAsync(context.Background()))
	defer p.StopForced()

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, tun := range p.tunnels {
		assert.Equal(t, 1, tun.Hops)
	}
}

func TestPool_StrictSecurityBuildsThreeHops(t *testing.T) {
	cfg := poolConfig()
	cfg.RelaxedSecurity = false
	p := NewPool(cfg)
	require.NoError(t, p.StartAsync(context.Background()))
	defer p.StopForced()

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, tun := range p.tunnels {
		assert.Equal(t, 3, tun.Hops)
	}
}

func TestPool_MaintenanceKeepsPoolFull(t *testing.T) {
	p := NewPool(poolConfig())
	require.NoError(t, p.StartAsync(context.Background()))
	defer p.StopForced()

	// Expire every tunnel by hand, then wait for the maintenance
	// ticker to rebuild the pool.
	p.mu.Lock()
	for id, tun := range p.tunnels {
		tun.BuiltAt = time.Now().Add(-tunnelLifetime)
		p.tunnels[id] = tun
	}
	p.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.Size() == 2 && p.freshPool() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("maintenance loop never replaced expired tunnels")
}

// freshPool reports whether no pooled tunnel is expired.
func (p *Pool) freshPool() bool {
	now := time.Now()
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, tun := range p.tunnels {
		if tun.expired(now) {
			return false
		}
	}
	return true
}

func TestPool_StopClearsTunnels(t *testing.T) {
	p := NewPool(poolConfig())
	require.NoError(t, p.StartAsync(context.Background()))

	p.StopGraceful()
	assert.False(t, p.IsReady())
	assert.Zero(t, p.Size())
}

func TestPool_RestartableAfterStop(t *testing.T) {
	p := NewPool(poolConfig())
	require.NoError(t, p.StartAsync(context.Background()))
	p.StopGraceful()

	require.NoError(t, p.StartAsync(context.Background()))
	assert.Equal(t, 2, p.Size())
	p.StopForced()
}

func TestPool_DoubleStartRejected(t *testing.T) {
	p := NewPool(poolConfig())
	require.NoError(t, p.StartAsync(context.Background()))
	defer p.StopForced()

	assert.Error(t, p.StartAsync(context.Background()))
}

func TestPool_StartRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPool(poolConfig())
	require.Error(t, p.StartAsync(ctx))
	assert.False(t, p.IsReady())
}
