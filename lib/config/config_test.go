package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultRouterConfig_EmbeddedProfile pins the default profile an
// embedded router runs with: nothing published, nothing persistent,
// everything ephemeral, bridge on.
func TestDefaultRouterConfig_EmbeddedProfile(t *testing.T) {
	cfg := DefaultRouterConfig()
	require.NotNil(t, cfg.Transport)
	require.NotNil(t, cfg.NetDb)
	require.NotNil(t, cfg.Tunnel)
	require.NotNil(t, cfg.SAM)

	assert.Equal(t, "127.0.0.1", cfg.Transport.Host)
	assert.Zero(t, cfg.Transport.Port, "transport defaults to an ephemeral port")
	assert.False(t, cfg.Transport.Publish, "embedded transport is unpublished")

	assert.Empty(t, cfg.NetDb.Path, "storage defaults to ephemeral")

	assert.False(t, cfg.Tunnel.Transit, "transit relaying is off by default")
	assert.True(t, cfg.Tunnel.RelaxedSecurity, "relaxed tunnels for fast startup")
	assert.Greater(t, cfg.Tunnel.PoolSize, 0)

	assert.True(t, cfg.SAM.Enabled)
	assert.Equal(t, "127.0.0.1", cfg.SAM.Host)
	assert.Zero(t, cfg.SAM.TCPPort)
	assert.Zero(t, cfg.SAM.UDPPort)

	assert.Greater(t, cfg.ReadyTimeout, time.Duration(0))
}

func TestDefaultRouterConfig_FreshInstances(t *testing.T) {
	a := DefaultRouterConfig()
	b := DefaultRouterConfig()
	a.SAM.Enabled = false
	assert.True(t, b.SAM.Enabled, "defaults must not share nested structs")
}

func TestNewRouterConfigFromViper_Defaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	setDefaults()

	cfg := NewRouterConfigFromViper()
	want := DefaultRouterConfig()

	assert.Equal(t, want.Transport.Host, cfg.Transport.Host)
	assert.Equal(t, want.Tunnel.Transit, cfg.Tunnel.Transit)
	assert.Equal(t, want.Tunnel.PoolSize, cfg.Tunnel.PoolSize)
	assert.Equal(t, want.SAM.Enabled, cfg.SAM.Enabled)
	assert.Equal(t, want.ReadyTimeout, cfg.ReadyTimeout)
}

func TestNewRouterConfigFromViper_Overrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	setDefaults()

	viper.Set("sam.enabled", false)
	viper.Set("sam.tcp_port", 7656)
	viper.Set("tunnel.pool_size", 5)
	viper.Set("netdb.path", "/var/lib/router/netdb")
	viper.Set("ready_timeout", "45s")

	cfg := NewRouterConfigFromViper()
	assert.False(t, cfg.SAM.Enabled)
	assert.Equal(t, 7656, cfg.SAM.TCPPort)
	assert.Equal(t, 5, cfg.Tunnel.PoolSize)
	assert.Equal(t, "/var/lib/router/netdb", cfg.NetDb.Path)
	assert.Equal(t, 45*time.Second, cfg.ReadyTimeout)
}
