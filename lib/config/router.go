package config

import (
	"time"
)

// router.config options
type RouterConfig struct {
	// the path to the working directory where runtime files are kept
	WorkingDir string
	// transport layer configuration
	Transport *TransportConfig
	// netdb configuration
	NetDb *NetDbConfig
	// tunnel manager configuration
	Tunnel *TunnelConfig
	// SAM bridge configuration
	SAM *SAMConfig
	// ReadyTimeout bounds how long bootstrap waits for any single
	// subsystem to report readiness before the router enters the
	// error state.
	ReadyTimeout time.Duration
}

// TransportConfig holds the transport layer listener settings.
type TransportConfig struct {
	// Host is the listen address for the transport layer.
	Host string
	// Port is the transport listen port. 0 requests an ephemeral
	// port from the operating system.
	Port int
	// Publish controls whether the transport address is advertised
	// to other routers. Embedded routers default to unpublished.
	Publish bool
	// ClockSkewCheck enables a one-shot NTP probe at startup that
	// logs the local clock offset. Never fatal.
	ClockSkewCheck bool
}

// NetDbConfig holds the network database storage settings.
type NetDbConfig struct {
	// Path is the directory the netdb persists to on graceful
	// shutdown. Empty selects an ephemeral per-instance directory.
	Path string
}

// TunnelConfig holds tunnel manager settings.
type TunnelConfig struct {
	// Transit controls whether this router relays tunnels for other
	// peers. Disabled by default to minimize resource use.
	Transit bool
	// RelaxedSecurity trades tunnel length for startup speed by
	// building single-hop tunnels.
	RelaxedSecurity bool
	// PoolSize is the number of tunnels the pool maintains.
	PoolSize int
	// BuildInterval is how often the pool maintenance loop runs.
	BuildInterval time.Duration
}

// SAMConfig holds SAM bridge listener settings.
type SAMConfig struct {
	// Enabled controls whether the SAM bridge subsystem starts.
	Enabled bool
	// Host is the bridge listen address, loopback by default.
	Host string
	// TCPPort and UDPPort are the bridge listen ports. 0 requests
	// ephemeral ports from the operating system.
	TCPPort int
	UDPPort int
	// AcceptsPerSecond rate-limits new bridge connections.
	AcceptsPerSecond float64
}

// DefaultRouterConfig returns the configuration profile for an
// embedded router: unpublished ephemeral transport, transit relaying
// disabled, SAM bridge enabled on ephemeral loopback ports, ephemeral
// local storage and relaxed tunnel security for fast startup.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		Transport: &TransportConfig{
			Host:    "127.0.0.1",
			Port:    0,
			Publish: false,
		},
		NetDb: &NetDbConfig{
			Path: "",
		},
		Tunnel: &TunnelConfig{
			Transit:         false,
			RelaxedSecurity: true,
			PoolSize:        2,
			BuildInterval:   250 * time.Millisecond,
		},
		SAM: &SAMConfig{
			Enabled:          true,
			Host:             "127.0.0.1",
			TCPPort:          0,
			UDPPort:          0,
			AcceptsPerSecond: 32,
		},
		ReadyTimeout: 30 * time.Second,
	}
}
