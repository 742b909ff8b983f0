package config

import (
	"os"
	"path/filepath"

	"github.com/go-i2p/go-router-embed/lib/util"
	"github.com/go-i2p/logger"
	"github.com/spf13/viper"
)

var (
	CfgFile string
	log     = logger.GetGoI2PLogger()
)

const RouterEmbedBaseDir = ".go-router-embed"

// InitConfig loads the router configuration file, creating a default
// one on first run. Intended for the CLI; embedding applications
// normally build a RouterConfig directly.
func InitConfig() {
	if CfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(CfgFile)
	} else {
		viper.AddConfigPath(BuildRouterDirPath())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	handleConfigFile()
}

func setDefaults() {
	defaults := DefaultRouterConfig()

	viper.SetDefault("working_dir", defaultWorkingDir())

	// Transport defaults
	viper.SetDefault("transport.host", defaults.Transport.Host)
	viper.SetDefault("transport.port", defaults.Transport.Port)
	viper.SetDefault("transport.publish", defaults.Transport.Publish)
	viper.SetDefault("transport.clock_skew_check", defaults.Transport.ClockSkewCheck)

	// NetDb defaults
	viper.SetDefault("netdb.path", defaults.NetDb.Path)

	// Tunnel defaults
	viper.SetDefault("tunnel.transit", defaults.Tunnel.Transit)
	viper.SetDefault("tunnel.relaxed_security", defaults.Tunnel.RelaxedSecurity)
	viper.SetDefault("tunnel.pool_size", defaults.Tunnel.PoolSize)
	viper.SetDefault("tunnel.build_interval", defaults.Tunnel.BuildInterval)

	// SAM bridge defaults
	viper.SetDefault("sam.enabled", defaults.SAM.Enabled)
	viper.SetDefault("sam.host", defaults.SAM.Host)
	viper.SetDefault("sam.tcp_port", defaults.SAM.TCPPort)
	viper.SetDefault("sam.udp_port", defaults.SAM.UDPPort)
	viper.SetDefault("sam.accepts_per_second", defaults.SAM.AcceptsPerSecond)

	viper.SetDefault("ready_timeout", defaults.ReadyTimeout)
}

// NewRouterConfigFromViper creates a new RouterConfig from current
// viper settings.
func NewRouterConfigFromViper() *RouterConfig {
	return &RouterConfig{
		WorkingDir: viper.GetString("working_dir"),
		Transport: &TransportConfig{
			Host:           viper.GetString("transport.host"),
			Port:           viper.GetInt("transport.port"),
			Publish:        viper.GetBool("transport.publish"),
			ClockSkewCheck: viper.GetBool("transport.clock_skew_check"),
		},
		NetDb: &NetDbConfig{
			Path: viper.GetString("netdb.path"),
		},
		Tunnel: &TunnelConfig{
			Transit:         viper.GetBool("tunnel.transit"),
			RelaxedSecurity: viper.GetBool("tunnel.relaxed_security"),
			PoolSize:        viper.GetInt("tunnel.pool_size"),
			BuildInterval:   viper.GetDuration("tunnel.build_interval"),
		},
		SAM: &SAMConfig{
			Enabled:          viper.GetBool("sam.enabled"),
			Host:             viper.GetString("sam.host"),
			TCPPort:          viper.GetInt("sam.tcp_port"),
			UDPPort:          viper.GetInt("sam.udp_port"),
			AcceptsPerSecond: viper.GetFloat64("sam.accepts_per_second"),
		},
		ReadyTimeout: viper.GetDuration("ready_timeout"),
	}
}

func createDefaultConfig(defaultConfigDir string) {
	defaultConfigFile := filepath.Join(defaultConfigDir, "config.yaml")
	if err := os.MkdirAll(defaultConfigDir, 0o755); err != nil {
		log.Fatalf("Could not create config directory: %s", err)
	}

	if err := viper.WriteConfigAs(defaultConfigFile); err != nil {
		log.Fatalf("Could not write default config file: %s", err)
	}

	log.Debugf("Created default configuration at: %s", defaultConfigFile)
}

func handleConfigFile() {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if CfgFile != "" {
				log.Fatalf("Config file %s is not found: %s", CfgFile, err)
			} else {
				createDefaultConfig(BuildRouterDirPath())
			}
		} else {
			log.Fatalf("Error reading config file: %s", err)
		}
	} else {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

func BuildRouterDirPath() string {
	return filepath.Join(util.UserHome(), RouterEmbedBaseDir)
}

func defaultWorkingDir() string {
	return filepath.Join(BuildRouterDirPath(), "work")
}
