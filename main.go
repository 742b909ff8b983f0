package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-i2p/go-router-embed/lib/config"
	"github.com/go-i2p/go-router-embed/lib/embedded"
	"github.com/go-i2p/go-router-embed/lib/util/signals"
)

var rootCmd = &cobra.Command{
	Use:   "go-router-embed",
	Short: "Run an embedded anonymity router until interrupted",
	Long: `Starts an embedded router with the default profile (ephemeral
unpublished transport, SAM bridge on ephemeral loopback ports, transit
relaying disabled), prints the SAM ports once running, and shuts down
gracefully on SIGINT/SIGTERM. A second interrupt forces shutdown.`,
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&config.CfgFile, "config", "", "config file (default $HOME/.go-router-embed/config.yaml)")
	cobra.OnInitialize(config.InitConfig)
}

func run(cmd *cobra.Command, args []string) error {
	h := embedded.InitWithConfig(config.NewRouterConfigFromViper())
	if h == nil {
		return fmt.Errorf("failed to create router")
	}
	defer embedded.Destroy(h)

	if rc := embedded.Start(h); rc != embedded.ResultSuccess {
		return fmt.Errorf("failed to start router: code %d", rc)
	}

	for embedded.GetStatus(h) == int32(embedded.StatusStarting) {
		time.Sleep(100 * time.Millisecond)
	}

	switch embedded.GetStatus(h) {
	case int32(embedded.StatusRunning):
		if embedded.SAMAvailable(h) == 1 {
			fmt.Printf("SAM bridge listening: tcp=%d udp=%d\n",
				embedded.GetSAMTCPPort(h), embedded.GetSAMUDPPort(h))
		} else {
			fmt.Println("router running, SAM bridge disabled")
		}
	case int32(embedded.StatusError):
		return fmt.Errorf("router failed to start; see logs")
	}

	// First interrupt stops gracefully; a second escalates to a
	// forced shutdown via the same Stop call.
	signals.RegisterInterruptHandler(func() {
		embedded.Stop(h)
	})
	go signals.Handle()
	defer signals.StopHandle()

	for embedded.GetStatus(h) != int32(embedded.StatusStopped) {
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("router stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
