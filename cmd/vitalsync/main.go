package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vitalsync/vitalsync/pkg/agent"
	"github.com/vitalsync/vitalsync/pkg/config"
	"github.com/vitalsync/vitalsync/pkg/log"
	"github.com/vitalsync/vitalsync/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vitalsync",
	Short: "VitalSync - local-first health data sync agent",
	Long: `VitalSync keeps health and fitness records available locally and
synced to a remote backend. Every mutation commits to the local store
first; a background drainer delivers it to the backend with retry,
backoff, and rate limiting. Reads merge device sensor data with the
synced store by recency.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"VitalSync version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(outboxCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync agent",
	Long: `Run the VitalSync agent in the foreground.

The agent opens the local store, starts the outbox drainer and the
remote reachability monitor, and serves metrics and health probes on
the configured listen address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlagOverrides(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		log.Init(logConfig(cfg))
		metrics.SetVersion(Version)

		a, err := agent.New(cfg, nil)
		if err != nil {
			return err
		}
		if err := a.Start(); err != nil {
			return err
		}

		fmt.Println("Agent is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		a.Stop()
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	runCmd.Flags().String("config", "", "Path to YAML config file")
	runCmd.Flags().String("data-dir", "", "Override data directory")
	runCmd.Flags().String("remote", "", "Override remote API base URL")
	runCmd.Flags().String("listen", "", "Override metrics/health listen address")
}

// logConfig maps agent settings onto the logger's config
func logConfig(cfg config.Config) log.Config {
	return log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	}
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if remote, _ := cmd.Flags().GetString("remote"); remote != "" {
		cfg.Remote.BaseURL = remote
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Listen = listen
	}
}
