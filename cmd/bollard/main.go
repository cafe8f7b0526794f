package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bollardhq/bollard/pkg/config"
	"github.com/bollardhq/bollard/pkg/deploy"
	"github.com/bollardhq/bollard/pkg/log"
	"github.com/bollardhq/bollard/pkg/runtime"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	verbose    bool
	jsonLogs   bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bollard",
	Short: "Bollard - Single-server deployment orchestrator",
	Long: `Bollard deploys Rails and Next.js applications to a single server
as Docker containers behind nginx, with zero-downtime rolling restarts,
Let's Encrypt certificates, and an auditable deployment journal.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := log.InfoLevel
		if verbose {
			level = log.DebugLevel
		}
		log.Init(log.Config{Level: level, JSONOutput: jsonLogs})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Bollard version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/bollard/bollard.yml", "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "log as JSON instead of console output")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(scaleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(consoleCmd)
}

// withOrchestrator loads config, connects to Docker, and hands a ready
// orchestrator to fn, closing everything afterwards.
func withOrchestrator(fn func(cfg *config.Config, orch *deploy.Orchestrator) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	rt, err := runtime.NewDockerRuntime(cfg.Server.DockerHost)
	if err != nil {
		return err
	}
	defer rt.Close()

	orch, err := deploy.New(cfg, rt)
	if err != nil {
		return err
	}
	defer orch.Close()

	return fn(cfg, orch)
}
