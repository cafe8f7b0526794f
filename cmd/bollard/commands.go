package main

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/bollardhq/bollard/pkg/apps"
	"github.com/bollardhq/bollard/pkg/config"
	"github.com/bollardhq/bollard/pkg/deploy"
	"github.com/bollardhq/bollard/pkg/runtime"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <app>",
	Short: "Deploy an application from its repository",
	Long: `Deploy syncs the application's repository, builds a fresh image,
runs migrations, and rolls replicas onto the new image with zero
downtime. The first deploy of an app starts its full replica set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrchestrator(func(cfg *config.Config, orch *deploy.Orchestrator) error {
			report, err := orch.Deploy(cmd.Context(), args[0])
			if report != nil {
				fmt.Println(report.Summary())
			}
			return err
		})
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart <app>",
	Short: "Rolling-restart an application on its current image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrchestrator(func(cfg *config.Config, orch *deploy.Orchestrator) error {
			report, err := orch.Restart(cmd.Context(), args[0])
			if report != nil {
				fmt.Println(report.Summary())
			}
			return err
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <app>",
	Short: "Stop all replicas of an application",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrchestrator(func(cfg *config.Config, orch *deploy.Orchestrator) error {
			if err := orch.Stop(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("%s: all replicas stopped\n", args[0])
			return nil
		})
	},
}

// parseReplicaCount validates the scale argument before anything touches
// a container. Rejecting here keeps bad input from ever reaching Docker.
func parseReplicaCount(arg string) (int, error) {
	target, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("replica count must be a number, got %q", arg)
	}
	if target < config.MinScale || target > config.MaxScale {
		return 0, fmt.Errorf("replica count must be between %d and %d, got %d",
			config.MinScale, config.MaxScale, target)
	}
	return target, nil
}

var scaleCmd = &cobra.Command{
	Use:   "scale <app> <replicas>",
	Short: "Change an application's replica count",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseReplicaCount(args[1])
		if err != nil {
			return err
		}
		return withOrchestrator(func(cfg *config.Config, orch *deploy.Orchestrator) error {
			if err := orch.Scale(cmd.Context(), args[0], target); err != nil {
				return err
			}
			fmt.Printf("%s: scaled to %d replica(s)\n", args[0], target)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [app]",
	Short: "Show running replicas and last release per application",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appName := ""
		if len(args) == 1 {
			appName = args[0]
		}
		return withOrchestrator(func(cfg *config.Config, orch *deploy.Orchestrator) error {
			statuses, err := orch.Status(cmd.Context(), appName)
			if err != nil {
				return err
			}
			for _, st := range statuses {
				fmt.Printf("%s (%s, %s)\n", st.App.Name, st.App.Type, st.App.Domain)
				if len(st.Replicas) == 0 {
					fmt.Println("  no replicas running")
				}
				for _, r := range st.Replicas {
					fmt.Printf("  %s  127.0.0.1:%d\n", st.App.ReplicaName(r.Ordinal), r.HostPort)
				}
				if st.LastRelease != nil {
					fmt.Printf("  last release: %s at %s\n",
						st.LastRelease.Image,
						st.LastRelease.FinishedAt.Local().Format(time.RFC822))
				}
			}
			return nil
		})
	},
}

var logsFollow bool

var logsCmd = &cobra.Command{
	Use:   "logs <app> [ordinal]",
	Short: "Print a replica's container logs",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ordinal := 1
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("ordinal must be a positive number, got %q", args[1])
			}
			ordinal = n
		}
		return withRuntime(func(cfg *config.Config, rt *runtime.DockerRuntime) error {
			app, err := cfg.App(args[0])
			if err != nil {
				return err
			}
			return rt.ReplicaLogs(cmd.Context(), app.ReplicaName(ordinal), logsFollow, os.Stdout)
		})
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console <app>",
	Short: "Open a database console in replica 1",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		app, err := cfg.App(args[0])
		if err != nil {
			return err
		}
		deployable, err := apps.For(app)
		if err != nil {
			return err
		}
		consoleArgs, err := deployable.ConsoleCommand()
		if err != nil {
			return err
		}

		// An interactive TTY has to be inherited, not captured, so the
		// docker CLI is driven directly here.
		execArgs := append([]string{"exec", "-it", app.ReplicaName(1)}, consoleArgs...)
		c := exec.CommandContext(cmd.Context(), "docker", execArgs...)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
	Args: cobra.ExactArgs(1),
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "stream logs until interrupted")
}

// withRuntime is withOrchestrator minus the orchestrator, for commands
// that only read from Docker.
func withRuntime(fn func(cfg *config.Config, rt *runtime.DockerRuntime) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	rt, err := runtime.NewDockerRuntime(cfg.Server.DockerHost)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(cfg, rt)
}
