package upstream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/executor"
	"github.com/rs/zerolog"

	"github.com/bollardhq/bollard/pkg/config"
	"github.com/bollardhq/bollard/pkg/log"
	"github.com/bollardhq/bollard/pkg/metrics"
	"github.com/bollardhq/bollard/pkg/types"
)

// Nginx is the load balancer control surface: syntax validation of the
// complete configuration and a graceful reload. The production
// implementation shells out to the nginx binary; tests substitute fakes.
type Nginx interface {
	Test(ctx context.Context) error
	Reload(ctx context.Context) error
}

// nginxCLI drives the real binary. nginx -t is the actual source of truth
// for configuration correctness; bollard never re-implements its parser.
type nginxCLI struct {
	exec *executor.WrappedExecutor
}

// NewNginxCLI returns an Nginx over the given binary.
func NewNginxCLI(binary string) Nginx {
	return &nginxCLI{exec: executor.NewWrappedExecutor(binary)}
}

func (n *nginxCLI) Test(ctx context.Context) error {
	result, err := n.exec.Execute(ctx, []string{"-t"}, executor.WithCapture(false, false, true))
	if err != nil {
		output := ""
		if result != nil {
			output = strings.TrimSpace(result.Combined)
		}
		return fmt.Errorf("nginx configuration test failed: %s", output)
	}
	return nil
}

func (n *nginxCLI) Reload(ctx context.Context) error {
	result, err := n.exec.Execute(ctx, []string{"-s", "reload"}, executor.WithCapture(false, false, true))
	if err != nil {
		output := ""
		if result != nil {
			output = strings.TrimSpace(result.Combined)
		}
		return fmt.Errorf("nginx reload failed: %s", output)
	}
	return nil
}

// Publisher regenerates and swaps in the per-app nginx site file.
type Publisher struct {
	confDir    string
	stagingDir string
	nginx      Nginx
	logger     zerolog.Logger
}

// NewPublisher creates a publisher for the configured nginx layout.
func NewPublisher(cfg config.NginxConfig) *Publisher {
	return &Publisher{
		confDir:    cfg.ConfDir,
		stagingDir: cfg.StagingDir,
		nginx:      NewNginxCLI(cfg.Binary),
		logger:     log.WithComponent("upstream"),
	}
}

// WithNginx overrides the nginx control surface (tests).
func (p *Publisher) WithNginx(n Nginx) *Publisher {
	p.nginx = n
	return p
}

// Publish regenerates the site file for the upstream set and swaps it in
// with test-before-reload semantics:
//
//  1. render to the staging directory
//  2. back up the live file, move the candidate into place
//  3. nginx -t over the complete configuration
//  4. on failure: restore the backup, no reload, report the error
//  5. on success: drop the backup, graceful reload
//
// There is no diffing: an identical set re-renders byte-identically and
// the reload is a harmless no-op. Redundant work is traded for certainty.
func (p *Publisher) Publish(ctx context.Context, set *types.UpstreamSet) error {
	if err := p.publish(ctx, set); err != nil {
		metrics.UpstreamPublishesTotal.WithLabelValues("failure").Inc()
		return err
	}
	metrics.UpstreamPublishesTotal.WithLabelValues("success").Inc()
	return nil
}

func (p *Publisher) publish(ctx context.Context, set *types.UpstreamSet) error {
	content, err := Render(set)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(p.stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}
	if err := os.MkdirAll(p.confDir, 0755); err != nil {
		return fmt.Errorf("failed to create conf dir: %w", err)
	}

	stagingPath := filepath.Join(p.stagingDir, set.AppName+".conf")
	livePath := filepath.Join(p.confDir, set.AppName+".conf")
	backupPath := livePath + ".prev"

	if err := os.WriteFile(stagingPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write staged config: %w", err)
	}

	hadLive, err := backupFile(livePath, backupPath)
	if err != nil {
		return err
	}

	if err := os.Rename(stagingPath, livePath); err != nil {
		return fmt.Errorf("failed to install candidate config: %w", err)
	}

	if err := p.nginx.Test(ctx); err != nil {
		// The previous configuration must stay live. Put it back and
		// skip the reload entirely.
		if restoreErr := restoreFile(livePath, backupPath, hadLive); restoreErr != nil {
			return fmt.Errorf("%w (and restoring previous config failed: %v)", err, restoreErr)
		}
		p.logger.Error().Err(err).Str("app", set.AppName).Msg("candidate config rejected, previous config restored")
		return err
	}

	if hadLive {
		if err := os.Remove(backupPath); err != nil {
			p.logger.Warn().Err(err).Msg("failed to remove config backup")
		}
	}

	if err := p.nginx.Reload(ctx); err != nil {
		return err
	}

	p.logger.Info().Str("app", set.AppName).Int("backends", len(set.Backends)).Msg("upstream published")
	return nil
}

// backupFile copies live aside if it exists; reports whether it did.
func backupFile(livePath, backupPath string) (bool, error) {
	data, err := os.ReadFile(livePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read live config: %w", err)
	}
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return false, fmt.Errorf("failed to back up live config: %w", err)
	}
	return true, nil
}

func restoreFile(livePath, backupPath string, hadLive bool) error {
	if !hadLive {
		return os.Remove(livePath)
	}
	return os.Rename(backupPath, livePath)
}

// FromReplicas builds the upstream set for an app from its verified
// replica set. Replicas listen on loopback only; nginx is the sole public
// entry point.
func FromReplicas(app *types.App, replicas []*types.Replica) *types.UpstreamSet {
	set := &types.UpstreamSet{AppName: app.Name, Domain: app.Domain}
	for _, r := range replicas {
		set.Backends = append(set.Backends, types.Backend{Host: "127.0.0.1", Port: r.HostPort})
	}
	return set
}
