package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/bollardhq/bollard/pkg/log"
	"github.com/bollardhq/bollard/pkg/types"
)

const (
	deploymentsLog = "deployments.log"
	releaseLog     = "release.log"
)

// Journal records deployment outcomes in two forms: an append-only text
// log an operator can tail, and a BoltDB history the status command
// queries. Journal failures are logged but never fail a deployment; the
// record of a deploy must not take down the deploy.
type Journal struct {
	store  *Store
	logDir string
	logger zerolog.Logger
}

func New(dataDir, logDir string) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}

	store, err := NewStore(dataDir)
	if err != nil {
		return nil, err
	}
	return &Journal{
		store:  store,
		logDir: logDir,
		logger: log.WithComponent("journal"),
	}, nil
}

func (j *Journal) Close() error {
	return j.store.Close()
}

// Begin marks the start of a deployment in both text logs.
func (j *Journal) Begin(rec *types.ReleaseRecord) {
	started := rec.StartedAt.UTC().Format(time.RFC3339)
	j.appendLine(deploymentsLog, fmt.Sprintf("%s %s %s started (image %s)\n",
		started, rec.AppName, rec.Kind, rec.Image))
	j.appendLine(releaseLog, fmt.Sprintf("===== %s release %s started =====\n  at:    %s\n  image: %s\n  kind:  %s\n",
		rec.AppName, rec.ID, started, rec.Image, rec.Kind))
}

// Finish persists the final record and appends the outcome to both
// text logs.
func (j *Journal) Finish(rec *types.ReleaseRecord) {
	if err := j.store.PutRelease(rec); err != nil {
		j.logger.Error().Err(err).Str("app", rec.AppName).Msg("failed to persist release record")
	}

	finished := rec.FinishedAt.UTC().Format(time.RFC3339)
	elapsed := rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond)
	if rec.Succeeded {
		j.appendLine(deploymentsLog, fmt.Sprintf("%s %s %s succeeded in %s (image %s, %d replica(s))\n",
			finished, rec.AppName, rec.Kind, elapsed, rec.Image, rec.Replicas))
		j.appendLine(releaseLog, fmt.Sprintf("===== %s release %s SUCCEEDED =====\n  at:       %s\n  elapsed:  %s\n  replicas: %d\n",
			rec.AppName, rec.ID, finished, elapsed, rec.Replicas))
		return
	}
	j.appendLine(deploymentsLog, fmt.Sprintf("%s %s %s FAILED in %s: %s\n",
		finished, rec.AppName, rec.Kind, elapsed, rec.Error))
	j.appendLine(releaseLog, fmt.Sprintf("===== %s release %s FAILED =====\n  at:      %s\n  elapsed: %s\n  error:   %s\n",
		rec.AppName, rec.ID, finished, elapsed, rec.Error))
}

// History returns an app's releases, most recent first.
func (j *Journal) History(app string, limit int) ([]*types.ReleaseRecord, error) {
	return j.store.History(app, limit)
}

// LastSuccess returns the app's most recent successful release, or nil.
func (j *Journal) LastSuccess(app string) (*types.ReleaseRecord, error) {
	return j.store.LastSuccess(app)
}

func (j *Journal) appendLine(name, line string) {
	path := filepath.Join(j.logDir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		j.logger.Error().Err(err).Str("path", path).Msg("failed to open deployment log")
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		j.logger.Error().Err(err).Str("path", path).Msg("failed to append deployment log")
	}
}
