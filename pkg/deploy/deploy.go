package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bollardhq/bollard/pkg/apps"
	"github.com/bollardhq/bollard/pkg/certguard"
	"github.com/bollardhq/bollard/pkg/config"
	"github.com/bollardhq/bollard/pkg/journal"
	"github.com/bollardhq/bollard/pkg/lifecycle"
	"github.com/bollardhq/bollard/pkg/lock"
	"github.com/bollardhq/bollard/pkg/log"
	"github.com/bollardhq/bollard/pkg/metrics"
	"github.com/bollardhq/bollard/pkg/notify"
	"github.com/bollardhq/bollard/pkg/plan"
	"github.com/bollardhq/bollard/pkg/runtime"
	"github.com/bollardhq/bollard/pkg/source"
	"github.com/bollardhq/bollard/pkg/types"
	"github.com/bollardhq/bollard/pkg/upstream"
)

// Pipeline stage seams, narrowed so tests can substitute fakes without
// a container runtime, nginx, or certbot on the machine.
type replicaController interface {
	Execute(ctx context.Context, app *types.App, plan *types.DeploymentPlan) error
	ScaleTo(ctx context.Context, app *types.App, image string, current, target int) error
	StopAll(ctx context.Context, app *types.App) error
}

type sitePublisher interface {
	Publish(ctx context.Context, set *types.UpstreamSet) error
}

type certEnsurer interface {
	Ensure(ctx context.Context, app *types.App) *types.CertResult
}

type sourceSyncer interface {
	Sync(ctx context.Context, app *types.App) (*source.Checkout, error)
}

type notifier interface {
	Send(ctx context.Context, report *types.DeployReport)
}

// Orchestrator drives a deployment end to end: source sync, image
// build, migrations, replica rollover, nginx publication, certificate
// reconciliation, and the journal/notification trail.
type Orchestrator struct {
	cfg        *config.Config
	rt         runtime.Runtime
	planner    *plan.Planner
	controller replicaController
	publisher  sitePublisher
	guardian   certEnsurer
	workspace  sourceSyncer
	journal    *journal.Journal
	mailer     notifier
	logger     zerolog.Logger
}

// New assembles an orchestrator over the real pipeline stages.
func New(cfg *config.Config, rt runtime.Runtime) (*Orchestrator, error) {
	jnl, err := journal.New(cfg.Paths.DataDir, cfg.Paths.LogDir)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:        cfg,
		rt:         rt,
		planner:    plan.NewPlanner(rt),
		controller: lifecycle.NewController(rt, cfg.Health),
		publisher:  upstream.NewPublisher(cfg.Nginx),
		guardian:   certguard.NewGuardian(cfg.Certbot, cfg.Server),
		workspace:  source.NewWorkspace(cfg.Paths.Workspace),
		journal:    jnl,
		mailer:     notify.NewMailer(cfg.Notify),
		logger:     log.WithComponent("deploy"),
	}, nil
}

func (o *Orchestrator) Close() error {
	return o.journal.Close()
}

// Journal exposes release history for the status command.
func (o *Orchestrator) Journal() *journal.Journal {
	return o.journal
}

// Deploy runs the full pipeline for one application. The returned
// report is always non-nil once the lock is held; the error mirrors
// report failure so callers can pick either.
func (o *Orchestrator) Deploy(ctx context.Context, appName string) (*types.DeployReport, error) {
	app, err := o.cfg.App(appName)
	if err != nil {
		return nil, err
	}
	deployable, err := apps.For(app)
	if err != nil {
		return nil, err
	}

	appLock := lock.ForApp(o.cfg.Paths.LockDir, app.Name)
	if err := appLock.Acquire(); err != nil {
		return nil, err
	}
	defer appLock.Release()

	report := o.newReport(app)
	logger := o.logger.With().Str("app", app.Name).Str("deploy_id", report.ID).Logger()
	logger.Info().Msg("deployment started")

	err = o.run(ctx, logger, deployable, report)
	o.finish(ctx, report, err)
	return report, err
}

// run executes the pipeline stages, tagging each failure with its phase.
func (o *Orchestrator) run(ctx context.Context, logger zerolog.Logger, deployable apps.Deployable, report *types.DeployReport) error {
	app := deployable.App()

	checkout, err := o.workspace.Sync(ctx, app)
	if err != nil {
		return &lifecycle.PhaseError{Phase: types.PhasePull, Err: err}
	}
	image := deployable.ImageTag(checkout)

	deployPlan, err := o.planner.Plan(ctx, app, image)
	if err != nil {
		return &lifecycle.PhaseError{Phase: types.PhasePlan, Err: err}
	}
	report.Plan = deployPlan
	logger.Info().
		Str("kind", string(deployPlan.Kind)).
		Int("replicas", deployPlan.Replicas).
		Str("image", image).
		Msg("plan computed")
	o.journal.Begin(&types.ReleaseRecord{
		ID:        report.ID,
		AppName:   app.Name,
		Image:     image,
		Kind:      deployPlan.Kind,
		StartedAt: report.StartedAt,
	})

	if err := deployable.Build(ctx, o.rt, checkout, image); err != nil {
		return &lifecycle.PhaseError{Phase: types.PhaseBuild, Err: err}
	}
	if err := deployable.Migrate(ctx, o.rt, image); err != nil {
		return &lifecycle.PhaseError{Phase: types.PhaseMigrate, Err: err}
	}

	if err := o.controller.Execute(ctx, app, deployPlan); err != nil {
		return err
	}

	if err := o.publish(ctx, app); err != nil {
		return err
	}

	report.CertResult = o.guardian.Ensure(ctx, app)
	return nil
}

// Restart rolls the current replicas onto the last successfully
// deployed image without touching source, build, or migrations.
func (o *Orchestrator) Restart(ctx context.Context, appName string) (*types.DeployReport, error) {
	app, err := o.cfg.App(appName)
	if err != nil {
		return nil, err
	}

	last, err := o.journal.LastSuccess(app.Name)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, fmt.Errorf("%s has never deployed successfully; nothing to restart", app.Name)
	}

	appLock := lock.ForApp(o.cfg.Paths.LockDir, app.Name)
	if err := appLock.Acquire(); err != nil {
		return nil, err
	}
	defer appLock.Release()

	report := o.newReport(app)
	o.logger.Info().Str("app", app.Name).Str("image", last.Image).Msg("restart started")

	err = func() error {
		deployPlan, err := o.planner.Plan(ctx, app, last.Image)
		if err != nil {
			return &lifecycle.PhaseError{Phase: types.PhasePlan, Err: err}
		}
		report.Plan = deployPlan
		if err := o.controller.Execute(ctx, app, deployPlan); err != nil {
			return err
		}
		return o.publish(ctx, app)
	}()
	o.finish(ctx, report, err)
	return report, err
}

// Stop halts every replica of the application. The nginx site is left
// in place; a stopped app answers 502 rather than vanishing.
func (o *Orchestrator) Stop(ctx context.Context, appName string) error {
	app, err := o.cfg.App(appName)
	if err != nil {
		return err
	}

	appLock := lock.ForApp(o.cfg.Paths.LockDir, app.Name)
	if err := appLock.Acquire(); err != nil {
		return err
	}
	defer appLock.Release()

	o.logger.Info().Str("app", app.Name).Msg("stopping all replicas")
	return o.controller.StopAll(ctx, app)
}

// Scale changes the running replica count to target and republishes
// the upstream set. Target must already be validated by the caller
// against the configured bounds.
func (o *Orchestrator) Scale(ctx context.Context, appName string, target int) error {
	app, err := o.cfg.App(appName)
	if err != nil {
		return err
	}
	if target < config.MinScale || target > config.MaxScale {
		return fmt.Errorf("scale must be between %d and %d, got %d", config.MinScale, config.MaxScale, target)
	}

	last, err := o.journal.LastSuccess(app.Name)
	if err != nil {
		return err
	}
	if last == nil {
		return fmt.Errorf("%s has never deployed successfully; deploy before scaling", app.Name)
	}

	appLock := lock.ForApp(o.cfg.Paths.LockDir, app.Name)
	if err := appLock.Acquire(); err != nil {
		return err
	}
	defer appLock.Release()

	replicas, err := o.rt.ListReplicas(ctx, app)
	if err != nil {
		return err
	}
	current := len(replicas)
	if current == target {
		o.logger.Info().Str("app", app.Name).Int("replicas", target).Msg("already at target scale")
		return nil
	}

	o.logger.Info().Str("app", app.Name).Int("from", current).Int("to", target).Msg("scaling")
	if err := o.controller.ScaleTo(ctx, app, last.Image, current, target); err != nil {
		return err
	}
	if err := o.publish(ctx, app); err != nil {
		return err
	}

	// Topology changed; the certificate may need to cover an internal
	// domain the regenerated site now references.
	o.guardian.Ensure(ctx, app)
	return nil
}

// AppStatus is one application's live state for the status command.
type AppStatus struct {
	App         *types.App
	Replicas    []*types.Replica
	LastRelease *types.ReleaseRecord
}

// Status reports the live replica set and last release per application.
// An empty appName means all configured apps.
func (o *Orchestrator) Status(ctx context.Context, appName string) ([]*AppStatus, error) {
	var selected []*types.App
	if appName != "" {
		app, err := o.cfg.App(appName)
		if err != nil {
			return nil, err
		}
		selected = []*types.App{app}
	} else {
		for i := range o.cfg.Apps {
			app, err := o.cfg.App(o.cfg.Apps[i].Name)
			if err != nil {
				return nil, err
			}
			selected = append(selected, app)
		}
	}

	var statuses []*AppStatus
	for _, app := range selected {
		replicas, err := o.rt.ListReplicas(ctx, app)
		if err != nil {
			return nil, err
		}
		last, err := o.journal.LastSuccess(app.Name)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, &AppStatus{App: app, Replicas: replicas, LastRelease: last})
	}
	return statuses, nil
}

// publish renders and installs the nginx site from the replicas that
// are actually running now.
func (o *Orchestrator) publish(ctx context.Context, app *types.App) error {
	replicas, err := o.rt.ListReplicas(ctx, app)
	if err != nil {
		return &lifecycle.PhaseError{Phase: types.PhasePublish, Err: err}
	}
	if err := o.publisher.Publish(ctx, upstream.FromReplicas(app, replicas)); err != nil {
		return &lifecycle.PhaseError{Phase: types.PhasePublish, Err: err}
	}
	return nil
}

func (o *Orchestrator) newReport(app *types.App) *types.DeployReport {
	return &types.DeployReport{
		ID:        uuid.NewString()[:8],
		AppName:   app.Name,
		StartedAt: time.Now(),
	}
}

// finish settles the report, records it, and emits metrics and mail.
func (o *Orchestrator) finish(ctx context.Context, report *types.DeployReport, err error) {
	report.FinishedAt = time.Now()
	report.Succeeded = err == nil

	if err != nil {
		report.Error = err.Error()
		var phaseErr *lifecycle.PhaseError
		if errors.As(err, &phaseErr) {
			report.FailedPhase = phaseErr.Phase
			report.FailedOrdinal = phaseErr.Ordinal
		}
	}

	// The plan is missing when the run failed before planning; that must
	// not masquerade as a fresh deploy in metrics or history.
	kind := types.PlanUnknown
	replicas := 0
	image := ""
	if report.Plan != nil {
		kind = report.Plan.Kind
		replicas = report.Plan.Replicas
		image = report.Plan.Image
	}

	result := "success"
	if !report.Succeeded {
		result = "failure"
	}
	metrics.DeploysTotal.WithLabelValues(report.AppName, string(kind), result).Inc()
	metrics.DeployDuration.WithLabelValues(report.AppName).
		Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	rec := &types.ReleaseRecord{
		ID:         report.ID,
		AppName:    report.AppName,
		Image:      image,
		Replicas:   replicas,
		Kind:       kind,
		Succeeded:  report.Succeeded,
		Error:      report.Error,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	o.journal.Finish(rec)
	o.mailer.Send(ctx, report)

	if path := o.cfg.Paths.Metrics; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			o.logger.Warn().Err(err).Str("path", path).Msg("failed to write metrics textfile")
		}
	}

	if report.Succeeded {
		o.logger.Info().Str("app", report.AppName).Msg(report.Summary())
	} else {
		o.logger.Error().Str("app", report.AppName).Msg(report.Summary())
	}
}
