package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bollardhq/bollard/pkg/config"
	"github.com/bollardhq/bollard/pkg/health"
	"github.com/bollardhq/bollard/pkg/log"
	"github.com/bollardhq/bollard/pkg/metrics"
	"github.com/bollardhq/bollard/pkg/runtime"
	"github.com/bollardhq/bollard/pkg/types"
)

// CheckerFunc builds a health checker for a replica port and path.
// Injectable so tests substitute scripted checkers.
type CheckerFunc func(port int, path string) health.Checker

// Controller executes the per-replica state machines. Everything is
// strictly sequential: at every instant at most one replica per ordinal is
// in a transitional, unverified state, so each ordinal always has a
// verified replica serving traffic during a rolling restart.
type Controller struct {
	runtime runtime.Runtime
	cfg     config.HealthConfig
	checker CheckerFunc
	logger  zerolog.Logger
}

// NewController creates a lifecycle controller.
func NewController(rt runtime.Runtime, cfg config.HealthConfig) *Controller {
	return &Controller{
		runtime: rt,
		cfg:     cfg,
		checker: func(port int, path string) health.Checker {
			return health.ForReplica(port, path)
		},
		logger: log.WithComponent("lifecycle"),
	}
}

// WithChecker overrides the health checker factory (tests).
func (c *Controller) WithChecker(fn CheckerFunc) *Controller {
	c.checker = fn
	return c
}

// Execute runs the plan's state machine.
func (c *Controller) Execute(ctx context.Context, app *types.App, plan *types.DeploymentPlan) error {
	switch plan.Kind {
	case types.PlanFreshDeploy:
		return c.deployFresh(ctx, app, plan)
	default:
		return c.deployRolling(ctx, app, plan)
	}
}

// deployFresh starts replicas for an app with none running.
//
// Per ordinal: Pending -> Starting -> HealthChecking -> Healthy | Failed.
// On a failure the remaining ordinals are abandoned; replicas that already
// came up healthy keep running for the operator to retry around.
func (c *Controller) deployFresh(ctx context.Context, app *types.App, plan *types.DeploymentPlan) error {
	for ordinal := 1; ordinal <= plan.Replicas; ordinal++ {
		logger := log.WithOrdinal(c.logger, ordinal)
		name := app.ReplicaName(ordinal)
		port := app.HostPort(ordinal)

		logger.Info().Str("container", name).Int("port", port).Msg("starting replica")
		if _, err := c.runtime.StartReplica(ctx, app, name, plan.Image, port); err != nil {
			return phaseErr(types.PhaseStart, ordinal, err)
		}
		metrics.ReplicaStartsTotal.Inc()

		if err := c.waitHealthy(ctx, port, app.HealthPath, c.cfg.StartTimeout); err != nil {
			return phaseErr(types.PhaseHealth, ordinal, err)
		}
		logger.Info().Str("container", name).Msg("replica healthy")
	}
	return nil
}

// deployRolling replaces each running replica with the new image, one
// ordinal at a time, failing closed.
//
// Per ordinal: OldRunning -> NewStarting -> NewHealthChecking ->
// NewHealthy -> OldStopping -> OldStopped -> Finalizing -> Done. If the
// replacement never turns healthy it is discarded, the original keeps
// serving, and the whole restart aborts. An ordinal is never left without
// a verified replica.
func (c *Controller) deployRolling(ctx context.Context, app *types.App, plan *types.DeploymentPlan) error {
	// The staging port sits just above the scale range so the
	// replacement never collides with a permanent replica.
	stagePort := app.StagingPort(plan.Replicas)

	for ordinal := 1; ordinal <= plan.Replicas; ordinal++ {
		logger := log.WithOrdinal(c.logger, ordinal)
		oldName := app.ReplicaName(ordinal)
		stageName := runtime.StagingName(app, ordinal)
		finalPort := app.HostPort(ordinal)

		logger.Info().Str("container", stageName).Int("port", stagePort).Msg("starting replacement replica")
		if _, err := c.runtime.StartReplica(ctx, app, stageName, plan.Image, stagePort); err != nil {
			return phaseErr(types.PhaseStart, ordinal, err)
		}
		metrics.ReplicaStartsTotal.Inc()

		// The replacement gets the long timeout: it may run
		// migrations or precompile assets before answering.
		if err := c.waitHealthy(ctx, stagePort, app.HealthPath, c.cfg.WarmupTimeout); err != nil {
			logger.Error().Err(err).Msg("replacement failed health check, discarding it; original keeps serving")
			if stopErr := c.runtime.StopReplica(ctx, stageName); stopErr != nil {
				logger.Warn().Err(stopErr).Str("container", stageName).Msg("failed to discard replacement")
			}
			return phaseErr(types.PhaseHealth, ordinal, err)
		}

		logger.Info().Str("container", oldName).Msg("replacement healthy, retiring original")
		if err := c.runtime.StopReplica(ctx, oldName); err != nil {
			return phaseErr(types.PhaseStopOld, ordinal, err)
		}
		metrics.ReplicaStopsTotal.Inc()

		// Move the verified image onto the permanent port: stop the
		// staging replica and start the final one in its place.
		if err := c.runtime.StopReplica(ctx, stageName); err != nil {
			return phaseErr(types.PhaseFinalize, ordinal, err)
		}
		if _, err := c.runtime.StartReplica(ctx, app, oldName, plan.Image, finalPort); err != nil {
			return phaseErr(types.PhaseFinalize, ordinal, err)
		}
		metrics.ReplicaStartsTotal.Inc()

		// The image is warm now; the short timeout suffices.
		if err := c.waitHealthy(ctx, finalPort, app.HealthPath, c.cfg.StartTimeout); err != nil {
			return phaseErr(types.PhaseHealth, ordinal, err)
		}
		logger.Info().Str("container", oldName).Int("port", finalPort).Msg("replica replaced")

		// Let health settle before disturbing the next ordinal.
		if ordinal < plan.Replicas {
			select {
			case <-ctx.Done():
				return phaseErr(types.PhaseHealth, ordinal, ctx.Err())
			case <-time.After(c.cfg.SettleDelay):
			}
		}
	}
	return nil
}

// ScaleTo adjusts the running replica count to target. Scaling up fresh-
// starts the new ordinals on their permanent ports; scaling down retires
// surplus ordinals from the top so the remaining set stays contiguous.
func (c *Controller) ScaleTo(ctx context.Context, app *types.App, image string, current, target int) error {
	for ordinal := current + 1; ordinal <= target; ordinal++ {
		logger := log.WithOrdinal(c.logger, ordinal)
		name := app.ReplicaName(ordinal)
		port := app.HostPort(ordinal)

		logger.Info().Str("container", name).Int("port", port).Msg("scaling up")
		if _, err := c.runtime.StartReplica(ctx, app, name, image, port); err != nil {
			return phaseErr(types.PhaseStart, ordinal, err)
		}
		metrics.ReplicaStartsTotal.Inc()
		if err := c.waitHealthy(ctx, port, app.HealthPath, c.cfg.StartTimeout); err != nil {
			return phaseErr(types.PhaseHealth, ordinal, err)
		}
	}

	for ordinal := current; ordinal > target; ordinal-- {
		logger := log.WithOrdinal(c.logger, ordinal)
		name := app.ReplicaName(ordinal)

		logger.Info().Str("container", name).Msg("scaling down")
		if err := c.runtime.StopReplica(ctx, name); err != nil {
			return phaseErr(types.PhaseStopOld, ordinal, err)
		}
		metrics.ReplicaStopsTotal.Inc()
	}
	return nil
}

// StopAll retires every running replica of the app.
func (c *Controller) StopAll(ctx context.Context, app *types.App) error {
	replicas, err := c.runtime.ListReplicas(ctx, app)
	if err != nil {
		return phaseErr(types.PhasePlan, 0, err)
	}
	for _, r := range replicas {
		if err := c.runtime.StopReplica(ctx, app.ReplicaName(r.Ordinal)); err != nil {
			return phaseErr(types.PhaseStopOld, r.Ordinal, err)
		}
		metrics.ReplicaStopsTotal.Inc()
	}
	return nil
}

func (c *Controller) waitHealthy(ctx context.Context, port int, path string, timeout time.Duration) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.HealthCheckDuration)

	return health.Wait(ctx, c.checker(port, path), health.Config{
		Interval: c.cfg.Interval,
		Timeout:  timeout,
	})
}
