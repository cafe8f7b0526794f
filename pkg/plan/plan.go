package plan

import (
	"context"
	"fmt"

	"github.com/bollardhq/bollard/pkg/runtime"
	"github.com/bollardhq/bollard/pkg/types"
)

// Planner decides between a fresh deploy and a rolling restart from the
// observed replica count. It is read-only: if the runtime query fails the
// whole deployment aborts here, before any container mutation.
type Planner struct {
	runtime runtime.Runtime
}

// NewPlanner creates a planner over a runtime.
func NewPlanner(rt runtime.Runtime) *Planner {
	return &Planner{runtime: rt}
}

// Plan computes the deployment plan for an app and image.
//
// Zero running replicas selects FreshDeploy at the app's configured scale.
// Any other count selects RollingRestart over exactly that count: a code
// deployment never changes the replica count; scaling is its own explicit
// operation.
func (p *Planner) Plan(ctx context.Context, app *types.App, image string) (*types.DeploymentPlan, error) {
	if err := p.runtime.Ping(ctx); err != nil {
		return nil, fmt.Errorf("planning aborted: %w", err)
	}

	replicas, err := p.runtime.ListReplicas(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("planning aborted: %w", err)
	}

	if len(replicas) == 0 {
		return &types.DeploymentPlan{
			Kind:     types.PlanFreshDeploy,
			Replicas: app.Scale,
			Image:    image,
		}, nil
	}
	return &types.DeploymentPlan{
		Kind:     types.PlanRollingRestart,
		Replicas: len(replicas),
		Image:    image,
	}, nil
}
