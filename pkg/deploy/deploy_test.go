package deploy

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bollardhq/bollard/pkg/config"
	"github.com/bollardhq/bollard/pkg/journal"
	"github.com/bollardhq/bollard/pkg/lifecycle"
	"github.com/bollardhq/bollard/pkg/lock"
	"github.com/bollardhq/bollard/pkg/plan"
	"github.com/bollardhq/bollard/pkg/source"
	"github.com/bollardhq/bollard/pkg/types"
)

type fakeRuntime struct {
	replicas   []*types.Replica
	oneShotErr error
	listErr    error
}

func (f *fakeRuntime) Ping(ctx context.Context) error { return nil }

func (f *fakeRuntime) ListReplicas(ctx context.Context, app *types.App) ([]*types.Replica, error) {
	return f.replicas, f.listErr
}

func (f *fakeRuntime) StartReplica(ctx context.Context, app *types.App, name, image string, hostPort int) (string, error) {
	return "container-id", nil
}

func (f *fakeRuntime) StopReplica(ctx context.Context, name string) error { return nil }

func (f *fakeRuntime) RunOneShot(ctx context.Context, app *types.App, image string, cmd []string) (string, error) {
	return "migrated", f.oneShotErr
}

func (f *fakeRuntime) BuildImage(ctx context.Context, dir, tag string) error { return nil }

func (f *fakeRuntime) ReplicaLogs(ctx context.Context, name string, follow bool, w io.Writer) error {
	return nil
}

func (f *fakeRuntime) Close() error { return nil }

type fakeController struct {
	executed []*types.DeploymentPlan
	scaled   [][2]int
	stopped  bool
	execErr  error
}

func (f *fakeController) Execute(ctx context.Context, app *types.App, p *types.DeploymentPlan) error {
	if f.execErr != nil {
		return f.execErr
	}
	f.executed = append(f.executed, p)
	return nil
}

func (f *fakeController) ScaleTo(ctx context.Context, app *types.App, image string, current, target int) error {
	f.scaled = append(f.scaled, [2]int{current, target})
	return nil
}

func (f *fakeController) StopAll(ctx context.Context, app *types.App) error {
	f.stopped = true
	return nil
}

type fakePublisher struct {
	sets []*types.UpstreamSet
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, set *types.UpstreamSet) error {
	if f.err != nil {
		return f.err
	}
	f.sets = append(f.sets, set)
	return nil
}

type fakeGuardian struct {
	result *types.CertResult
	calls  int
}

func (f *fakeGuardian) Ensure(ctx context.Context, app *types.App) *types.CertResult {
	f.calls++
	if f.result != nil {
		return f.result
	}
	return &types.CertResult{Action: types.CertValid, Message: "certificate covers all domains"}
}

type fakeWorkspace struct {
	dir string
	err error
}

func (f *fakeWorkspace) Sync(ctx context.Context, app *types.App) (*source.Checkout, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &source.Checkout{Dir: f.dir, SHA: "0123456789abcdef0123456789abcdef01234567"}, nil
}

type fakeMailer struct {
	reports []*types.DeployReport
}

func (f *fakeMailer) Send(ctx context.Context, report *types.DeployReport) {
	f.reports = append(f.reports, report)
}

type harness struct {
	orch       *Orchestrator
	rt         *fakeRuntime
	controller *fakeController
	publisher  *fakePublisher
	guardian   *fakeGuardian
	mailer     *fakeMailer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	checkoutDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(checkoutDir, "Dockerfile"), []byte("FROM ruby:3.3\n"), 0o644))

	cfg := &config.Config{
		Paths: config.PathsConfig{
			DataDir: t.TempDir(),
			LogDir:  t.TempDir(),
			LockDir: t.TempDir(),
		},
		Apps: []config.AppConfig{{
			Name:          "shop",
			Type:          "rails",
			RepoURL:       "https://example.com/shop.git",
			Branch:        "main",
			Domain:        "shop.example.com",
			Scale:         2,
			BasePort:      3000,
			ContainerPort: 3000,
			HealthPath:    "/up",
		}},
	}

	jnl, err := journal.New(cfg.Paths.DataDir, cfg.Paths.LogDir)
	require.NoError(t, err)
	t.Cleanup(func() { jnl.Close() })

	rt := &fakeRuntime{}
	h := &harness{
		rt:         rt,
		controller: &fakeController{},
		publisher:  &fakePublisher{},
		guardian:   &fakeGuardian{},
		mailer:     &fakeMailer{},
	}
	h.orch = &Orchestrator{
		cfg:        cfg,
		rt:         rt,
		planner:    plan.NewPlanner(rt),
		controller: h.controller,
		publisher:  h.publisher,
		guardian:   h.guardian,
		workspace:  &fakeWorkspace{dir: checkoutDir},
		journal:    jnl,
		mailer:     h.mailer,
	}
	return h
}

func TestDeploy_FreshSuccess(t *testing.T) {
	h := newHarness(t)

	report, err := h.orch.Deploy(context.Background(), "shop")
	require.NoError(t, err)

	assert.True(t, report.Succeeded)
	require.NotNil(t, report.Plan)
	assert.Equal(t, types.PlanFreshDeploy, report.Plan.Kind)
	assert.Equal(t, 2, report.Plan.Replicas)
	assert.Equal(t, "shop:0123456", report.Plan.Image)

	require.Len(t, h.controller.executed, 1)
	assert.Len(t, h.publisher.sets, 1)
	require.NotNil(t, report.CertResult)
	assert.Equal(t, types.CertValid, report.CertResult.Action)

	require.Len(t, h.mailer.reports, 1)
	assert.Same(t, report, h.mailer.reports[0])

	history, err := h.orch.Journal().History("shop", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Succeeded)
	assert.Equal(t, "shop:0123456", history[0].Image)
}

func TestDeploy_RollingWhenReplicasExist(t *testing.T) {
	h := newHarness(t)
	h.rt.replicas = []*types.Replica{
		{AppName: "shop", Ordinal: 1, HostPort: 3000},
		{AppName: "shop", Ordinal: 2, HostPort: 3001},
	}

	report, err := h.orch.Deploy(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, types.PlanRollingRestart, report.Plan.Kind)
	assert.Equal(t, 2, report.Plan.Replicas)
}

func TestDeploy_MigrateFailureStopsPipeline(t *testing.T) {
	h := newHarness(t)
	h.rt.oneShotErr = errors.New("PG::ConnectionBad")

	report, err := h.orch.Deploy(context.Background(), "shop")
	require.Error(t, err)

	assert.False(t, report.Succeeded)
	assert.Equal(t, types.PhaseMigrate, report.FailedPhase)
	assert.Empty(t, h.controller.executed, "replicas must not roll after failed migrations")
	assert.Empty(t, h.publisher.sets)

	history, err := h.orch.Journal().History("shop", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Succeeded)
}

func TestDeploy_PrePlanFailureRecordsUnknownKind(t *testing.T) {
	h := newHarness(t)
	h.orch.workspace = &fakeWorkspace{err: errors.New("remote unreachable")}

	report, err := h.orch.Deploy(context.Background(), "shop")
	require.Error(t, err)

	assert.Equal(t, types.PhasePull, report.FailedPhase)
	assert.Nil(t, report.Plan)

	history, err := h.orch.Journal().History("shop", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, types.PlanUnknown, history[0].Kind, "a run without a plan is not a fresh deploy")
}

func TestDeploy_LifecycleFailureCarriesOrdinal(t *testing.T) {
	h := newHarness(t)
	h.controller.execErr = &lifecycle.PhaseError{
		Phase:   types.PhaseHealth,
		Ordinal: 2,
		Err:     errors.New("health check timed out"),
	}

	report, err := h.orch.Deploy(context.Background(), "shop")
	require.Error(t, err)
	assert.Equal(t, types.PhaseHealth, report.FailedPhase)
	assert.Equal(t, 2, report.FailedOrdinal)
	assert.Empty(t, h.publisher.sets, "nothing to publish after a failed rollout")
}

func TestDeploy_LockedAppRefusesSecondDeploy(t *testing.T) {
	h := newHarness(t)

	held := lock.ForApp(h.orch.cfg.Paths.LockDir, "shop")
	require.NoError(t, held.Acquire())
	defer held.Release()

	_, err := h.orch.Deploy(context.Background(), "shop")
	assert.ErrorIs(t, err, lock.ErrBusy)
}

func TestDeploy_UnknownApp(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Deploy(context.Background(), "nope")
	assert.ErrorContains(t, err, "not found")
}

func seedSuccess(t *testing.T, h *harness, image string) {
	t.Helper()
	h.orch.journal.Finish(&types.ReleaseRecord{
		ID:         "seed1234",
		AppName:    "shop",
		Image:      image,
		Replicas:   2,
		Kind:       types.PlanFreshDeploy,
		Succeeded:  true,
		StartedAt:  time.Now().Add(-time.Hour),
		FinishedAt: time.Now().Add(-time.Hour).Add(30 * time.Second),
	})
}

func TestRestart_UsesLastSuccessfulImage(t *testing.T) {
	h := newHarness(t)
	seedSuccess(t, h, "shop:cafe123")
	h.rt.replicas = []*types.Replica{
		{AppName: "shop", Ordinal: 1, HostPort: 3000},
	}

	report, err := h.orch.Restart(context.Background(), "shop")
	require.NoError(t, err)

	assert.Equal(t, types.PlanRollingRestart, report.Plan.Kind)
	assert.Equal(t, "shop:cafe123", report.Plan.Image)
	require.Len(t, h.controller.executed, 1)
	assert.Len(t, h.publisher.sets, 1)
}

func TestRestart_RequiresPriorDeploy(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Restart(context.Background(), "shop")
	assert.ErrorContains(t, err, "never deployed successfully")
}

func TestStop(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Stop(context.Background(), "shop"))
	assert.True(t, h.controller.stopped)
}

func TestScale(t *testing.T) {
	h := newHarness(t)
	seedSuccess(t, h, "shop:cafe123")
	h.rt.replicas = []*types.Replica{
		{AppName: "shop", Ordinal: 1, HostPort: 3000},
		{AppName: "shop", Ordinal: 2, HostPort: 3001},
	}

	require.NoError(t, h.orch.Scale(context.Background(), "shop", 4))
	require.Len(t, h.controller.scaled, 1)
	assert.Equal(t, [2]int{2, 4}, h.controller.scaled[0])
	assert.Len(t, h.publisher.sets, 1)
	assert.Equal(t, 1, h.guardian.calls, "topology change reconciles the certificate")
}

func TestScale_Validation(t *testing.T) {
	h := newHarness(t)
	seedSuccess(t, h, "shop:cafe123")

	assert.ErrorContains(t, h.orch.Scale(context.Background(), "shop", 0), "between 1 and 10")
	assert.ErrorContains(t, h.orch.Scale(context.Background(), "shop", 11), "between 1 and 10")
	assert.Empty(t, h.controller.scaled)
}

func TestScale_NoOpAtTarget(t *testing.T) {
	h := newHarness(t)
	seedSuccess(t, h, "shop:cafe123")
	h.rt.replicas = []*types.Replica{
		{AppName: "shop", Ordinal: 1, HostPort: 3000},
	}

	require.NoError(t, h.orch.Scale(context.Background(), "shop", 1))
	assert.Empty(t, h.controller.scaled)
	assert.Empty(t, h.publisher.sets)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	seedSuccess(t, h, "shop:cafe123")
	h.rt.replicas = []*types.Replica{
		{AppName: "shop", Ordinal: 1, HostPort: 3000},
	}

	statuses, err := h.orch.Status(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "shop", statuses[0].App.Name)
	assert.Len(t, statuses[0].Replicas, 1)
	require.NotNil(t, statuses[0].LastRelease)
	assert.Equal(t, "shop:cafe123", statuses[0].LastRelease.Image)
}
