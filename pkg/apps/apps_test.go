package apps

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bollardhq/bollard/pkg/runtime"
	"github.com/bollardhq/bollard/pkg/source"
	"github.com/bollardhq/bollard/pkg/types"
)

type fakeRuntime struct {
	builtDir string
	builtTag string
	oneShots [][]string

	buildErr   error
	oneShotErr error
}

var _ runtime.Runtime = (*fakeRuntime)(nil)

func (f *fakeRuntime) Ping(ctx context.Context) error { return nil }

func (f *fakeRuntime) ListReplicas(ctx context.Context, app *types.App) ([]*types.Replica, error) {
	return nil, nil
}

func (f *fakeRuntime) StartReplica(ctx context.Context, app *types.App, name, image string, hostPort int) (string, error) {
	return "", errors.New("apps must not start replicas")
}

func (f *fakeRuntime) StopReplica(ctx context.Context, name string) error {
	return errors.New("apps must not stop replicas")
}

func (f *fakeRuntime) RunOneShot(ctx context.Context, app *types.App, image string, cmd []string) (string, error) {
	if f.oneShotErr != nil {
		return "migration output", f.oneShotErr
	}
	f.oneShots = append(f.oneShots, cmd)
	return "20260831120000 CreateOrders: migrated", nil
}

func (f *fakeRuntime) BuildImage(ctx context.Context, dir, tag string) error {
	if f.buildErr != nil {
		return f.buildErr
	}
	f.builtDir = dir
	f.builtTag = tag
	return nil
}

func (f *fakeRuntime) ReplicaLogs(ctx context.Context, name string, follow bool, w io.Writer) error {
	return nil
}

func (f *fakeRuntime) Close() error { return nil }

func checkoutWithDockerfile(t *testing.T) *source.Checkout {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM ruby:3.3\n"), 0o644))
	return &source.Checkout{Dir: dir, SHA: "0123456789abcdef0123456789abcdef01234567"}
}

func TestFor(t *testing.T) {
	rails, err := For(&types.App{Name: "shop", Type: types.AppTypeRails})
	require.NoError(t, err)
	assert.IsType(t, &RailsApp{}, rails)

	next, err := For(&types.App{Name: "site", Type: types.AppTypeNextjs})
	require.NoError(t, err)
	assert.IsType(t, &NextjsApp{}, next)

	_, err = For(&types.App{Name: "bad", Type: "django"})
	assert.ErrorContains(t, err, "unknown app type")
}

func TestImageTag(t *testing.T) {
	app, err := For(&types.App{Name: "shop", Type: types.AppTypeRails})
	require.NoError(t, err)

	checkout := &source.Checkout{SHA: "0123456789abcdef0123456789abcdef01234567"}
	assert.Equal(t, "shop:0123456", app.ImageTag(checkout))
}

func TestBuild(t *testing.T) {
	app, err := For(&types.App{Name: "shop", Type: types.AppTypeRails})
	require.NoError(t, err)
	rt := &fakeRuntime{}
	checkout := checkoutWithDockerfile(t)

	require.NoError(t, app.Build(context.Background(), rt, checkout, "shop:0123456"))
	assert.Equal(t, checkout.Dir, rt.builtDir)
	assert.Equal(t, "shop:0123456", rt.builtTag)
}

func TestBuild_MissingDockerfile(t *testing.T) {
	app, err := For(&types.App{Name: "shop", Type: types.AppTypeRails})
	require.NoError(t, err)
	rt := &fakeRuntime{}
	checkout := &source.Checkout{Dir: t.TempDir(), SHA: "0123456789abcdef0123456789abcdef01234567"}

	err = app.Build(context.Background(), rt, checkout, "shop:0123456")
	assert.ErrorContains(t, err, "no Dockerfile")
	assert.Empty(t, rt.builtTag, "build must not reach the runtime")
}

func TestRailsMigrate(t *testing.T) {
	app, err := For(&types.App{Name: "shop", Type: types.AppTypeRails})
	require.NoError(t, err)
	rt := &fakeRuntime{}

	require.NoError(t, app.Migrate(context.Background(), rt, "shop:0123456"))
	require.Len(t, rt.oneShots, 1)
	assert.Equal(t, []string{"bin/rails", "db:migrate"}, rt.oneShots[0])
}

func TestRailsMigrate_Failure(t *testing.T) {
	app, err := For(&types.App{Name: "shop", Type: types.AppTypeRails})
	require.NoError(t, err)
	rt := &fakeRuntime{oneShotErr: errors.New("exit status 1")}

	err = app.Migrate(context.Background(), rt, "shop:0123456")
	assert.ErrorContains(t, err, "rails migrations failed")
}

func TestNextjsMigrate_NoOp(t *testing.T) {
	app, err := For(&types.App{Name: "site", Type: types.AppTypeNextjs})
	require.NoError(t, err)
	rt := &fakeRuntime{}

	require.NoError(t, app.Migrate(context.Background(), rt, "site:0123456"))
	assert.Empty(t, rt.oneShots)
}

func TestConsoleCommand(t *testing.T) {
	rails, _ := For(&types.App{Name: "shop", Type: types.AppTypeRails})
	cmd, err := rails.ConsoleCommand()
	require.NoError(t, err)
	assert.Equal(t, []string{"bin/rails", "dbconsole"}, cmd)

	next, _ := For(&types.App{Name: "site", Type: types.AppTypeNextjs})
	_, err = next.ConsoleCommand()
	assert.ErrorContains(t, err, "only available for rails")
}
