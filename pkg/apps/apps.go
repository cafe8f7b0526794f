package apps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bollardhq/bollard/pkg/runtime"
	"github.com/bollardhq/bollard/pkg/source"
	"github.com/bollardhq/bollard/pkg/types"
)

// Deployable is what the deployment pipeline needs from an application,
// independent of its framework. Framework-specific steps (migrations,
// console) live behind it so the pipeline never switches on app type.
type Deployable interface {
	// App returns the underlying application definition.
	App() *types.App

	// ImageTag derives the image tag for a synced checkout.
	ImageTag(checkout *source.Checkout) string

	// Build produces the container image for the checkout.
	Build(ctx context.Context, rt runtime.Runtime, checkout *source.Checkout, tag string) error

	// Migrate runs the framework's schema migration step, if it has
	// one, before new replicas start serving.
	Migrate(ctx context.Context, rt runtime.Runtime, tag string) error

	// ConsoleCommand returns the interactive console invocation, or an
	// error when the framework has none.
	ConsoleCommand() ([]string, error)
}

// For returns the Deployable for the app's configured type.
func For(app *types.App) (Deployable, error) {
	switch app.Type {
	case types.AppTypeRails:
		return &RailsApp{app: app}, nil
	case types.AppTypeNextjs:
		return &NextjsApp{app: app}, nil
	default:
		return nil, fmt.Errorf("unknown app type %q for %s", app.Type, app.Name)
	}
}

func imageTag(app *types.App, checkout *source.Checkout) string {
	return fmt.Sprintf("%s:%s", app.Name, checkout.ShortSHA())
}

// buildImage checks the checkout is buildable before handing it to the
// runtime, so a missing Dockerfile reads as a source problem rather
// than an opaque build failure.
func buildImage(ctx context.Context, rt runtime.Runtime, checkout *source.Checkout, tag string) error {
	dockerfile := filepath.Join(checkout.Dir, "Dockerfile")
	if _, err := os.Stat(dockerfile); err != nil {
		return fmt.Errorf("checkout has no Dockerfile at %s", dockerfile)
	}
	return rt.BuildImage(ctx, checkout.Dir, tag)
}
