package apps

import (
	"context"
	"fmt"
	"strings"

	"github.com/bollardhq/bollard/pkg/log"
	"github.com/bollardhq/bollard/pkg/runtime"
	"github.com/bollardhq/bollard/pkg/source"
	"github.com/bollardhq/bollard/pkg/types"
)

// RailsApp deploys a Ruby on Rails application. Rails is the only app
// type with a migration step: `bin/rails db:migrate` runs in a one-shot
// container on the new image before any replica of that image serves
// traffic.
type RailsApp struct {
	app *types.App
}

func (r *RailsApp) App() *types.App { return r.app }

func (r *RailsApp) ImageTag(checkout *source.Checkout) string {
	return imageTag(r.app, checkout)
}

func (r *RailsApp) Build(ctx context.Context, rt runtime.Runtime, checkout *source.Checkout, tag string) error {
	return buildImage(ctx, rt, checkout, tag)
}

func (r *RailsApp) Migrate(ctx context.Context, rt runtime.Runtime, tag string) error {
	logger := log.WithComponent("apps").With().Str("app", r.app.Name).Logger()
	logger.Info().Str("image", tag).Msg("running database migrations")

	output, err := rt.RunOneShot(ctx, r.app, tag, []string{"bin/rails", "db:migrate"})
	if err != nil {
		return fmt.Errorf("rails migrations failed: %w", err)
	}
	if trimmed := strings.TrimSpace(output); trimmed != "" {
		logger.Debug().Msg(trimmed)
	}
	return nil
}

func (r *RailsApp) ConsoleCommand() ([]string, error) {
	return []string{"bin/rails", "dbconsole"}, nil
}
