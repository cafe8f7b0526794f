package apps

import (
	"context"
	"errors"

	"github.com/bollardhq/bollard/pkg/runtime"
	"github.com/bollardhq/bollard/pkg/source"
	"github.com/bollardhq/bollard/pkg/types"
)

// NextjsApp deploys a Next.js application. There is no migration step
// and no interactive console; everything else matches Rails.
type NextjsApp struct {
	app *types.App
}

func (n *NextjsApp) App() *types.App { return n.app }

func (n *NextjsApp) ImageTag(checkout *source.Checkout) string {
	return imageTag(n.app, checkout)
}

func (n *NextjsApp) Build(ctx context.Context, rt runtime.Runtime, checkout *source.Checkout, tag string) error {
	return buildImage(ctx, rt, checkout, tag)
}

func (n *NextjsApp) Migrate(ctx context.Context, rt runtime.Runtime, tag string) error {
	return nil
}

func (n *NextjsApp) ConsoleCommand() ([]string, error) {
	return nil, errors.New("console is only available for rails apps")
}
