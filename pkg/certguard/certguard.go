package certguard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bollardhq/bollard/pkg/config"
	"github.com/bollardhq/bollard/pkg/log"
	"github.com/bollardhq/bollard/pkg/metrics"
	"github.com/bollardhq/bollard/pkg/types"
)

// renewalThreshold is how close to expiry a certificate may get before
// the guardian mentions it. Renewal itself is certbot's independently
// scheduled job, never this code path.
const renewalThreshold = 30 * 24 * time.Hour

// Guardian keeps an application's TLS coverage in line with its domain
// set. It runs after every topology change and is idempotent: calling it
// when nothing needs to change is safe and cheap.
type Guardian struct {
	authority Authority
	resolver  Resolver
	publicIP  string
	logger    zerolog.Logger
}

// NewGuardian creates a guardian over the real certbot CLI and system
// resolver.
func NewGuardian(certbot config.CertbotConfig, server config.ServerConfig) *Guardian {
	return &Guardian{
		authority: NewCertbotCLI(certbot),
		resolver:  netResolver{},
		publicIP:  server.PublicIP,
		logger:    log.WithComponent("certguard"),
	}
}

// WithAuthority overrides the certificate authority (tests).
func (g *Guardian) WithAuthority(a Authority) *Guardian {
	g.authority = a
	return g
}

// WithResolver overrides the DNS resolver (tests).
func (g *Guardian) WithResolver(r Resolver) *Guardian {
	g.resolver = r
	return g
}

// Ensure reconciles the certificate for the app's domain group and
// reports what it did. Failures here are never fatal to a deployment:
// serving over the previous certificate beats blocking the deploy.
func (g *Guardian) Ensure(ctx context.Context, app *types.App) *types.CertResult {
	result := g.ensure(ctx, app)
	metrics.CertActionsTotal.WithLabelValues(string(result.Action)).Inc()

	event := g.logger.Info()
	if result.Action == types.CertFailed {
		event = g.logger.Error()
	}
	event.Str("app", app.Name).Str("action", string(result.Action)).Msg(result.Message)
	return result
}

func (g *Guardian) ensure(ctx context.Context, app *types.App) *types.CertResult {
	required := app.Domains()

	existing, err := g.findCovering(ctx, app.Domain)
	if err != nil {
		return &types.CertResult{
			Action:  types.CertFailed,
			Message: err.Error(),
			Domains: required,
		}
	}

	if existing == nil {
		return g.obtain(ctx, required)
	}

	if !existing.Covers(required) {
		// The authority wants the complete target list, never the
		// delta, or it would replace the certificate instead of
		// expanding it.
		if err := g.authority.Expand(ctx, existing.Name, required); err != nil {
			return &types.CertResult{Action: types.CertFailed, Message: err.Error(), Domains: required}
		}
		return &types.CertResult{
			Action:  types.CertExpanded,
			Message: "Expanded to include all domains.",
			Domains: required,
		}
	}

	if time.Until(existing.Expiry) < renewalThreshold {
		return &types.CertResult{
			Action: types.CertValid,
			Message: fmt.Sprintf("certificate expires %s; automatic renewal will handle it",
				existing.Expiry.Format("2006-01-02")),
			Domains: required,
		}
	}
	return &types.CertResult{
		Action:  types.CertValid,
		Message: fmt.Sprintf("certificate covers all domains until %s", existing.Expiry.Format("2006-01-02")),
		Domains: required,
	}
}

func (g *Guardian) obtain(ctx context.Context, required []string) *types.CertResult {
	if g.publicIP == "" {
		return &types.CertResult{
			Action:  types.CertSkipped,
			Message: "public address unknown; cannot verify DNS before acquisition",
			Domains: required,
		}
	}

	if faults := verifyDNS(ctx, g.resolver, g.publicIP, required); len(faults) > 0 {
		bad := make([]string, 0, len(faults))
		labels := make([]string, 0, len(faults))
		for _, f := range faults {
			bad = append(bad, f.Domain)
			labels = append(labels, f.String())
		}
		return &types.CertResult{
			Action:  types.CertSkipped,
			Message: "DNS verification failed: " + strings.Join(labels, ", "),
			Domains: bad,
		}
	}

	if err := g.authority.Obtain(ctx, required); err != nil {
		return &types.CertResult{Action: types.CertFailed, Message: err.Error(), Domains: required}
	}
	return &types.CertResult{
		Action:  types.CertObtained,
		Message: "Obtained certificate for all domains.",
		Domains: required,
	}
}

// findCovering returns the first certificate covering the primary domain,
// or nil when none exists.
func (g *Guardian) findCovering(ctx context.Context, primary string) (*types.CertificateRecord, error) {
	certs, err := g.authority.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, cert := range certs {
		if cert.Covers([]string{primary}) {
			return cert, nil
		}
	}
	return nil, nil
}
