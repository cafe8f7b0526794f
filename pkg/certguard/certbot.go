package certguard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/executor"

	"github.com/bollardhq/bollard/pkg/config"
	"github.com/bollardhq/bollard/pkg/types"
)

// Authority is the certificate authority surface the guardian depends on:
// list what exists, obtain a new certificate, expand an existing one. The
// production implementation shells out to certbot; tests substitute fakes.
type Authority interface {
	List(ctx context.Context) ([]*types.CertificateRecord, error)
	// Obtain requests a new certificate covering domains in one call.
	Obtain(ctx context.Context, domains []string) error
	// Expand grows an existing certificate to cover domains. The
	// authority requires the complete target list, never the delta.
	Expand(ctx context.Context, certName string, domains []string) error
}

// certbotCLI drives the certbot binary. certbot emits human-readable text
// only; ParseCertificates below fails loudly on anything it does not
// recognize.
type certbotCLI struct {
	exec    *executor.WrappedExecutor
	email   string
	webroot string
	staging bool
}

// NewCertbotCLI returns an Authority over the configured certbot binary.
func NewCertbotCLI(cfg config.CertbotConfig) Authority {
	return &certbotCLI{
		exec:    executor.NewWrappedExecutor(cfg.Binary),
		email:   cfg.Email,
		webroot: cfg.Webroot,
		staging: cfg.Staging,
	}
}

func (c *certbotCLI) List(ctx context.Context) ([]*types.CertificateRecord, error) {
	result, err := c.exec.Execute(ctx, []string{"certificates"}, executor.WithCapture(true, true, false))
	if err != nil {
		return nil, fmt.Errorf("certbot certificates failed: %s", commandOutput(result))
	}
	return ParseCertificates(result.Stdout)
}

func (c *certbotCLI) Obtain(ctx context.Context, domains []string) error {
	args := c.baseArgs()
	for _, d := range domains {
		args = append(args, "-d", d)
	}
	result, err := c.exec.Execute(ctx, args, executor.WithCapture(false, false, true))
	if err != nil {
		return fmt.Errorf("certbot failed to obtain certificate: %s", commandOutput(result))
	}
	return nil
}

func (c *certbotCLI) Expand(ctx context.Context, certName string, domains []string) error {
	args := append(c.baseArgs(), "--cert-name", certName, "--expand")
	for _, d := range domains {
		args = append(args, "-d", d)
	}
	result, err := c.exec.Execute(ctx, args, executor.WithCapture(false, false, true))
	if err != nil {
		return fmt.Errorf("certbot failed to expand certificate %s: %s", certName, commandOutput(result))
	}
	return nil
}

func (c *certbotCLI) baseArgs() []string {
	args := []string{
		"certonly",
		"--webroot", "-w", c.webroot,
		"--non-interactive",
		"--agree-tos",
		"-m", c.email,
	}
	if c.staging {
		args = append(args, "--staging")
	}
	return args
}

func commandOutput(result *executor.Result) string {
	if result == nil {
		return "no output"
	}
	out := strings.TrimSpace(result.Combined)
	if out == "" {
		out = strings.TrimSpace(result.Stderr)
	}
	if out == "" {
		out = fmt.Sprintf("exit status %d", result.ExitCode)
	}
	return out
}

// expiryLayout matches certbot's expiry timestamps,
// e.g. "2026-11-20 08:15:32+00:00".
const expiryLayout = "2006-01-02 15:04:05-07:00"

// ParseCertificates extracts certificate records from `certbot
// certificates` output. The format is human-readable and unversioned;
// rather than limp along on a best-effort basis, any block that does not
// carry all expected fields is a hard error so an upstream format change
// surfaces immediately.
func ParseCertificates(output string) ([]*types.CertificateRecord, error) {
	if strings.Contains(output, "No certificates found") {
		return nil, nil
	}

	var (
		records []*types.CertificateRecord
		current *types.CertificateRecord
	)

	finish := func() error {
		if current == nil {
			return nil
		}
		if len(current.Domains) == 0 {
			return fmt.Errorf("unparseable certbot output: certificate %q has no Domains line", current.Name)
		}
		if current.Expiry.IsZero() {
			return fmt.Errorf("unparseable certbot output: certificate %q has no Expiry Date line", current.Name)
		}
		records = append(records, current)
		current = nil
		return nil
	}

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Certificate Name:"):
			if err := finish(); err != nil {
				return nil, err
			}
			name := strings.TrimSpace(strings.TrimPrefix(line, "Certificate Name:"))
			if name == "" {
				return nil, fmt.Errorf("unparseable certbot output: empty certificate name")
			}
			current = &types.CertificateRecord{Name: name}

		case strings.HasPrefix(line, "Domains:"):
			if current == nil {
				return nil, fmt.Errorf("unparseable certbot output: Domains line outside a certificate block")
			}
			current.Domains = strings.Fields(strings.TrimPrefix(line, "Domains:"))

		case strings.HasPrefix(line, "Expiry Date:"):
			if current == nil {
				return nil, fmt.Errorf("unparseable certbot output: Expiry Date line outside a certificate block")
			}
			rest := strings.TrimSpace(strings.TrimPrefix(line, "Expiry Date:"))
			fields := strings.Fields(rest)
			if len(fields) < 2 {
				return nil, fmt.Errorf("unparseable certbot output: malformed expiry %q", rest)
			}
			expiry, err := time.Parse(expiryLayout, fields[0]+" "+fields[1])
			if err != nil {
				return nil, fmt.Errorf("unparseable certbot output: bad expiry %q: %w", rest, err)
			}
			current.Expiry = expiry
		}
	}
	if err := finish(); err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("unparseable certbot output: no certificate blocks and no %q marker", "No certificates found")
	}
	return records, nil
}
