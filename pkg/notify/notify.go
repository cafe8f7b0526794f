package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/bollardhq/bollard/pkg/config"
	"github.com/bollardhq/bollard/pkg/log"
	"github.com/bollardhq/bollard/pkg/metrics"
	"github.com/bollardhq/bollard/pkg/types"
)

const defaultTimeout = 10 * time.Second

// Mailer sends deployment outcome emails through an HTTP mail API.
// Sending is best effort: a mail provider outage must never change a
// deployment's result, so Send logs failures and swallows them.
type Mailer struct {
	cfg    config.NotifyConfig
	client *http.Client
	logger zerolog.Logger
}

func NewMailer(cfg config.NotifyConfig) *Mailer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Mailer{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: log.WithComponent("notify"),
	}
}

type message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send emails the deployment report to the configured recipients.
func (m *Mailer) Send(ctx context.Context, report *types.DeployReport) {
	if !m.cfg.Enabled() {
		return
	}

	subject := fmt.Sprintf("[deploy] %s succeeded", report.AppName)
	text := report.Summary()
	if !report.Succeeded {
		subject = fmt.Sprintf("[deploy] %s FAILED", report.AppName)
		text += "\n\nThings to check:\n" +
			"  - container logs for the failed replica\n" +
			"  - DNS records for the app's domains\n" +
			"  - connectivity to the Docker daemon and upstream services\n"
	}

	err := m.post(ctx, &message{
		From:    m.cfg.From,
		To:      m.cfg.To,
		Subject: subject,
		Text:    text,
	})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		m.logger.Error().Err(err).Str("app", report.AppName).Msg("failed to send notification")
		return
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	m.logger.Info().Str("app", report.AppName).Str("subject", subject).Msg("notification sent")
}

func (m *Mailer) post(ctx context.Context, msg *message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("mail API returned %s", resp.Status)
	}
	return nil
}
