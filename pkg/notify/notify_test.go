package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bollardhq/bollard/pkg/config"
	"github.com/bollardhq/bollard/pkg/types"
)

func report(ok bool) *types.DeployReport {
	r := &types.DeployReport{
		AppName:   "shop",
		Plan:      &types.DeploymentPlan{Kind: types.PlanFreshDeploy, Replicas: 2, Image: "shop:abc1234"},
		Succeeded: ok,
	}
	if !ok {
		r.FailedPhase = types.PhaseHealth
		r.FailedOrdinal = 1
		r.Error = "health check timed out"
	}
	return r
}

func TestSend(t *testing.T) {
	var got message
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mailer := NewMailer(config.NotifyConfig{
		APIURL:   server.URL,
		APIToken: "secret-token",
		From:     "deploys@example.com",
		To:       []string{"ops@example.com"},
	})

	mailer.Send(context.Background(), report(true))

	assert.Equal(t, "Bearer secret-token", auth)
	assert.Equal(t, "deploys@example.com", got.From)
	assert.Equal(t, []string{"ops@example.com"}, got.To)
	assert.Equal(t, "[deploy] shop succeeded", got.Subject)
	assert.Contains(t, got.Text, "shop")
}

func TestSend_FailureSubject(t *testing.T) {
	var got message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	mailer := NewMailer(config.NotifyConfig{
		APIURL: server.URL,
		To:     []string{"ops@example.com"},
	})
	mailer.Send(context.Background(), report(false))

	assert.Equal(t, "[deploy] shop FAILED", got.Subject)
	assert.Contains(t, got.Text, "health check timed out")
}

func TestSend_DisabledSkipsRequest(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	// No recipients: notifications are off.
	mailer := NewMailer(config.NotifyConfig{APIURL: server.URL})
	mailer.Send(context.Background(), report(true))
	assert.False(t, called)
}

func TestSend_APIErrorDoesNotPanic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	mailer := NewMailer(config.NotifyConfig{
		APIURL:  server.URL,
		To:      []string{"ops@example.com"},
		Timeout: time.Second,
	})
	mailer.Send(context.Background(), report(true))
}
