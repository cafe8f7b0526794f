package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Deployment metrics
	DeploysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bollard_deploys_total",
			Help: "Total number of deployments by app, kind and result",
		},
		[]string{"app", "kind", "result"},
	)

	DeployDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bollard_deploy_duration_seconds",
			Help:    "End-to-end deployment duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"app"},
	)

	// Replica metrics
	ReplicaStartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bollard_replica_starts_total",
			Help: "Total number of replica containers started",
		},
	)

	ReplicaStopsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bollard_replica_stops_total",
			Help: "Total number of replica containers stopped",
		},
	)

	HealthCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bollard_health_check_duration_seconds",
			Help:    "Time spent waiting for a replica to report healthy",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 180},
		},
	)

	// Upstream publisher metrics
	UpstreamPublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bollard_upstream_publishes_total",
			Help: "Total number of upstream publish attempts by result",
		},
		[]string{"result"},
	)

	// Certificate guardian metrics
	CertActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bollard_cert_actions_total",
			Help: "Total number of certificate guardian outcomes by action",
		},
		[]string{"action"},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bollard_notifications_total",
			Help: "Total number of deployment notifications by result",
		},
		[]string{"result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(DeploysTotal)
	prometheus.MustRegister(DeployDuration)
	prometheus.MustRegister(ReplicaStartsTotal)
	prometheus.MustRegister(ReplicaStopsTotal)
	prometheus.MustRegister(HealthCheckDuration)
	prometheus.MustRegister(UpstreamPublishesTotal)
	prometheus.MustRegister(CertActionsTotal)
	prometheus.MustRegister(NotificationsTotal)
}

// WriteTextfile dumps the registry to a node_exporter textfile so a
// one-shot process still leaves metrics behind. Empty path disables it.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
