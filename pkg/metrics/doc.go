/*
Package metrics defines Bollard's Prometheus metrics.

Metrics are package-level collectors registered at init, covering
deployment outcomes and durations, replica starts/stops, health-check
wait times, upstream publishes, certificate guardian actions, and
notification delivery.

Bollard is a one-shot process, so instead of serving /metrics it writes
the registry to a node_exporter textfile at the end of each run
(WriteTextfile); the path is configured under paths.metrics and an empty
path disables the write.

Timing pattern:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.HealthCheckDuration)
*/
package metrics
