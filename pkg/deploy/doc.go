// Package deploy drives a deployment end to end.
//
// The orchestrator holds the per-app lock for the duration of a
// deployment and runs the stages in order: sync source, compute the
// plan, build the image, migrate, roll the replicas, publish the nginx
// upstreams from what is actually running, then reconcile the TLS
// certificate. Certificate problems never fail a deployment; everything
// before publication does.
//
// Every run, successful or not, ends with a journal record, metrics,
// and an optional notification email.
package deploy
