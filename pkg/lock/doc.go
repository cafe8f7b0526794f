// Package lock serializes deployments with per-app advisory file
// locks. Concurrent deploys of the same app would race on ports and
// container names, so the second attempt fails fast with ErrBusy
// instead of queueing.
package lock
