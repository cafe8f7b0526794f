/*
Package runtime adapts Docker Engine to the narrow surface the
orchestrator needs: replica discovery by naming convention, replica
start/stop, one-shot command runs (database migrations), image builds, and
log streaming.

# Naming convention

Replicas are containers named {app}_web_{n} with n >= 1. The running set
matching this convention is the single source of truth for topology; no
replica state is persisted between invocations. During a rolling restart
the temporary replacement carries a _stage suffix so it never appears in
topology discovery.

Host ports bind to 127.0.0.1 only; replicas are reached through the load
balancer, never directly from outside the host.

Everything here is a thin wrapper over the Docker SDK. Failures wrap the
SDK error with the container name so lifecycle errors identify exactly
which replica misbehaved.
*/
package runtime
