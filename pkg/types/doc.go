/*
Package types defines the core data structures used throughout Bollard.

This package contains the fundamental types of the deployment domain:
applications and their replica naming/port conventions, deployment plans,
replica lifecycle state, load-balancer upstream sets, certificate records,
and the aggregated deployment report. Every other package depends on these
types; this package depends on nothing but the standard library.

# Data model

	App ──────────── configured by the operator (apps.yml)
	 │
	 ├─ Replica ──── observed, never persisted; re-derived from the
	 │               container runtime each run by the naming convention
	 │               {app}_web_{n}
	 │
	 ├─ DeploymentPlan ─ computed once per invocation, never mutated
	 │
	 ├─ UpstreamSet ─ must always equal the healthy replica set
	 │
	 └─ CertificateRecord ─ snapshot of authority-owned state

The observed replica set is the single source of truth for the upstream
set. No in-memory state survives across invocations.
*/
package types
