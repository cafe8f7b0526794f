// Package journal records what every deployment did.
//
// Outcomes land in three places: a one-line-per-event deployments.log,
// a release.log with a detail block per start and outcome, and a BoltDB
// store the status command reads for structured history. Writing the
// journal never fails a deployment.
package journal
