// Package apps binds framework-specific deployment behavior behind a
// single Deployable interface.
//
// The pipeline treats every application the same: sync source, build an
// image, migrate, roll replicas. What differs between a Rails app and a
// Next.js app (migrations, the interactive console) lives here, so
// adding a framework means adding one type, not threading switches
// through the pipeline.
package apps
