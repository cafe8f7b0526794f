/*
Package upstream publishes the load balancer's backend list.

The publisher renders a complete nginx site file per application from a
typed UpstreamSet (one server line per healthy replica with passive
failure parameters) and swaps it in with test-before-reload semantics:
the candidate goes through a staging path, the live file is backed up,
`nginx -t` validates the complete configuration, and only a passing
candidate survives; a failing one is rolled back and nginx is never
reloaded. On success the reload is graceful (`nginx -s reload`), not a
restart.

The publisher has no notion of diffing. It always regenerates, tests and
swaps; publishing an unchanged set rewrites an identical file and the
reload has no observable effect. nginx's own validator remains the source
of truth for configuration correctness.
*/
package upstream
