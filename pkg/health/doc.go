/*
Package health implements replica health checking.

A health check is an HTTP GET against the replica's bound host port;
responses in the 200-399 range are healthy (redirects count, since some
applications' root route redirects). Anything else, including connection
refused, is unhealthy.

Wait wraps a Checker in a bounded sleep-and-retry loop; call sites pick the
interval and overall timeout (shorter for fresh starts, longer for rolling
replacements that warm up by running migrations or precompiling assets).
There is no event-driven machinery here, just polling with an explicit
deadline.
*/
package health
