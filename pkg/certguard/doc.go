// Package certguard keeps TLS certificates aligned with each
// application's domain set.
//
// After every deployment the guardian compares the domains certbot
// already covers against what the app's nginx site needs, and takes the
// smallest possible action: nothing when coverage is complete, an
// expansion when the certificate exists but misses domains, or a fresh
// acquisition when there is no certificate at all.
//
// Acquisition is gated on DNS: every domain must resolve to this
// server's public address first, because a failed validation burns a
// rate-limited request with the authority. When DNS is wrong the
// guardian reports exactly which domains are at fault and skips the
// attempt entirely.
//
// Certificate state comes from parsing `certbot certificates` output.
// The parser is strict: output it cannot account for is a hard error
// rather than a silent empty list, so a certbot format change surfaces
// as a failure instead of a spurious re-acquisition.
package certguard
