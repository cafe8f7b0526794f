// Package source manages local checkouts of application repositories.
//
// Each app gets one directory under the workspace root, cloned on first
// deploy and fast-forwarded on every deploy after. The resolved HEAD
// commit feeds the image tag, so the same source state always produces
// the same tag.
package source
