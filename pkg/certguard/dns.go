package certguard

import (
	"context"
	"fmt"
	"net"
)

// Resolver is the DNS lookup surface, narrowed for fakes in tests.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// netResolver uses the system resolver.
type netResolver struct{}

func (netResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	return net.DefaultResolver.LookupHost(ctx, host)
}

// DomainFault names a domain that failed DNS verification and why.
type DomainFault struct {
	Domain string
	Reason string
}

func (f DomainFault) String() string {
	return fmt.Sprintf("%s (%s)", f.Domain, f.Reason)
}

// verifyDNS checks that every domain resolves to the server's public
// address. The authority would fail validation for any domain that does
// not, and each failed attempt burns a rate-limited request, so the
// guardian refuses to try at all until DNS is right.
func verifyDNS(ctx context.Context, resolver Resolver, publicIP string, domains []string) []DomainFault {
	var faults []DomainFault
	for _, domain := range domains {
		addrs, err := resolver.LookupHost(ctx, domain)
		if err != nil {
			faults = append(faults, DomainFault{Domain: domain, Reason: "unresolvable"})
			continue
		}
		if !containsAddr(addrs, publicIP) {
			faults = append(faults, DomainFault{Domain: domain, Reason: "wrong IP"})
		}
	}
	return faults
}

func containsAddr(addrs []string, want string) bool {
	for _, a := range addrs {
		if a == want {
			return true
		}
	}
	return false
}
