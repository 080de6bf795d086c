package usecase

import (
	"regexp"
	"strings"
)

// Common alerting subdomain prefixes banks put in front of their real domain.
var subdomainPrefix = regexp.MustCompile(`^(mail|alerts|no-reply|noreply|notifications?|updates?|info|support|service)\.`)

// DomainGate decides whether a sender address belongs to an allow-listed
// financial institution. An empty allow-list rejects everything.
type DomainGate struct {
	domains []string
}

func NewDomainGate(domains []string) *DomainGate {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return &DomainGate{domains: normalized}
}

// IsEligibleSender reports whether the address's domain equals, or is a
// subdomain of, an allow-listed bank domain.
func (g *DomainGate) IsEligibleSender(address string) bool {
	if len(g.domains) == 0 {
		return false
	}
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return false
	}
	domain := strings.ToLower(address[at+1:])
	domain = subdomainPrefix.ReplaceAllString(domain, "")
	for _, bank := range g.domains {
		if domain == bank || strings.HasSuffix(domain, "."+bank) {
			return true
		}
	}
	return false
}
