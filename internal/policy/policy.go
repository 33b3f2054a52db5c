// Package policy gates link creation: registrable-domain allow/block lists
// and an optional external reputation check.
package policy

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/vrsjns/bearlink-sub000/internal/logger"
	"github.com/vrsjns/bearlink-sub000/internal/models"
)

// ReputationChecker reports whether a URL is a known threat. Implementations
// must return an error rather than guessing when the upstream is unreachable.
type ReputationChecker interface {
	Check(ctx context.Context, rawURL string) (bool, error)
}

type Gate struct {
	allowlist  []string
	blocklist  []string
	reputation ReputationChecker
}

func NewGate(allowlist, blocklist []string, reputation ReputationChecker) *Gate {
	return &Gate{allowlist: allowlist, blocklist: blocklist, reputation: reputation}
}

// Evaluate runs the domain filter, then the reputation check. The allowlist
// takes precedence when both lists are configured. Reputation failures are
// fail-open: only an explicit threat match blocks.
func (g *Gate) Evaluate(ctx context.Context, rawURL string) error {
	if err := g.checkDomain(rawURL); err != nil {
		return err
	}
	if g.reputation == nil {
		return nil
	}

	threat, err := g.reputation.Check(ctx, rawURL)
	if err != nil {
		logger.Log.Warnw("reputation check failed, allowing URL", "url", rawURL, "error", err)
		return nil
	}
	if threat {
		return models.PolicyError{Reason: "URL is flagged as unsafe"}
	}
	return nil
}

func (g *Gate) checkDomain(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.Invalid("invalid URL: %s", rawURL)
	}
	host := strings.ToLower(u.Hostname())

	if len(g.allowlist) > 0 {
		for _, entry := range g.allowlist {
			if domainMatches(host, entry) {
				return nil
			}
		}
		return models.PolicyError{Reason: "domain is not on the allowlist"}
	}

	for _, entry := range g.blocklist {
		if domainMatches(host, entry) {
			return models.PolicyError{Reason: "domain is blocked"}
		}
	}
	return nil
}

// domainMatches treats an entry as covering itself and all of its
// subdomains. A bare registrable domain entry covers the whole site.
func domainMatches(host, entry string) bool {
	if host == entry || strings.HasSuffix(host, "."+entry) {
		return true
	}
	if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil && etld == entry {
		return true
	}
	return false
}
