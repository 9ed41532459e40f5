package classification

import (
	"strings"

	"tracker_server/core/domain"
)

// =============================================================================
// Domain Classifier
// =============================================================================

// ReferrerInput is the decomposed external referrer handed to the classifier.
type ReferrerInput struct {
	Host  string            // lowercased, non-empty, not the current site
	Path  string            // referrer path
	Query map[string]string // referrer's own query
	Raw   string            // full referrer string
}

// DomainResult is the outcome of a domain classification.
type DomainResult struct {
	Source  string
	Medium  domain.Medium
	Table   domain.RuleTable // empty when no rule matched
	Matched string           // match domain that hit
	Paid    bool             // a paid indicator upgraded the medium
}

// DomainClassifier maps referrer hosts to (source, medium) using ordered rule tables.
type DomainClassifier struct {
	rules *domain.RuleSet
	mode  domain.HostMatchMode
}

// NewDomainClassifier creates a substring-matching classifier over rules, or
// the default tables when nil.
func NewDomainClassifier(rules *domain.RuleSet) *DomainClassifier {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	return &DomainClassifier{rules: rules, mode: domain.HostMatchSubstring}
}

// WithHostMatch sets the host comparison mode. Unknown modes select substring matching.
func (c *DomainClassifier) WithHostMatch(mode domain.HostMatchMode) *DomainClassifier {
	if mode != domain.HostMatchLabel {
		mode = domain.HostMatchSubstring
	}
	c.mode = mode
	return c
}

// Rules returns the rule set in use.
func (c *DomainClassifier) Rules() *domain.RuleSet {
	return c.rules
}

// Classify resolves the referrer host against the tables in priority order.
// Unrecognized hosts fall back to source=host, medium=referral.
func (c *DomainClassifier) Classify(in ReferrerInput) DomainResult {
	host := NormalizeHost(in.Host)

	for _, table := range domain.TableOrder {
		for _, rule := range c.rules.Table(table) {
			matched, ok := matchRule(host, rule, c.mode)
			if !ok {
				continue
			}

			result := DomainResult{
				Source:  rule.Source(),
				Medium:  rule.Medium,
				Table:   table,
				Matched: matched,
			}
			if isPaid(rule.PaidIndicators, in) {
				result.Medium = domain.MediumCPC
				result.Paid = true
			}
			return result
		}
	}

	return DomainResult{
		Source: host,
		Medium: domain.MediumReferral,
	}
}

func matchRule(host string, rule domain.DomainRule, mode domain.HostMatchMode) (string, bool) {
	for _, d := range rule.MatchDomains {
		if HostMatches(host, d, mode) {
			return d, true
		}
	}
	return "", false
}

// HostMatches reports whether pattern occurs in host, ignoring case. In label
// mode a pattern containing a dot must start and end at DNS label boundaries,
// so "t.co" matches "t.co" but neither "microsoft.com" nor "t.company.com".
func HostMatches(host, pattern string, mode domain.HostMatchMode) bool {
	host = strings.ToLower(host)
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if host == "" || pattern == "" {
		return false
	}
	if mode != domain.HostMatchLabel || !strings.Contains(pattern, ".") {
		return strings.Contains(host, pattern)
	}

	offset := 0
	for {
		idx := strings.Index(host[offset:], pattern)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(pattern)
		if (start == 0 || host[start-1] == '.') && (end == len(host) || host[end] == '.') {
			return true
		}
		offset = start + 1
	}
}

func isPaid(p *domain.PaidIndicators, in ReferrerInput) bool {
	if p.IsZero() {
		return false
	}

	for _, param := range p.Params {
		if _, ok := in.Query[param]; ok {
			return true
		}
	}

	path := strings.ToLower(in.Path)
	for _, sub := range p.PathSubstrings {
		if sub != "" && strings.Contains(path, strings.ToLower(sub)) {
			return true
		}
	}

	raw := strings.ToLower(in.Raw)
	for _, sub := range p.RefSubstrings {
		if sub != "" && strings.Contains(raw, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
