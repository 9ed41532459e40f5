package domain

import "time"

// PaidIndicators upgrades a matched rule's medium to cpc when any indicator hits.
type PaidIndicators struct {
	Params         []string `yaml:"params" json:"params,omitempty"`                   // Referrer query keys (e.g. gclid)
	PathSubstrings []string `yaml:"path_substrings" json:"path_substrings,omitempty"` // Referrer path fragments (e.g. /aclk)
	RefSubstrings  []string `yaml:"ref_substrings" json:"ref_substrings,omitempty"`   // Fragments of the lowercased full referrer
}

// IsZero reports whether the indicator set has no entries.
func (p *PaidIndicators) IsZero() bool {
	return p == nil || (len(p.Params) == 0 && len(p.PathSubstrings) == 0 && len(p.RefSubstrings) == 0)
}

// DomainRule maps referrer hosts to a canonical source and base medium.
type DomainRule struct {
	Names          []string        `yaml:"names" json:"names"`
	MatchDomains   []string        `yaml:"match_domains" json:"match_domains"`
	Medium         Medium          `yaml:"medium" json:"medium"`
	PaidIndicators *PaidIndicators `yaml:"paid_indicators,omitempty" json:"paid_indicators,omitempty"`
}

// Source returns the canonical source identifier of the rule.
func (r DomainRule) Source() string {
	if len(r.Names) == 0 {
		return ""
	}
	return r.Names[0]
}

// RuleTable names a domain table; tables are consulted in TableOrder.
type RuleTable string

const (
	TableSearchEngines  RuleTable = "search_engines"
	TableSocialNetworks RuleTable = "social_networks"
	TableEmailProviders RuleTable = "email_providers"
)

// TableOrder is the fixed priority of the domain tables.
var TableOrder = []RuleTable{TableSearchEngines, TableSocialNetworks, TableEmailProviders}

// RuleSet holds the domain tables. It is immutable once loaded.
type RuleSet struct {
	SearchEngines  []DomainRule `yaml:"search_engines" json:"search_engines"`
	SocialNetworks []DomainRule `yaml:"social_networks" json:"social_networks"`
	EmailProviders []DomainRule `yaml:"email_providers" json:"email_providers"`
}

// Table returns the rules of the named table.
func (rs *RuleSet) Table(t RuleTable) []DomainRule {
	switch t {
	case TableSearchEngines:
		return rs.SearchEngines
	case TableSocialNetworks:
		return rs.SocialNetworks
	case TableEmailProviders:
		return rs.EmailProviders
	}
	return nil
}

// AttributionModel selects how persisted state interacts with new signals.
type AttributionModel string

const (
	// ModelHybrid re-resolves source/medium/campaign on every page view and
	// keeps the first non-empty referrer.
	ModelHybrid AttributionModel = "hybrid"
	// ModelFirstTouch locks all four fields once a record exists.
	ModelFirstTouch AttributionModel = "first-touch"
)

// HostMatchMode selects how match domains are compared with referrer hosts.
type HostMatchMode string

const (
	// HostMatchSubstring matches a pattern anywhere in the host, case-insensitively.
	HostMatchSubstring HostMatchMode = "substring"
	// HostMatchLabel additionally requires dotted patterns such as "t.co" to
	// span whole DNS labels. Bare labels still match as substrings.
	HostMatchLabel HostMatchMode = "label"
)

// Policy carries the resolution policy flags.
type Policy struct {
	EmptyCampaign string           // Value used when no campaign is found ("none" by default)
	Model         AttributionModel // Hybrid by default
	TTL           time.Duration    // Record lifetime after the last write
	HostMatch     HostMatchMode    // Substring by default
}

// DefaultRecordTTL is the visitor record lifetime.
const DefaultRecordTTL = 30 * 24 * time.Hour

// DefaultPolicy returns the hybrid policy with "none" as empty campaign.
func DefaultPolicy() Policy {
	return Policy{
		EmptyCampaign: CampaignNone,
		Model:         ModelHybrid,
		TTL:           DefaultRecordTTL,
		HostMatch:     HostMatchSubstring,
	}
}

// Settings is the configuration surface consumed by the tracker and its sinks.
type Settings struct {
	FieldPrefix       string `json:"fieldPrefix"`
	AutoFieldsEnabled bool   `json:"autoFields"`
	DebugLogging      bool   `json:"debug"`
}
