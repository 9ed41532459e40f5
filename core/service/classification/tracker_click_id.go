package classification

import (
	"tracker_server/core/domain"
)

// ClickIDRule maps an ad platform click identifier to a source and medium.
type ClickIDRule struct {
	Param  string
	Source string
	Medium domain.Medium
}

// DefaultClickIDRules is the ordered click id table. First match wins.
var DefaultClickIDRules = []ClickIDRule{
	{Param: "gclid", Source: "google", Medium: domain.MediumCPC},
	{Param: "fbclid", Source: "facebook", Medium: domain.MediumPaidSocial},
	{Param: "msclkid", Source: "bing", Medium: domain.MediumCPC},
	{Param: "ttclid", Source: "tiktok", Medium: domain.MediumPaidSocial},
	{Param: "dclid", Source: "doubleclick", Medium: domain.MediumCPC},
	{Param: "twclid", Source: "twitter", Medium: domain.MediumCPC},
}

// ClickIDMatch is the result of a successful click id detection.
type ClickIDMatch struct {
	Param    string
	Source   string
	Medium   domain.Medium
	Campaign string // utm_campaign of the same query, if present
}

// ClickIDDetector recognizes paid-click identifiers in the current request's query.
type ClickIDDetector struct {
	rules []ClickIDRule
}

// NewClickIDDetector creates a detector over rules, or the default table when rules is empty.
func NewClickIDDetector(rules []ClickIDRule) *ClickIDDetector {
	if len(rules) == 0 {
		rules = DefaultClickIDRules
	}
	return &ClickIDDetector{rules: rules}
}

// Detect returns the first rule whose parameter is present in query.
// Presence of the key is enough; its value may be empty.
func (d *ClickIDDetector) Detect(query map[string]string) (ClickIDMatch, bool) {
	if len(query) == 0 {
		return ClickIDMatch{}, false
	}
	for _, rule := range d.rules {
		if _, ok := query[rule.Param]; !ok {
			continue
		}
		return ClickIDMatch{
			Param:    rule.Param,
			Source:   rule.Source,
			Medium:   rule.Medium,
			Campaign: SanitizeText(query[ParamUTMCampaign]),
		}, true
	}
	return ClickIDMatch{}, false
}
