package classification

import "tracker_server/core/domain"

// =============================================================================
// Default Domain Tables
// =============================================================================

// DefaultRuleSet returns a fresh copy of the built-in domain tables.
//
// Order matters: search engines are checked before social networks and
// email providers, and webmail hosts under google/yahoo are therefore
// attributed to the search engine unless a rules file reorders them.
func DefaultRuleSet() *domain.RuleSet {
	return &domain.RuleSet{
		SearchEngines:  defaultSearchEngines(),
		SocialNetworks: defaultSocialNetworks(),
		EmailProviders: defaultEmailProviders(),
	}
}

func defaultSearchEngines() []domain.DomainRule {
	return []domain.DomainRule{
		{
			Names:        []string{"google"},
			MatchDomains: []string{"google"},
			Medium:       domain.MediumOrganic,
			PaidIndicators: &domain.PaidIndicators{
				Params:         []string{"gclid"},
				PathSubstrings: []string{"/aclk", "/pagead"},
				RefSubstrings:  []string{"adwords", "googleads"},
			},
		},
		{
			// msn is a bing property, so it is a match domain rather than a paid ref.
			Names:        []string{"bing", "msn"},
			MatchDomains: []string{"bing", "msn"},
			Medium:       domain.MediumOrganic,
			PaidIndicators: &domain.PaidIndicators{
				Params:         []string{"msclkid"},
				PathSubstrings: []string{"/bing/ck.php"},
				RefSubstrings:  []string{"bingads"},
			},
		},
		{
			Names:        []string{"yahoo"},
			MatchDomains: []string{"yahoo"},
			Medium:       domain.MediumOrganic,
			PaidIndicators: &domain.PaidIndicators{
				PathSubstrings: []string{"/cbclk"},
				RefSubstrings:  []string{"yahoo_sem"},
			},
		},
		{Names: []string{"duckduckgo"}, MatchDomains: []string{"duckduckgo"}, Medium: domain.MediumOrganic},
		{Names: []string{"yandex"}, MatchDomains: []string{"yandex"}, Medium: domain.MediumOrganic},
		{Names: []string{"baidu"}, MatchDomains: []string{"baidu"}, Medium: domain.MediumOrganic},
	}
}

func defaultSocialNetworks() []domain.DomainRule {
	adsPath := func(params ...string) *domain.PaidIndicators {
		return &domain.PaidIndicators{Params: params, PathSubstrings: []string{"/ads/"}}
	}

	return []domain.DomainRule{
		{
			Names:          []string{"facebook"},
			MatchDomains:   []string{"facebook", "fb.com", "fb.me"},
			Medium:         domain.MediumSocial,
			PaidIndicators: adsPath("fbclid"),
		},
		{
			Names:        []string{"twitter"},
			MatchDomains: []string{"twitter", "x.com", "t.co"},
			Medium:       domain.MediumSocial,
			PaidIndicators: &domain.PaidIndicators{
				Params:         []string{"twclid"},
				PathSubstrings: []string{"/promote"},
			},
		},
		{Names: []string{"instagram"}, MatchDomains: []string{"instagram"}, Medium: domain.MediumSocial, PaidIndicators: adsPath()},
		{Names: []string{"linkedin"}, MatchDomains: []string{"linkedin", "lnkd.in"}, Medium: domain.MediumSocial, PaidIndicators: adsPath()},
		{Names: []string{"pinterest"}, MatchDomains: []string{"pinterest", "pin.it"}, Medium: domain.MediumSocial, PaidIndicators: adsPath()},
		{Names: []string{"youtube"}, MatchDomains: []string{"youtube", "youtu.be"}, Medium: domain.MediumSocial, PaidIndicators: adsPath()},
		{Names: []string{"reddit"}, MatchDomains: []string{"reddit"}, Medium: domain.MediumSocial, PaidIndicators: adsPath()},
		{Names: []string{"tiktok"}, MatchDomains: []string{"tiktok"}, Medium: domain.MediumSocial, PaidIndicators: adsPath("ttclid")},
	}
}

func defaultEmailProviders() []domain.DomainRule {
	return []domain.DomainRule{
		{Names: []string{"outlook"}, MatchDomains: []string{"outlook.live.com", "outlook.com"}, Medium: domain.MediumEmail},
		{Names: []string{"gmail"}, MatchDomains: []string{"mail.google.com"}, Medium: domain.MediumEmail},
		{Names: []string{"yahoo-mail"}, MatchDomains: []string{"mail.yahoo.com"}, Medium: domain.MediumEmail},
	}
}
