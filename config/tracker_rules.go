package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tracker_server/core/domain"
)

// Validation collects rule file problems. Errors block startup; warnings are logged.
type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err joins the validation errors, or returns nil when there are none.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("invalid rules: %s", strings.Join(v.Errors, "; "))
}

// LoadDomainRules reads a YAML rule set from path.
func LoadDomainRules(path string) (*domain.RuleSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDomainRules(b)
}

// ParseDomainRules decodes a YAML rule set.
func ParseDomainRules(b []byte) (*domain.RuleSet, error) {
	var rs domain.RuleSet
	if err := yaml.Unmarshal(b, &rs); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return &rs, nil
}

// NormalizeAndValidateRules returns a trimmed, lowercased copy of rs and the problems found.
func NormalizeAndValidateRules(rs *domain.RuleSet) (*domain.RuleSet, Validation) {
	var res Validation
	if rs == nil {
		res.addErr("rule set is empty")
		return nil, res
	}

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.ToLower(strings.TrimSpace(x))
			if x == "" || seen[x] {
				continue
			}
			seen[x] = true
			ys = append(ys, x)
		}
		return ys
	}

	out := &domain.RuleSet{}
	total := 0
	seenDomain := map[string]string{}

	for _, table := range domain.TableOrder {
		var rules []domain.DomainRule
		for i, r := range rs.Table(table) {
			nr := domain.DomainRule{
				Names:        trimList(r.Names),
				MatchDomains: trimList(r.MatchDomains),
				Medium:       domain.Medium(strings.ToLower(strings.TrimSpace(string(r.Medium)))),
			}
			if r.PaidIndicators != nil {
				nr.PaidIndicators = &domain.PaidIndicators{
					Params:         trimList(r.PaidIndicators.Params),
					PathSubstrings: trimList(r.PaidIndicators.PathSubstrings),
					RefSubstrings:  trimList(r.PaidIndicators.RefSubstrings),
				}
			}

			where := fmt.Sprintf("%s[%d]", table, i)
			if len(nr.Names) == 0 {
				res.addErr("%s.names must not be empty", where)
			}
			if len(nr.MatchDomains) == 0 {
				res.addErr("%s.match_domains must not be empty", where)
			}
			if nr.Medium == "" {
				res.addErr("%s.medium is required", where)
			} else if !nr.Medium.IsKnown() {
				res.addErr("%s.medium %q is not a known medium", where, nr.Medium)
			}
			if nr.Medium == domain.MediumCPC && !nr.PaidIndicators.IsZero() {
				res.addWarn("%s: paid_indicators have no effect when medium is already cpc", where)
			}
			for _, d := range nr.MatchDomains {
				if prev, ok := seenDomain[d]; ok {
					res.addWarn("%s: match domain %q already used by %s and will never match here", where, d, prev)
					continue
				}
				seenDomain[d] = where
			}

			rules = append(rules, nr)
			total++
		}

		switch table {
		case domain.TableSearchEngines:
			out.SearchEngines = rules
		case domain.TableSocialNetworks:
			out.SocialNetworks = rules
		case domain.TableEmailProviders:
			out.EmailProviders = rules
		}
	}

	if total == 0 {
		res.addErr("rule set has no rules")
	}
	return out, res
}
