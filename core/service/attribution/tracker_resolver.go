// Package attribution resolves page views into attribution tuples and
// decides what is persisted for the visitor.
package attribution

import (
	"fmt"

	"tracker_server/core/domain"
	"tracker_server/core/service/classification"
)

// ResolveInput is everything the resolver looks at for one page view.
type ResolveInput struct {
	RequestURL string                // full URL or request URI of the current page
	SiteHost   string                // current site host; derived from RequestURL when empty
	Referrer   string                // current Referer header
	Query      map[string]string     // current query; parsed from RequestURL when nil
	Prior      *domain.VisitorRecord // persisted state, nil on a first visit
}

// Resolver applies the attribution priority rules. It is a pure function of
// its inputs and safe for concurrent use.
type Resolver struct {
	clicks  *classification.ClickIDDetector
	domains *classification.DomainClassifier
	policy  domain.Policy
}

// NewResolver creates a resolver. A nil rule set selects the default tables.
func NewResolver(rules *domain.RuleSet, policy domain.Policy) *Resolver {
	if policy.Model == "" {
		policy.Model = domain.ModelHybrid
	}
	if policy.TTL <= 0 {
		policy.TTL = domain.DefaultRecordTTL
	}
	if policy.HostMatch == "" {
		policy.HostMatch = domain.HostMatchSubstring
	}
	return &Resolver{
		clicks:  classification.NewClickIDDetector(nil),
		domains: classification.NewDomainClassifier(rules).WithHostMatch(policy.HostMatch),
		policy:  policy,
	}
}

// Policy returns the resolution policy.
func (r *Resolver) Policy() domain.Policy {
	return r.policy
}

// Rules returns the domain tables in use.
func (r *Resolver) Rules() *domain.RuleSet {
	return r.domains.Rules()
}

type resolution struct {
	source   string
	medium   string
	campaign string
	trace    []string
}

func (s *resolution) tracef(format string, args ...any) {
	s.trace = append(s.trace, fmt.Sprintf(format, args...))
}

func (s *resolution) complete() bool {
	return s.source != "" && s.medium != ""
}

// Resolve computes the tuple for one page view and the writes that persist it.
func (r *Resolver) Resolve(in ResolveInput) domain.Resolution {
	st := &resolution{}

	if r.policy.Model == domain.ModelFirstTouch && !in.Prior.IsEmpty() {
		tuple := in.Prior.Tuple()
		r.fillDefaults(st, &tuple)
		st.tracef("first-touch: prior record kept, no writes")
		return domain.Resolution{Tuple: tuple, Trace: st.trace}
	}

	query := in.Query
	if query == nil {
		query = classification.QueryOf(in.RequestURL)
	}
	siteHost := in.SiteHost
	if siteHost == "" {
		siteHost = classification.ParseURL(in.RequestURL).Host
	}

	referrer := r.effectiveReferrer(st, in)

	r.applyUTM(st, query)
	r.applyClickID(st, query)
	r.applyReferrer(st, referrer, siteHost)

	tuple := domain.AttributionTuple{
		Source:   st.source,
		Medium:   st.medium,
		Campaign: st.campaign,
		Referrer: referrer,
	}
	r.fillDefaults(st, &tuple)

	writes := []domain.StoreWrite{
		{Field: domain.FieldSource, Value: tuple.Source},
		{Field: domain.FieldMedium, Value: tuple.Medium},
		{Field: domain.FieldCampaign, Value: tuple.Campaign},
	}
	if referrer != "" {
		writes = append(writes, domain.StoreWrite{Field: domain.FieldReferrer, Value: referrer})
	}

	st.tracef("result: source=%q medium=%q campaign=%q referrer=%q", tuple.Source, tuple.Medium, tuple.Campaign, tuple.Referrer)
	return domain.Resolution{Tuple: tuple, Writes: writes, Trace: st.trace}
}

// effectiveReferrer keeps the first persisted referrer for the life of the record.
func (r *Resolver) effectiveReferrer(st *resolution, in ResolveInput) string {
	if in.Prior != nil && in.Prior.Referrer != "" {
		st.tracef("referrer: using persisted %q", in.Prior.Referrer)
		return in.Prior.Referrer
	}
	ref := classification.CleanReferrer(in.Referrer)
	if ref == "" {
		st.tracef("referrer: none")
		return ""
	}
	st.tracef("referrer: using header %q", ref)
	return ref
}

func (r *Resolver) applyUTM(st *resolution, query map[string]string) {
	utm := classification.ExtractUTM(query)
	if !utm.Any() {
		st.tracef("utm: none")
		return
	}
	st.source = utm.Source
	st.medium = utm.Medium
	st.campaign = utm.Campaign
	st.tracef("utm: source=%q medium=%q campaign=%q", utm.Source, utm.Medium, utm.Campaign)
}

func (r *Resolver) applyClickID(st *resolution, query map[string]string) {
	if st.complete() {
		return
	}
	m, ok := r.clicks.Detect(query)
	if !ok {
		st.tracef("click id: none")
		return
	}
	if st.source == "" {
		st.source = m.Source
	}
	if st.medium == "" {
		st.medium = string(m.Medium)
	}
	if st.campaign == "" {
		st.campaign = m.Campaign
	}
	st.tracef("click id: %s -> %s/%s", m.Param, m.Source, m.Medium)
}

func (r *Resolver) applyReferrer(st *resolution, referrer, siteHost string) {
	if st.complete() || referrer == "" {
		return
	}

	parsed := classification.ParseURL(referrer)
	if parsed.IsEmpty() {
		st.tracef("referrer: no host in %q", referrer)
		return
	}

	if classification.SameHost(parsed.Host, siteHost) {
		if st.source == "" {
			st.source = domain.SourceDirect
		}
		if st.medium == "" {
			st.medium = string(domain.MediumNone)
		}
		if st.campaign == "" {
			st.campaign = classification.SanitizeText(parsed.Query[classification.ParamUTMCampaign])
		}
		st.tracef("referrer: same host %q -> direct/none", parsed.Host)
		return
	}

	result := r.domains.Classify(classification.ReferrerInput{
		Host:  parsed.Host,
		Path:  parsed.Path,
		Query: parsed.Query,
		Raw:   referrer,
	})
	if st.source == "" {
		st.source = result.Source
	}
	if st.medium == "" {
		st.medium = string(result.Medium)
	}
	if result.Table != "" {
		st.tracef("referrer: %q matched %q in %s -> %s/%s (paid=%v)", parsed.Host, result.Matched, result.Table, result.Source, result.Medium, result.Paid)
	} else {
		st.tracef("referrer: %q unrecognized -> referral", parsed.Host)
	}
}

func (r *Resolver) fillDefaults(st *resolution, t *domain.AttributionTuple) {
	if t.Source == "" {
		t.Source = domain.SourceDirect
		st.tracef("default: source=direct")
	}
	if t.Medium == "" {
		t.Medium = string(domain.MediumNone)
		st.tracef("default: medium=none")
	}
	if t.Campaign == "" {
		t.Campaign = r.policy.EmptyCampaign
	}
}
