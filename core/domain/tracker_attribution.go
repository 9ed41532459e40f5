package domain

import (
	"time"
)

// Medium is the channel category of a visit
type Medium string

const (
	MediumOrganic    Medium = "organic"     // Unpaid search engine result
	MediumCPC        Medium = "cpc"         // Paid search or paid placement
	MediumSocial     Medium = "social"      // Unpaid social network link
	MediumPaidSocial Medium = "paid-social" // Social ad click (fbclid, ttclid)
	MediumEmail      Medium = "email"       // Webmail referrer or email campaign
	MediumReferral   Medium = "referral"    // Any other external site
	MediumNone       Medium = "none"        // Direct traffic
)

// IsKnown reports whether m belongs to the built-in vocabulary.
// UTM-tagged values are passed through verbatim and may be outside it.
func (m Medium) IsKnown() bool {
	switch m {
	case MediumOrganic, MediumCPC, MediumSocial, MediumPaidSocial,
		MediumEmail, MediumReferral, MediumNone:
		return true
	}
	return false
}

const (
	SourceDirect = "direct"
	CampaignNone = "none"
)

// AttributionTuple is the resolved (source, medium, campaign, referrer) of a visit.
type AttributionTuple struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
	Referrer string `json:"referrer"`
}

// DefaultTuple is the all-default tuple for direct traffic with no prior state.
func DefaultTuple() AttributionTuple {
	return AttributionTuple{
		Source:   SourceDirect,
		Medium:   string(MediumNone),
		Campaign: CampaignNone,
		Referrer: "",
	}
}

// VisitorRecord is the persisted per-visitor attribution state.
type VisitorRecord struct {
	Source    string    `json:"source"`
	Medium    string    `json:"medium"`
	Campaign  string    `json:"campaign"`
	Referrer  string    `json:"referrer"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// IsEmpty reports whether no field of the record carries a value.
func (r *VisitorRecord) IsEmpty() bool {
	if r == nil {
		return true
	}
	return r.Source == "" && r.Medium == "" && r.Campaign == "" && r.Referrer == ""
}

// Tuple returns the record as an attribution tuple.
func (r *VisitorRecord) Tuple() AttributionTuple {
	if r == nil {
		return AttributionTuple{}
	}
	return AttributionTuple{
		Source:   r.Source,
		Medium:   r.Medium,
		Campaign: r.Campaign,
		Referrer: r.Referrer,
	}
}

// Field names one of the four persisted slots.
type Field string

const (
	FieldSource   Field = "source"
	FieldMedium   Field = "medium"
	FieldCampaign Field = "campaign"
	FieldReferrer Field = "referrer"
)

// AllFields lists the persisted slots in their canonical order.
var AllFields = []Field{FieldSource, FieldMedium, FieldCampaign, FieldReferrer}

// Value returns the tuple value stored in the given slot.
func (t AttributionTuple) Value(f Field) string {
	switch f {
	case FieldSource:
		return t.Source
	case FieldMedium:
		return t.Medium
	case FieldCampaign:
		return t.Campaign
	case FieldReferrer:
		return t.Referrer
	}
	return ""
}

// Map returns the tuple keyed by field name.
func (t AttributionTuple) Map() map[string]string {
	m := make(map[string]string, len(AllFields))
	for _, f := range AllFields {
		m[string(f)] = t.Value(f)
	}
	return m
}

// StoreWrite is a single slot write requested by the resolution engine.
type StoreWrite struct {
	Field Field  `json:"field"`
	Value string `json:"value"`
}

// Resolution is the outcome of resolving one page view.
type Resolution struct {
	Tuple  AttributionTuple `json:"tuple"`
	Writes []StoreWrite     `json:"writes"`
	Trace  []string         `json:"trace,omitempty"`
}

// ApplyWrites returns a copy of rec with the writes applied.
func ApplyWrites(rec *VisitorRecord, writes []StoreWrite, now time.Time) *VisitorRecord {
	next := &VisitorRecord{}
	if rec != nil {
		*next = *rec
	}
	for _, w := range writes {
		switch w.Field {
		case FieldSource:
			next.Source = w.Value
		case FieldMedium:
			next.Medium = w.Value
		case FieldCampaign:
			next.Campaign = w.Value
		case FieldReferrer:
			next.Referrer = w.Value
		}
	}
	next.UpdatedAt = now
	return next
}
