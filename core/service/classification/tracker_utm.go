package classification

// Query parameter names read from the current request.
const (
	ParamUTMSource   = "utm_source"
	ParamUTMMedium   = "utm_medium"
	ParamUTMCampaign = "utm_campaign"
	// ParamUTMMediumTypo is accepted when utm_medium is absent or empty.
	ParamUTMMediumTypo = "urm_medium"
)

// UTMValues holds the sanitized UTM fields. Empty means absent.
type UTMValues struct {
	Source   string
	Medium   string
	Campaign string
}

// Any reports whether at least one field is set.
func (u UTMValues) Any() bool {
	return u.Source != "" || u.Medium != "" || u.Campaign != ""
}

// ExtractUTM reads the UTM fields from query. Fields are independent and
// passed through verbatim after sanitization.
func ExtractUTM(query map[string]string) UTMValues {
	if len(query) == 0 {
		return UTMValues{}
	}

	medium := SanitizeText(query[ParamUTMMedium])
	if medium == "" {
		medium = SanitizeText(query[ParamUTMMediumTypo])
	}

	return UTMValues{
		Source:   SanitizeText(query[ParamUTMSource]),
		Medium:   medium,
		Campaign: SanitizeText(query[ParamUTMCampaign]),
	}
}
