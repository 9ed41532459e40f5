package attribution

import (
	"reflect"
	"testing"

	"tracker_server/core/domain"
)

func newTestResolver() *Resolver {
	return NewResolver(nil, domain.DefaultPolicy())
}

// TestResolver_Scenarios covers the documented resolution scenarios.
func TestResolver_Scenarios(t *testing.T) {
	r := newTestResolver()

	tests := []struct {
		name  string
		input ResolveInput
		want  domain.AttributionTuple
	}{
		{
			name: "utm tagged link without referrer",
			input: ResolveInput{
				RequestURL: "https://example.com/?utm_source=newsletter&utm_medium=email",
			},
			want: domain.AttributionTuple{Source: "newsletter", Medium: "email", Campaign: "none", Referrer: ""},
		},
		{
			name: "google organic search",
			input: ResolveInput{
				RequestURL: "https://example.com/",
				Referrer:   "https://www.google.com/search?q=x",
			},
			want: domain.AttributionTuple{Source: "google", Medium: "organic", Campaign: "none", Referrer: "https://www.google.com/search?q=x"},
		},
		{
			name: "facebook referrer with fbclid",
			input: ResolveInput{
				RequestURL: "https://example.com/landing?fbclid=abc",
				Referrer:   "https://www.facebook.com/",
			},
			want: domain.AttributionTuple{Source: "facebook", Medium: "paid-social", Campaign: "none", Referrer: "https://www.facebook.com/"},
		},
		{
			name: "unrecognized referrer",
			input: ResolveInput{
				RequestURL: "https://example.com/",
				Referrer:   "https://news.example.org/article",
			},
			want: domain.AttributionTuple{Source: "news.example.org", Medium: "referral", Campaign: "none", Referrer: "https://news.example.org/article"},
		},
		{
			name:  "direct with nothing",
			input: ResolveInput{RequestURL: "https://example.com/"},
			want:  domain.DefaultTuple(),
		},
		{
			name: "same host referrer is direct with internal campaign",
			input: ResolveInput{
				RequestURL: "https://example.com/pricing",
				Referrer:   "https://EXAMPLE.com/blog?utm_campaign=spring",
			},
			want: domain.AttributionTuple{Source: "direct", Medium: "none", Campaign: "spring", Referrer: "https://EXAMPLE.com/blog?utm_campaign=spring"},
		},
		{
			name: "click id campaign attached",
			input: ResolveInput{
				RequestURL: "https://example.com/?gclid=1&utm_campaign=brand",
			},
			want: domain.AttributionTuple{Source: "google", Medium: "cpc", Campaign: "brand"},
		},
		{
			name: "utm source only falls back to referrer for medium",
			input: ResolveInput{
				RequestURL: "https://example.com/?utm_source=partner",
				Referrer:   "https://www.bing.com/search?q=x",
			},
			want: domain.AttributionTuple{Source: "partner", Medium: "organic", Campaign: "none", Referrer: "https://www.bing.com/search?q=x"},
		},
		{
			name: "utm medium only defaults source",
			input: ResolveInput{
				RequestURL: "https://example.com/?utm_medium=print",
			},
			want: domain.AttributionTuple{Source: "direct", Medium: "print", Campaign: "none"},
		},
		{
			name: "typo medium accepted",
			input: ResolveInput{
				RequestURL: "https://example.com/?utm_source=flyer&urm_medium=offline",
			},
			want: domain.AttributionTuple{Source: "flyer", Medium: "offline", Campaign: "none"},
		},
		{
			name: "hostless referrer falls through to defaults but is kept",
			input: ResolveInput{
				RequestURL: "https://example.com/",
				Referrer:   "not a url",
			},
			want: domain.AttributionTuple{Source: "direct", Medium: "none", Campaign: "none", Referrer: "not a url"},
		},
		{
			name: "app referrer is classified by host",
			input: ResolveInput{
				RequestURL: "https://example.com/",
				Referrer:   "android-app://com.google.android.gm/",
			},
			want: domain.AttributionTuple{Source: "google", Medium: "organic", Campaign: "none", Referrer: "android-app://com.google.android.gm/"},
		},
		{
			name: "control characters are stripped from the referrer",
			input: ResolveInput{
				RequestURL: "https://example.com/",
				Referrer:   "https://news.example.org/\r\nx",
			},
			want: domain.AttributionTuple{Source: "news.example.org", Medium: "referral", Campaign: "none", Referrer: "https://news.example.org/x"},
		},
		{
			name: "request uri with explicit site host",
			input: ResolveInput{
				RequestURL: "/landing?utm_source=a&utm_medium=b&utm_campaign=c",
				SiteHost:   "example.com",
			},
			want: domain.AttributionTuple{Source: "a", Medium: "b", Campaign: "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(tt.input).Tuple
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestResolver_UTMSourceWins checks utm_source is passed through verbatim over every other signal.
func TestResolver_UTMSourceWins(t *testing.T) {
	r := newTestResolver()

	for _, src := range []string{"NewsLetter", "partner-site", "Google Ads", "x"} {
		got := r.Resolve(ResolveInput{
			RequestURL: "https://example.com/?gclid=1&utm_source=" + encode(src),
			Referrer:   "https://www.facebook.com/",
		}).Tuple
		if got.Source != src {
			t.Errorf("Source = %q, want %q", got.Source, src)
		}
	}
}

func encode(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			out = append(out, '+')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

// TestResolver_GclidIgnoresReferrer checks gclid wins regardless of referrer host.
func TestResolver_GclidIgnoresReferrer(t *testing.T) {
	r := newTestResolver()

	for _, ref := range []string{"", "https://www.facebook.com/", "https://example.com/internal", "https://news.example.org/"} {
		got := r.Resolve(ResolveInput{
			RequestURL: "https://example.com/?gclid=xyz",
			Referrer:   ref,
		}).Tuple
		if got.Source != "google" || got.Medium != "cpc" {
			t.Errorf("referrer %q: got %s/%s, want google/cpc", ref, got.Source, got.Medium)
		}
	}
}

func TestResolver_Idempotent(t *testing.T) {
	r := newTestResolver()
	in := ResolveInput{
		RequestURL: "https://example.com/?utm_campaign=x",
		Referrer:   "https://t.co/abc",
	}

	first := r.Resolve(in)
	second := r.Resolve(in)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resolutions differ:\n%+v\n%+v", first, second)
	}
}

// TestResolver_ReferrerIsFirstTouch checks a persisted referrer is never replaced.
func TestResolver_ReferrerIsFirstTouch(t *testing.T) {
	r := newTestResolver()
	prior := &domain.VisitorRecord{
		Source:   "google",
		Medium:   "organic",
		Campaign: "none",
		Referrer: "https://www.google.com/search?q=x",
	}

	res := r.Resolve(ResolveInput{
		RequestURL: "https://example.com/",
		Referrer:   "https://www.facebook.com/",
		Prior:      prior,
	})

	if res.Tuple.Referrer != prior.Referrer {
		t.Errorf("Referrer = %q, want %q", res.Tuple.Referrer, prior.Referrer)
	}
	if res.Tuple.Source != "google" {
		t.Errorf("Source = %q, want google (classified from persisted referrer)", res.Tuple.Source)
	}
	for _, w := range res.Writes {
		if w.Field == domain.FieldReferrer && w.Value != prior.Referrer {
			t.Errorf("referrer write = %q, want %q", w.Value, prior.Referrer)
		}
	}
}

// TestResolver_UTMReattributes checks fresh UTM tags override a returning visitor's channel.
func TestResolver_UTMReattributes(t *testing.T) {
	r := newTestResolver()
	prior := &domain.VisitorRecord{Source: "google", Medium: "organic", Campaign: "none", Referrer: "https://www.google.com/"}

	got := r.Resolve(ResolveInput{
		RequestURL: "https://example.com/?utm_source=newsletter&utm_medium=email&utm_campaign=may",
		Prior:      prior,
	}).Tuple

	want := domain.AttributionTuple{Source: "newsletter", Medium: "email", Campaign: "may", Referrer: "https://www.google.com/"}
	if got != want {
		t.Errorf("Resolve() = %+v, want %+v", got, want)
	}
}

func TestResolver_SameHostInvariant(t *testing.T) {
	r := newTestResolver()

	for _, ref := range []string{
		"https://example.com/",
		"http://example.com:8080/a/b",
		"https://Example.COM/?utm_campaign=c",
	} {
		got := r.Resolve(ResolveInput{
			RequestURL: "https://example.com/next",
			Referrer:   ref,
		}).Tuple
		if got.Source != "direct" || got.Medium != "none" {
			t.Errorf("referrer %q: got %s/%s, want direct/none", ref, got.Source, got.Medium)
		}
	}
}

func TestResolver_Writes(t *testing.T) {
	r := newTestResolver()

	res := r.Resolve(ResolveInput{RequestURL: "https://example.com/"})
	if len(res.Writes) != 3 {
		t.Fatalf("writes = %d, want 3 (no referrer slot)", len(res.Writes))
	}

	res = r.Resolve(ResolveInput{RequestURL: "https://example.com/", Referrer: "https://www.google.com/"})
	if len(res.Writes) != 4 {
		t.Fatalf("writes = %d, want 4", len(res.Writes))
	}
	if res.Writes[3].Field != domain.FieldReferrer || res.Writes[3].Value != "https://www.google.com/" {
		t.Errorf("referrer write = %+v", res.Writes[3])
	}
}

func TestResolver_Policy(t *testing.T) {
	t.Run("empty campaign policy", func(t *testing.T) {
		r := NewResolver(nil, domain.Policy{EmptyCampaign: ""})
		got := r.Resolve(ResolveInput{RequestURL: "https://example.com/"}).Tuple
		if got.Campaign != "" {
			t.Errorf("Campaign = %q, want empty", got.Campaign)
		}
		if got.Source != "direct" || got.Medium != "none" {
			t.Errorf("got %s/%s, want direct/none", got.Source, got.Medium)
		}
	})

	t.Run("first touch locks prior record", func(t *testing.T) {
		r := NewResolver(nil, domain.Policy{EmptyCampaign: "none", Model: domain.ModelFirstTouch})
		prior := &domain.VisitorRecord{Source: "bing", Medium: "organic", Campaign: "none"}

		res := r.Resolve(ResolveInput{
			RequestURL: "https://example.com/?utm_source=newsletter",
			Prior:      prior,
		})
		if res.Tuple.Source != "bing" {
			t.Errorf("Source = %q, want bing", res.Tuple.Source)
		}
		if len(res.Writes) != 0 {
			t.Errorf("writes = %v, want none", res.Writes)
		}
	})

	t.Run("first touch resolves first visit", func(t *testing.T) {
		r := NewResolver(nil, domain.Policy{EmptyCampaign: "none", Model: domain.ModelFirstTouch})
		res := r.Resolve(ResolveInput{RequestURL: "https://example.com/?utm_source=newsletter"})
		if res.Tuple.Source != "newsletter" || len(res.Writes) == 0 {
			t.Errorf("got %+v with %d writes", res.Tuple, len(res.Writes))
		}
	})
}

func TestResolver_Trace(t *testing.T) {
	r := newTestResolver()
	res := r.Resolve(ResolveInput{RequestURL: "https://example.com/", Referrer: "https://t.co/x"})
	if len(res.Trace) == 0 {
		t.Fatal("expected trace entries")
	}
}
