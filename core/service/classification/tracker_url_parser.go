// Package classification turns referrer URLs and query strings into attribution signals.
package classification

import (
	"net"
	"net/url"
	"strings"
)

// ParsedURL is the decomposed form of a URL used by the classifiers.
// A zero value means the input was malformed or had no host.
type ParsedURL struct {
	Host  string
	Path  string
	Query map[string]string
}

// IsEmpty reports whether parsing produced no host.
func (p ParsedURL) IsEmpty() bool {
	return p.Host == ""
}

// ParseURL decomposes raw into host, path and query. It never fails:
// malformed or relative URLs yield an empty ParsedURL.
func ParseURL(raw string) ParsedURL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ParsedURL{}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ParsedURL{}
	}

	host := NormalizeHost(u.Host)
	if host == "" {
		return ParsedURL{}
	}

	return ParsedURL{
		Host:  host,
		Path:  u.Path,
		Query: ParseQuery(u.RawQuery),
	}
}

// ParseQuery maps a raw query string to decoded key/value pairs.
// Repeated keys keep the last occurrence; undecodable pairs are skipped.
func ParseQuery(rawQuery string) map[string]string {
	out := make(map[string]string)
	rawQuery = strings.TrimPrefix(rawQuery, "?")
	if rawQuery == "" {
		return out
	}

	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(key)
		if err != nil || k == "" {
			continue
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			continue
		}
		out[k] = v
	}
	return out
}

// QueryOf returns the decoded query of raw, which may be absolute or a
// request URI such as "/page?utm_source=x".
func QueryOf(raw string) map[string]string {
	raw, _, _ = strings.Cut(raw, "#")
	_, q, ok := strings.Cut(raw, "?")
	if !ok {
		return map[string]string{}
	}
	return ParseQuery(q)
}

// NormalizeHost lowercases a host and strips any port and trailing dot.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return strings.TrimSuffix(host, ".")
}

// SameHost reports whether two hosts name the same site, ignoring case and ports.
func SameHost(a, b string) bool {
	a, b = NormalizeHost(a), NormalizeHost(b)
	return a != "" && a == b
}

// CleanReferrer returns the referrer header as observed, minus invalid UTF-8
// and control characters. Any scheme is kept; whether it carries a host is
// left to ParseURL. Output sinks escape the value.
func CleanReferrer(raw string) string {
	if raw == "" {
		return ""
	}
	raw = strings.ToValidUTF8(raw, "")
	raw = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, raw)
	return strings.TrimSpace(raw)
}
