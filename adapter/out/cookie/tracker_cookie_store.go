// Package cookie persists attribution state in the visitor's own cookie jar.
package cookie

import (
	"context"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
)

// Jar is the subset of *fiber.Ctx the store needs.
type Jar interface {
	Cookies(key string, defaultValue ...string) string
	Cookie(cookie *fiber.Cookie)
}

// Options controls cookie naming and attributes.
type Options struct {
	Prefix string // e.g. "rt_" gives rt_source, rt_medium, ...
	Secure bool
	Domain string
}

// Store keeps the four attribution slots in request/response cookies.
type Store struct {
	jar  Jar
	opts Options
	now  func() time.Time
}

var _ out.AttributionStore = (*Store)(nil)

// NewStore binds a store to one request's cookie jar.
func NewStore(jar Jar, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = "rt_"
	}
	return &Store{jar: jar, opts: opts, now: time.Now}
}

// Name returns the cookie name of a slot.
func (s *Store) Name(f domain.Field) string {
	return s.opts.Prefix + string(f)
}

// Get reads the slots sent with the request. It returns nil when none are set.
func (s *Store) Get(ctx context.Context) (*domain.VisitorRecord, error) {
	if s.jar == nil {
		return nil, nil
	}
	rec := &domain.VisitorRecord{
		Source:   s.read(domain.FieldSource),
		Medium:   s.read(domain.FieldMedium),
		Campaign: s.read(domain.FieldCampaign),
		Referrer: s.read(domain.FieldReferrer),
	}
	if rec.IsEmpty() {
		return nil, nil
	}
	return rec, nil
}

// Apply sets one cookie per write, all expiring ttl from now.
func (s *Store) Apply(ctx context.Context, writes []domain.StoreWrite, ttl time.Duration) error {
	if s.jar == nil {
		return nil
	}
	expires := s.now().Add(ttl)
	for _, w := range writes {
		s.jar.Cookie(s.cookie(w.Field, url.PathEscape(w.Value), expires))
	}
	return nil
}

// Clear expires all four slots.
func (s *Store) Clear(ctx context.Context) error {
	if s.jar == nil {
		return nil
	}
	past := s.now().Add(-time.Hour)
	for _, f := range domain.AllFields {
		s.jar.Cookie(s.cookie(f, "", past))
	}
	return nil
}

func (s *Store) read(f domain.Field) string {
	raw := s.jar.Cookies(s.Name(f))
	if raw == "" {
		return ""
	}
	v, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return v
}

func (s *Store) cookie(f domain.Field, value string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     s.Name(f),
		Value:    value,
		Path:     "/",
		Domain:   s.opts.Domain,
		Expires:  expires,
		Secure:   s.opts.Secure,
		HTTPOnly: false, // read by the client script
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}
