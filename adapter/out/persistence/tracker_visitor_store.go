// Package persistence provides server-side adapters implementing outbound ports.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"tracker_server/adapter/out/cookie"
	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/pkg/logger"
)

// visitorCacheKey generates the Redis key of a visitor record.
func visitorCacheKey(visitorID string) string {
	return fmt.Sprintf("tracker:visitor:%s", visitorID)
}

// =============================================================================
// Visitor Store Factory
// =============================================================================

// VisitorStores builds request-scoped Redis visitor stores. It owns the
// shared circuit breaker and read deduplication.
type VisitorStores struct {
	cache   out.Cache
	cb      *gobreaker.CircuitBreaker
	flight  singleflight.Group
	cookies cookie.Options
}

// NewVisitorStores creates a factory over cache.
func NewVisitorStores(cache out.Cache, cookies cookie.Options) *VisitorStores {
	cbSettings := gobreaker.Settings{
		Name:        "redis-visitor-store",
		MaxRequests: 3,                // Requests allowed while half-open
		Interval:    60 * time.Second, // Closed-state counter reset
		Timeout:     15 * time.Second, // Open-state duration before half-open
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithField("breaker", name).Warn("circuit breaker state changed from %s to %s", from.String(), to.String())
		},
	}

	if cookies.Prefix == "" {
		cookies.Prefix = "rt_"
	}
	return &VisitorStores{
		cache:   cache,
		cb:      gobreaker.NewCircuitBreaker(cbSettings),
		cookies: cookies,
	}
}

// For binds a store to one request.
func (f *VisitorStores) For(c cookie.Jar) *VisitorStore {
	return &VisitorStore{
		factory: f,
		jar:     c,
		mirror:  cookie.NewStore(c, f.cookies),
		now:     time.Now,
	}
}

// CircuitOpen reports whether Redis calls are currently short-circuited.
func (f *VisitorStores) CircuitOpen() bool {
	return f.cb.State() == gobreaker.StateOpen
}

// =============================================================================
// Visitor Store
// =============================================================================

// VisitorStore keeps a visitor's record in Redis keyed by a visitor id cookie.
// The four attribution cookies are mirrored so client scripts can read them.
type VisitorStore struct {
	factory *VisitorStores
	jar     cookie.Jar
	mirror  *cookie.Store
	now     func() time.Time

	loaded bool
	prior  *domain.VisitorRecord
}

var _ out.AttributionStore = (*VisitorStore)(nil)

func (s *VisitorStore) visitorCookie() string {
	return s.factory.cookies.Prefix + "vid"
}

func (s *VisitorStore) visitorID() string {
	if s.jar == nil {
		return ""
	}
	id := s.jar.Cookies(s.visitorCookie())
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}

// Get loads the visitor record. Concurrent loads of the same visitor share one Redis call.
func (s *VisitorStore) Get(ctx context.Context) (*domain.VisitorRecord, error) {
	id := s.visitorID()
	if id == "" {
		s.loaded = true
		return nil, nil
	}

	key := visitorCacheKey(id)
	v, err, _ := s.factory.flight.Do(key, func() (interface{}, error) {
		return s.factory.cb.Execute(func() (interface{}, error) {
			var rec domain.VisitorRecord
			found, err := s.factory.cache.GetJSON(ctx, key, &rec)
			if err != nil {
				return nil, err
			}
			if !found {
				return (*domain.VisitorRecord)(nil), nil
			}
			return &rec, nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load visitor %s: %w", id, err)
	}

	rec, _ := v.(*domain.VisitorRecord)
	if rec != nil {
		cp := *rec
		rec = &cp
	}
	s.loaded = true
	s.prior = rec
	return rec, nil
}

// Apply merges writes into the record and saves it with ttl. Cookies are mirrored
// even when Redis is unavailable.
func (s *VisitorStore) Apply(ctx context.Context, writes []domain.StoreWrite, ttl time.Duration) error {
	if len(writes) == 0 {
		return nil
	}
	if err := s.mirror.Apply(ctx, writes, ttl); err != nil {
		return err
	}

	id := s.visitorID()
	if id == "" {
		id = uuid.NewString()
	}
	// The id cookie always carries the record's expiry.
	if s.jar != nil {
		s.jar.Cookie(&fiber.Cookie{
			Name:     s.visitorCookie(),
			Value:    id,
			Path:     "/",
			Domain:   s.factory.cookies.Domain,
			Expires:  s.now().Add(ttl),
			Secure:   s.factory.cookies.Secure,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}

	if !s.loaded {
		if _, err := s.Get(ctx); err != nil {
			return err
		}
	}
	next := domain.ApplyWrites(s.prior, writes, s.now())

	_, err := s.factory.cb.Execute(func() (interface{}, error) {
		return nil, s.factory.cache.SetJSON(ctx, visitorCacheKey(id), next, ttl)
	})
	if err != nil {
		return fmt.Errorf("save visitor %s: %w", id, err)
	}
	s.prior = next
	return nil
}

// Clear deletes the record and expires all cookies.
func (s *VisitorStore) Clear(ctx context.Context) error {
	var errs []error
	if err := s.mirror.Clear(ctx); err != nil {
		errs = append(errs, err)
	}

	if id := s.visitorID(); id != "" {
		_, err := s.factory.cb.Execute(func() (interface{}, error) {
			return nil, s.factory.cache.Delete(ctx, visitorCacheKey(id))
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("delete visitor %s: %w", id, err))
		}
	}
	if s.jar != nil {
		s.jar.Cookie(&fiber.Cookie{
			Name:     s.visitorCookie(),
			Path:     "/",
			Domain:   s.factory.cookies.Domain,
			Expires:  s.now().Add(-time.Hour),
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}

	s.prior = nil
	s.loaded = true
	return errors.Join(errs...)
}
