package attribution

import (
	"context"
	"strings"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/pkg/logger"
)

// Service tracks page views against a visitor's attribution store.
type Service struct {
	resolver *Resolver
	settings domain.Settings
	siteHost string
}

// NewService creates the attribution service. siteHost overrides the
// request Host when comparing referrers; leave empty to use the request.
func NewService(resolver *Resolver, settings domain.Settings, siteHost string) *Service {
	return &Service{
		resolver: resolver,
		settings: settings,
		siteHost: siteHost,
	}
}

var _ in.AttributionService = (*Service)(nil)

// Track resolves view against the visitor's prior state and persists the result.
// Store failures are logged and never returned.
func (s *Service) Track(ctx context.Context, view *in.PageView, store out.AttributionStore) domain.AttributionTuple {
	if store == nil || view == nil {
		return domain.DefaultTuple()
	}
	log := logger.WithContext(ctx)

	prior, err := store.Get(ctx)
	if err != nil {
		log.WithError(err).Warn("attribution: load prior state failed, treating as first visit")
		prior = nil
	}

	host := s.siteHost
	if host == "" {
		host = view.Host
	}

	res := s.resolver.Resolve(ResolveInput{
		RequestURL: view.URL,
		SiteHost:   host,
		Referrer:   view.Referrer,
		Query:      view.Query,
		Prior:      prior,
	})

	if s.settings.DebugLogging {
		log.WithField("url", view.URL).Debug("attribution trace: %s", strings.Join(res.Trace, "; "))
	}

	if len(res.Writes) > 0 {
		if err := store.Apply(ctx, res.Writes, s.resolver.Policy().TTL); err != nil {
			log.WithError(err).Warn("attribution: persist failed")
		}
	}
	return res.Tuple
}

// Current returns the stored values without resolving. Missing slots are empty.
func (s *Service) Current(ctx context.Context, store out.AttributionStore) domain.AttributionTuple {
	if store == nil {
		return domain.AttributionTuple{}
	}
	rec, err := store.Get(ctx)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Warn("attribution: read failed")
		return domain.AttributionTuple{}
	}
	return rec.Tuple()
}

// Reset clears the visitor's persisted state.
func (s *Service) Reset(ctx context.Context, store out.AttributionStore) error {
	if store == nil {
		return nil
	}
	return store.Clear(ctx)
}

// Classify runs a dry-run resolution. Nothing is persisted.
func (s *Service) Classify(req *in.ClassifyRequest) domain.Resolution {
	if req == nil {
		req = &in.ClassifyRequest{}
	}
	host := req.SiteHost
	if host == "" {
		host = s.siteHost
	}
	return s.resolver.Resolve(ResolveInput{
		RequestURL: req.URL,
		SiteHost:   host,
		Referrer:   req.Referrer,
		Prior:      req.Prior,
	})
}

// Settings returns the configuration surface exposed to sinks and clients.
func (s *Service) Settings() domain.Settings {
	return s.settings
}
