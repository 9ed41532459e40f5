package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"tracker_server/core/port/in"
	"tracker_server/infra/middleware"
	"tracker_server/pkg/metrics"
)

// OpCapture names the latency window of attribution captures.
const OpCapture = "capture"

// CaptureMiddleware resolves and persists attribution on qualifying page views.
type CaptureMiddleware struct {
	service  in.AttributionService
	storeFor StoreFor
	excluded []string
	latency  *metrics.Registry
}

func NewCaptureMiddleware(service in.AttributionService, storeFor StoreFor, excludedPaths []string) *CaptureMiddleware {
	return &CaptureMiddleware{
		service:  service,
		storeFor: storeFor,
		excluded: excludedPaths,
	}
}

// WithLatency records capture durations in r.
func (m *CaptureMiddleware) WithLatency(r *metrics.Registry) *CaptureMiddleware {
	m.latency = r
	return m
}

// Qualifies reports whether the request is a page view worth attributing.
func (m *CaptureMiddleware) Qualifies(c *fiber.Ctx) bool {
	switch c.Method() {
	case fiber.MethodGet, fiber.MethodHead:
	default:
		return false
	}
	p := c.Path()
	if hasPrefixAny(p, m.excluded) || isStaticAsset(p) {
		return false
	}
	// Browser prefetches are not visits.
	if c.Get("Purpose") == "prefetch" || c.Get("Sec-Purpose") != "" {
		return false
	}
	return true
}

func (m *CaptureMiddleware) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.Qualifies(c) {
			return c.Next()
		}

		start := time.Now()
		tuple := m.service.Track(c.UserContext(), pageViewFrom(c), m.storeFor(c))
		m.latency.Since(OpCapture, start)
		c.Locals(LocalsAttribution, tuple)
		c.Locals(middleware.LocalsSource, tuple.Source)
		return c.Next()
	}
}
