package in

import (
	"context"

	"tracker_server/core/domain"
	"tracker_server/core/port/out"
)

// AttributionService defines the inbound port for attribution tracking.
type AttributionService interface {
	// === Page Views ===
	Track(ctx context.Context, view *PageView, store out.AttributionStore) domain.AttributionTuple
	Current(ctx context.Context, store out.AttributionStore) domain.AttributionTuple
	Reset(ctx context.Context, store out.AttributionStore) error

	// === Dry Run ===
	Classify(req *ClassifyRequest) domain.Resolution

	// === Settings ===
	Settings() domain.Settings
}

// =============================================================================
// Request/Response Types
// =============================================================================

// PageView is the request data the resolver consumes.
type PageView struct {
	URL      string            `json:"url"`
	Host     string            `json:"host"`
	Referrer string            `json:"referrer"`
	Query    map[string]string `json:"query"`
}

// ClassifyRequest is a stateless resolution request.
type ClassifyRequest struct {
	URL      string                `json:"url"`
	Referrer string                `json:"referrer"`
	SiteHost string                `json:"site_host"`
	Prior    *domain.VisitorRecord `json:"prior,omitempty"`
}

// AttributionResponse is the read-only view served to clients.
type AttributionResponse struct {
	Attribution domain.AttributionTuple `json:"attribution"`
	Settings    domain.Settings         `json:"settings"`
}
