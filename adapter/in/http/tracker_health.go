package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"tracker_server/pkg/metrics"
)

// HealthChecker is a dependency that can report readiness.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks  map[string]HealthChecker
	rules   int
	latency *metrics.Registry
}

func NewHealthHandler(ruleCount int) *HealthHandler {
	return &HealthHandler{checks: map[string]HealthChecker{}, rules: ruleCount}
}

// WithCheck adds a named readiness dependency.
func (h *HealthHandler) WithCheck(name string, c HealthChecker) *HealthHandler {
	if c != nil {
		h.checks[name] = c
	}
	return h
}

// WithLatency includes the latency windows of r in the readiness report.
func (h *HealthHandler) WithLatency(r *metrics.Registry) *HealthHandler {
	h.latency = r
	return h
}

func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/healthz", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	for name, chk := range h.checks {
		if err := chk.Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks[name] = "healthy"
		}
	}
	if len(h.checks) == 0 {
		checks["store"] = "cookie"
	}

	status := "ready"
	statusCode := fiber.StatusOK
	if !allHealthy {
		status = "not ready"
		statusCode = fiber.StatusServiceUnavailable
	}

	body := fiber.Map{
		"status":    status,
		"checks":    checks,
		"rules":     h.rules,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if snap := h.latency.Snapshot(); len(snap) > 0 {
		latency := make(map[string]map[string]any, len(snap))
		for op, s := range snap {
			latency[op] = s.ToMap()
		}
		body["latency"] = latency
	}
	return c.Status(statusCode).JSON(body)
}
