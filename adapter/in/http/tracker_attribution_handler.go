package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"tracker_server/adapter/out/sink"
	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/infra/middleware"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/response"
)

// ScriptPath serves the client-side form populator.
const ScriptPath = "/tracker.js"

type AttributionHandler struct {
	service  in.AttributionService
	storeFor StoreFor
	script   *sink.ScriptRenderer
	limiter  *middleware.RateLimiter
}

func NewAttributionHandler(service in.AttributionService, storeFor StoreFor, limiter *middleware.RateLimiter) *AttributionHandler {
	return &AttributionHandler{
		service:  service,
		storeFor: storeFor,
		script:   sink.NewScriptRenderer(service.Settings()),
		limiter:  limiter,
	}
}

func (h *AttributionHandler) Register(app *fiber.App) {
	app.Get(ScriptPath, h.Script)

	api := app.Group("/api/v1", middleware.SecurityHeaders())
	attr := api.Group("/attribution")
	attr.Get("/", h.Get)
	attr.Delete("/", h.Reset)

	classify := []fiber.Handler{}
	if h.limiter != nil {
		classify = append(classify, h.limiter.Handler())
	}
	classify = append(classify, h.Classify)
	attr.Post("/classify", classify...)
}

// Get returns the stored attribution for the calling visitor.
func (h *AttributionHandler) Get(c *fiber.Ctx) error {
	tuple := h.service.Current(c.UserContext(), h.storeFor(c))
	response.NoStore(c)
	return response.OK(c, in.AttributionResponse{
		Attribution: tuple,
		Settings:    h.service.Settings(),
	})
}

func (h *AttributionHandler) Reset(c *fiber.Ctx) error {
	if err := h.service.Reset(c.UserContext(), h.storeFor(c)); err != nil {
		return apperr.StorageError("reset attribution", err)
	}
	response.NoStore(c)
	return response.NoContent(c)
}

// Classify runs the resolver without touching visitor state.
func (h *AttributionHandler) Classify(c *fiber.Ctx) error {
	var req in.ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Referrer = strings.TrimSpace(req.Referrer)
	if req.URL == "" && req.Referrer == "" {
		return apperr.MissingField("url")
	}

	res := h.service.Classify(&req)
	return response.OK(c, res)
}

// Script renders the populator with the visitor's current values. Visitors
// without stored state get the defaults so forms are never left blank.
func (h *AttributionHandler) Script(c *fiber.Ctx) error {
	tuple, ok := AttributionFrom(c)
	if !ok {
		tuple = h.service.Current(c.UserContext(), h.storeFor(c))
	}
	if tuple.Source == "" {
		tuple = domain.DefaultTuple()
	}

	js, err := h.script.Render(tuple)
	if err != nil {
		logger.WithContext(c.UserContext()).WithError(err).Error("render tracker script")
		return apperr.InternalWithError(err)
	}

	response.NoStore(c)
	c.Set(fiber.HeaderContentType, "application/javascript; charset=utf-8")
	return c.Send(js)
}
