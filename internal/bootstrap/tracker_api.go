package bootstrap

import (
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/valyala/fasthttp"

	"tracker_server/adapter/in/http"
	"tracker_server/config"
	"tracker_server/infra/middleware"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/logger"
	"tracker_server/pkg/metrics"
)

const upstreamTimeout = 15 * time.Second

func NewAPI(cfg *config.Config) (*fiber.App, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize dependencies")
		return nil, nil, err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),

		// go-json for API payloads
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:          1 * 1024 * 1024,
		ServerHeader:       "",
		DisableDefaultDate: true,
	})

	// Global middleware stack (order matters)
	app.Use(middleware.Recover())       // 1. Panic recovery
	app.Use(middleware.RequestID())     // 2. Request ID
	app.Use(middleware.RequestLogger()) // 3. Request logging

	app.Use(cors.New(corsConfig(cfg)))

	// Compression wraps everything below, so injected HTML is compressed after rewriting.
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	latency := metrics.NewRegistry(metrics.DefaultWindow)

	health := http.NewHealthHandler(RuleCount(deps.Rules)).WithLatency(latency)
	if deps.Cache != nil {
		health.WithCheck("redis", deps.Cache)
	}
	health.Register(app)

	limiter := middleware.NewRateLimiter(cfg.ClassifyRatePerSec, cfg.ClassifyBurst)
	http.NewAttributionHandler(deps.Service, deps.StoreFor, limiter).Register(app)

	forms := http.NewFormSink(deps.Service, deps.StoreFor)
	app.Use(http.NewCaptureMiddleware(deps.Service, deps.StoreFor, cfg.ExcludedPaths).WithLatency(latency).Handler())
	app.Use(forms.FillSubmission())
	app.Use(forms.InjectHTML())

	registerSite(app, cfg)

	return app, cleanup, nil
}

func corsConfig(cfg *config.Config) cors.Config {
	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	// Credentials require explicit origins.
	allowCredentials := allowOrigins != "" && allowOrigins != "*"
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	return cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,X-Request-ID",
		ExposeHeaders:    "X-Request-ID,Retry-After",
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}
}

// registerSite serves the tracked site, either by proxying to an upstream or
// from a static directory.
func registerSite(app *fiber.App, cfg *config.Config) {
	if cfg.UpstreamURL != "" {
		upstream := strings.TrimRight(cfg.UpstreamURL, "/")
		logger.Info("Proxying site to %s", upstream)
		app.All("/*", func(c *fiber.Ctx) error {
			// The upstream response replaces ours, including the cookies and
			// request ID written by earlier middleware.
			var kept fasthttp.ResponseHeader
			c.Response().Header.CopyTo(&kept)

			// Ask for an uncompressed body so forms can be rewritten. The
			// client's header is restored for the compress middleware.
			acceptEncoding := string(c.Request().Header.Peek(fiber.HeaderAcceptEncoding))
			c.Request().Header.Del(fiber.HeaderAcceptEncoding)
			err := proxy.DoTimeout(c, upstream+c.OriginalURL(), upstreamTimeout)
			if acceptEncoding != "" {
				c.Request().Header.Set(fiber.HeaderAcceptEncoding, acceptEncoding)
			}
			restoreHeaders(&c.Response().Header, &kept)

			if err != nil {
				logger.WithContext(c.UserContext()).WithError(err).Warn("upstream request failed")
				if errors.Is(err, fasthttp.ErrTimeout) {
					return apperr.Timeout("upstream request").WithError(err)
				}
				return apperr.ExternalError("upstream", err)
			}
			c.Response().Header.Del(fiber.HeaderServer)
			return nil
		})
		return
	}

	logger.Info("Serving site from %s", cfg.StaticDir)
	app.Static("/", cfg.StaticDir, fiber.Static{
		Index:    "index.html",
		Compress: false,
	})
	app.Use(func(c *fiber.Ctx) error {
		return apperr.NotFound("page")
	})
}

// Headers describing the upstream body or connection are never restored.
var upstreamOwned = map[string]bool{
	"content-type":      true,
	"content-length":    true,
	"content-encoding":  true,
	"transfer-encoding": true,
	"connection":        true,
	"server":            true,
	"date":              true,
	"set-cookie":        true,
}

// restoreHeaders re-applies headers saved before proxying. Saved cookies
// replace upstream cookies of the same name; other headers are only added
// when the upstream did not send them.
func restoreHeaders(dst, saved *fasthttp.ResponseHeader) {
	saved.VisitAllCookie(func(_, value []byte) {
		ck := fasthttp.AcquireCookie()
		defer fasthttp.ReleaseCookie(ck)
		if err := ck.ParseBytes(value); err == nil {
			dst.SetCookie(ck)
		}
	})
	saved.VisitAll(func(key, value []byte) {
		if upstreamOwned[strings.ToLower(string(key))] || len(dst.PeekBytes(key)) > 0 {
			return
		}
		dst.SetBytesKV(key, value)
	})
}
