package http

import (
	"path"
	"strings"

	"github.com/gofiber/fiber/v2"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/core/port/out"
	"tracker_server/core/service/classification"
)

// LocalsAttribution holds the tuple resolved for the current request.
const LocalsAttribution = "attribution"

// StoreFor binds an attribution store to one request.
type StoreFor func(c *fiber.Ctx) out.AttributionStore

// AttributionFrom returns the tuple resolved earlier in the request, if any.
func AttributionFrom(c *fiber.Ctx) (domain.AttributionTuple, bool) {
	t, ok := c.Locals(LocalsAttribution).(domain.AttributionTuple)
	return t, ok
}

// pageViewFrom extracts the resolver inputs from the request.
func pageViewFrom(c *fiber.Ctx) *in.PageView {
	uri := c.OriginalURL()
	return &in.PageView{
		URL:      c.BaseURL() + uri,
		Host:     c.Hostname(),
		Referrer: c.Get(fiber.HeaderReferer),
		Query:    classification.QueryOf(uri),
	}
}

var staticExtensions = map[string]bool{
	".css": true, ".js": true, ".mjs": true, ".map": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".webp": true, ".avif": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true, ".eot": true,
	".mp4": true, ".webm": true, ".mp3": true, ".pdf": true, ".zip": true,
	".json": true, ".xml": true, ".txt": true,
}

// isStaticAsset reports whether p names a file that is not a page view.
func isStaticAsset(p string) bool {
	return staticExtensions[strings.ToLower(path.Ext(p))]
}

// hasPrefixAny reports whether p starts with any of the prefixes.
func hasPrefixAny(p string, prefixes []string) bool {
	for _, pre := range prefixes {
		if pre != "" && strings.HasPrefix(p, pre) {
			return true
		}
	}
	return false
}
