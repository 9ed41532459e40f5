package bootstrap

import (
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker_server/config"
	"tracker_server/pkg/apperr"
)

const landingPage = `<!DOCTYPE html><html><body><form action="/contact"><input name="email"></form></body></html>`

func testConfig() *config.Config {
	return &config.Config{
		Environment:        "test",
		StaticDir:          "./public",
		ExcludedPaths:      []string{"/admin", "/api/", "/healthz"},
		StoreBackend:       config.StoreBackendCookie,
		CookiePrefix:       "rt_",
		CookieTTLDays:      30,
		FieldPrefix:        "rt_",
		AutoFields:         true,
		CampaignDefault:    "none",
		AttributionModel:   "hybrid",
		AllowedOrigins:     []string{"*"},
		ClassifyRatePerSec: 5,
		ClassifyBurst:      10,
	}
}

func newTestAPI(t *testing.T, cfg *config.Config) *fiber.App {
	t.Helper()
	app, cleanup, err := NewAPI(cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return app
}

func cookiesByName(resp *nethttp.Response) map[string]string {
	out := make(map[string]string)
	for _, ck := range resp.Cookies() {
		out[ck.Name] = ck.Value
	}
	return out
}

func errorCode(t *testing.T, resp *nethttp.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error.Code
}

func TestAPI_ProxyKeepsTrackingHeaders(t *testing.T) {
	upstream := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.SetCookie(w, &nethttp.Cookie{Name: "session", Value: "abc", Path: "/"})
		nethttp.SetCookie(w, &nethttp.Cookie{Name: "rt_source", Value: "upstream", Path: "/"})
		w.Header().Set("X-Upstream", r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, landingPage)
	}))
	defer upstream.Close()

	cfg := testConfig()
	cfg.UpstreamURL = upstream.URL + "/"
	app := newTestAPI(t, cfg)

	req := httptest.NewRequest("GET", "/landing?utm_campaign=spring", nil)
	req.Header.Set("Referer", "https://www.google.com/search?q=shoes")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "/landing", resp.Header.Get("X-Upstream"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Empty(t, resp.Header.Get("Server"))

	cookies := cookiesByName(resp)
	assert.Equal(t, "google", cookies["rt_source"])
	assert.Equal(t, "organic", cookies["rt_medium"])
	assert.Equal(t, "spring", cookies["rt_campaign"])
	assert.Equal(t, "abc", cookies["session"])

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `name="rt_source"`)
	assert.Contains(t, string(body), `value="google"`)
}

func TestAPI_ProxyUpstreamUnavailable(t *testing.T) {
	upstream := httptest.NewServer(nethttp.NotFoundHandler())
	addr := upstream.URL
	upstream.Close()

	cfg := testConfig()
	cfg.UpstreamURL = addr
	app := newTestAPI(t, cfg)

	req := httptest.NewRequest("GET", "/pricing", nil)
	req.Header.Set("Referer", "https://www.bing.com/search?q=x")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "bing", cookiesByName(resp)["rt_source"])
	assert.Equal(t, apperr.CodeExternalError, errorCode(t, resp))
}

func TestAPI_StaticSite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte(landingPage), 0o644))

	cfg := testConfig()
	cfg.StaticDir = dir
	app := newTestAPI(t, cfg)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), 5000)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `name="rt_source"`)
	assert.Equal(t, "direct", cookiesByName(resp)["rt_source"])

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, apperr.CodeNotFound, errorCode(t, resp))
}

func TestLoadRules(t *testing.T) {
	cfg := testConfig()
	rules, err := LoadRules(cfg)
	require.NoError(t, err)
	assert.Positive(t, RuleCount(rules))

	dir := t.TempDir()
	invalid := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("search_engines:\n  - names: [kagi]\n    match_domains: [kagi]\n    medium: magic\n"), 0o644))

	for _, path := range []string{filepath.Join(dir, "missing.yaml"), invalid} {
		cfg.RulesFile = path
		_, err := LoadRules(cfg)
		require.Error(t, err, path)
		appErr := apperr.AsAppError(err)
		assert.Equal(t, apperr.CodeConfigError, appErr.Code, path)
		assert.Equal(t, path, appErr.Details["rules_file"])
	}
}
