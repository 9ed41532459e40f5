package bootstrap

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"tracker_server/adapter/in/http"
	"tracker_server/adapter/out/cookie"
	"tracker_server/adapter/out/persistence"
	"tracker_server/config"
	"tracker_server/core/domain"
	"tracker_server/core/port/out"
	"tracker_server/core/service/attribution"
	"tracker_server/core/service/classification"
	"tracker_server/infra/database"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/cache"
	"tracker_server/pkg/logger"
)

type Dependencies struct {
	Config *config.Config
	Redis  *redis.Client

	// Resolution
	Rules    *domain.RuleSet
	Resolver *attribution.Resolver
	Service  *attribution.Service

	// Storage
	StoreFor      http.StoreFor
	VisitorStores *persistence.VisitorStores
	Cache         *cache.RedisCache
}

// LoadRules returns the configured rule set, or the built-in tables when no
// rules file is set.
func LoadRules(cfg *config.Config) (*domain.RuleSet, error) {
	if cfg.RulesFile == "" {
		return classification.DefaultRuleSet(), nil
	}

	raw, err := config.LoadDomainRules(cfg.RulesFile)
	if err != nil {
		return nil, apperr.ConfigError("load rules file").
			WithDetail("rules_file", cfg.RulesFile).
			WithError(err)
	}
	rules, v := config.NormalizeAndValidateRules(raw)
	for _, w := range v.Warnings {
		logger.WithField("rules_file", cfg.RulesFile).Warn("rules: %s", w)
	}
	if err := v.Err(); err != nil {
		return nil, apperr.ConfigError("invalid rules file").
			WithDetail("rules_file", cfg.RulesFile).
			WithError(err)
	}
	logger.Info("Loaded %d domain rules from %s", RuleCount(rules), cfg.RulesFile)
	return rules, nil
}

// RuleCount totals the rules across all tables.
func RuleCount(rs *domain.RuleSet) int {
	if rs == nil {
		return 0
	}
	n := 0
	for _, t := range domain.TableOrder {
		n += len(rs.Table(t))
	}
	return n
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	rules, err := LoadRules(cfg)
	if err != nil {
		return nil, nil, err
	}
	deps.Rules = rules
	deps.Resolver = attribution.NewResolver(rules, cfg.Policy())
	deps.Service = attribution.NewService(deps.Resolver, cfg.Settings(), cfg.SiteHost)

	cookieOpts := cookie.Options{
		Prefix: cfg.CookiePrefix,
		Secure: cfg.CookieSecure,
	}

	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		client, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.Redis = client
		cleanups = append(cleanups, func() {
			if err := client.Close(); err != nil {
				logger.WithError(err).Warn("Redis close failed")
			}
		})
		logger.Info("Redis connected")

		deps.Cache = cache.NewRedisCache(client)
		deps.VisitorStores = persistence.NewVisitorStores(deps.Cache, cookieOpts)
		deps.StoreFor = func(c *fiber.Ctx) out.AttributionStore {
			return deps.VisitorStores.For(c)
		}

	default:
		deps.StoreFor = func(c *fiber.Ctx) out.AttributionStore {
			return cookie.NewStore(c, cookieOpts)
		}
	}

	return deps, cleanup, nil
}
