package middleware

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"tracker_server/pkg/apperr"
)

// RateLimiter is a token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	r       rate.Limit
	b       int
	idle    time.Duration
	calls   int
	now     func() time.Time
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows reqPerSec sustained requests per IP with the given burst.
func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		r:       rate.Limit(reqPerSec),
		b:       burst,
		idle:    10 * time.Minute,
		now:     time.Now,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.calls++
	if rl.calls%256 == 0 {
		rl.sweep(now)
	}

	if cl, ok := rl.clients[key]; ok {
		cl.lastSeen = now
		return cl.lim
	}
	cl := &clientLimiter{lim: rate.NewLimiter(rl.r, rl.b), lastSeen: now}
	rl.clients[key] = cl
	return cl.lim
}

// sweep drops limiters idle for longer than rl.idle. Caller holds rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > rl.idle {
			delete(rl.clients, key)
		}
	}
}

// Handler rejects requests over the limit with RATE_LIMITED.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lim := rl.limiterFor(c.IP())
		res := lim.ReserveN(rl.now(), 1)

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.b))
		if !res.OK() {
			return apperr.RateLimited(1)
		}
		if delay := res.DelayFrom(rl.now()); delay > 0 {
			res.CancelAt(rl.now())
			retry := int(math.Ceil(delay.Seconds()))
			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", retry))
			return apperr.RateLimited(retry)
		}
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", int(lim.TokensAt(rl.now()))))
		return c.Next()
	}
}
