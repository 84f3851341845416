package http

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/callnotes/internal/infra/config"
	"github.com/yanqian/callnotes/pkg/util"
)

const (
	codeRateLimited = "rate_limit_exceeded"
	visitorTTL      = 5 * time.Minute
)

func rateLimitMiddleware(cfg config.RateLimitConfig, logger *slog.Logger) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := newIPRateLimiter(cfg, time.Now)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		wait := limiter.reserve(ip)
		if wait == 0 {
			c.Next()
			return
		}
		seconds := int(math.Ceil(wait.Seconds()))
		c.Header("Retry-After", strconv.Itoa(seconds))
		logger.Warn("rate limit exceeded", "ip", ip, "path", c.Request.URL.Path, "retry_after_s", seconds)
		abortWithError(c, NewHTTPError(http.StatusTooManyRequests, codeRateLimited, "too many requests", nil))
	}
}

// ipRateLimiter is a token bucket per client address. Buckets idle longer than
// visitorTTL are dropped, at most once per visitorTTL.
type ipRateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	perSecond   float64
	capacity    float64
	now         util.Clock
	nextCleanup time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func newIPRateLimiter(cfg config.RateLimitConfig, now util.Clock) *ipRateLimiter {
	capacity := float64(cfg.Burst)
	if capacity < 1 {
		capacity = 1
	}
	return &ipRateLimiter{
		buckets:   make(map[string]*bucket),
		perSecond: float64(cfg.RequestsPerMinute) / 60,
		capacity:  capacity,
		now:       now,
	}
}

// allow consumes a token for ip when one is available.
func (l *ipRateLimiter) allow(ip string) bool {
	return l.reserve(ip) == 0
}

// reserve consumes a token for ip and returns 0, or returns how long until one is available.
func (l *ipRateLimiter) reserve(ip string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictIdle(now)

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{tokens: l.capacity, seen: now}
		l.buckets[ip] = b
	}
	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = math.Min(l.capacity, b.tokens+elapsed*l.perSecond)
	}
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return 0
	}
	missing := 1 - b.tokens
	return time.Duration(missing / l.perSecond * float64(time.Second))
}

func (l *ipRateLimiter) evictIdle(now time.Time) {
	if now.Before(l.nextCleanup) {
		return
	}
	for ip, b := range l.buckets {
		if now.Sub(b.seen) > visitorTTL {
			delete(l.buckets, ip)
		}
	}
	l.nextCleanup = now.Add(visitorTTL)
}
