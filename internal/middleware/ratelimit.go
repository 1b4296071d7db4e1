package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimiter applies a token bucket per client IP.
//
// The server uses two instances: a generous one for the whole API and a
// tighter one for photo uploads, which write to the blob store.
//
// c.RealIP() is trusted, so configure echo's IPExtractor when running behind
// a proxy:
//
//	e.IPExtractor = echo.ExtractIPFromXFFHeader(echo.TrustPrivateNet(true))
type RateLimiter struct {
	limiters sync.Map // IP address -> *limiterEntry
	logger   *slog.Logger
	config   RateLimitConfig
	ctx      context.Context
	cancel   context.CancelFunc
}

// limiterEntry wraps a rate limiter with its last access time (Unix seconds).
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess atomic.Int64
}

// RateLimitConfig configures a RateLimiter.
type RateLimitConfig struct {
	// Rate is the sustained number of requests per second per IP.
	Rate float64

	// Burst is the bucket size per IP.
	Burst int

	// CleanupInterval is how often idle limiters are dropped.
	CleanupInterval time.Duration

	// IdleTimeout is how long a limiter may go unused before it is dropped.
	IdleTimeout time.Duration
}

// DefaultRateLimitConfig returns the API-wide defaults: 100 req/s, burst 200.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rate:            100,
		Burst:           200,
		CleanupInterval: time.Hour,
		IdleTimeout:     time.Hour,
	}
}

// UploadRateLimitConfig returns the defaults for photo uploads: 30 per minute, burst 10.
func UploadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Rate:            30.0 / 60.0,
		Burst:           10,
		CleanupInterval: time.Hour,
		IdleTimeout:     time.Hour,
	}
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
// Call Shutdown to stop it.
func NewRateLimiter(logger *slog.Logger, cfg RateLimitConfig) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	rl := &RateLimiter{
		logger: logger,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	go rl.cleanupOldLimiters()

	return rl
}

// Middleware returns 429 with a Retry-After header once an IP exhausts its bucket.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	limit := fmt.Sprintf("%g", rl.config.Rate)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			limiter := rl.GetLimiter(ip)

			c.Response().Header().Set("X-RateLimit-Limit", limit)

			if !limiter.Allow() {
				rl.logger.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", c.Path()),
					slog.String("method", c.Request().Method))

				c.Response().Header().Set("Retry-After", "1")
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}

			return next(c)
		}
	}
}

// GetLimiter returns the limiter for ip, creating it on first use.
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	now := time.Now().Unix()
	if entry, ok := rl.limiters.Load(ip); ok {
		e := entry.(*limiterEntry)
		e.lastAccess.Store(now)
		return e.limiter
	}

	entry := &limiterEntry{
		limiter: rate.NewLimiter(rate.Limit(rl.config.Rate), rl.config.Burst),
	}
	entry.lastAccess.Store(now)
	actual, _ := rl.limiters.LoadOrStore(ip, entry)
	return actual.(*limiterEntry).limiter
}

func (rl *RateLimiter) cleanupOldLimiters() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := rl.removeIdle(time.Now()); removed > 0 {
				rl.logger.Info("cleaned up old rate limiters", slog.Int("removed", removed))
			}
		case <-rl.ctx.Done():
			return
		}
	}
}

// removeIdle drops limiters unused since now minus the idle timeout.
func (rl *RateLimiter) removeIdle(now time.Time) int {
	var removed int
	cutoff := now.Add(-rl.config.IdleTimeout).Unix()
	rl.limiters.Range(func(key, value any) bool {
		if value.(*limiterEntry).lastAccess.Load() < cutoff {
			rl.limiters.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Shutdown stops the cleanup goroutine.
func (rl *RateLimiter) Shutdown() {
	if rl.cancel != nil {
		rl.cancel()
	}
}
