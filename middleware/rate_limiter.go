package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"feedcompose/config"
	"feedcompose/utils"
)

// RateLimiter enforces a per-IP request budget. Exceeding it yields a
// RateLimitError so the app's error handler localizes the response like
// every other failure. Limits and eviction cadence come from config.
func RateLimiter(cfg config.RateLimitConfig) fiber.Handler {
	type visitor struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	window := time.Duration(cfg.WindowSeconds) * time.Second
	cleanupEvery := time.Duration(cfg.CleanupIntervalMinutes) * time.Minute
	idleTTL := time.Duration(cfg.IdleEvictionMinutes) * time.Minute

	var (
		visitors = make(map[string]*visitor)
		mu       sync.Mutex
	)

	// Evict visitors that have gone quiet
	go func() {
		for {
			time.Sleep(cleanupEvery)
			mu.Lock()
			for ip, v := range visitors {
				if time.Since(v.lastSeen) > idleTTL {
					delete(visitors, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *fiber.Ctx) error {
		ip := c.IP()

		mu.Lock()
		v, exists := visitors[ip]
		if !exists {
			v = &visitor{
				limiter: rate.NewLimiter(rate.Every(window/time.Duration(cfg.Requests)), cfg.Requests),
			}
			visitors[ip] = v
		}
		v.lastSeen = time.Now()
		mu.Unlock()

		if !v.limiter.Allow() {
			return utils.RateLimitError(fmt.Errorf("ip %s exceeded %d requests per %s", ip, cfg.Requests, window))
		}

		return c.Next()
	}
}
