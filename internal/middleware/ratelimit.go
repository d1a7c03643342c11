package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/darasahq/darasa/internal/metrics"
)

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimitConfig holds the window parameters of a RateLimiter.
type RateLimitConfig struct {
	MaxAttempts   int           // attempts allowed per window
	Window        time.Duration // fixed counting window
	BlockDuration time.Duration // cool-down after the limit is exceeded
	EntryTTL      time.Duration // sweep entries idle longer than this
}

// DefaultRateLimitConfig matches the authentication throttle defaults:
// 5 attempts per 15 minutes, 30 minute block, hourly sweep horizon.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:   5,
		Window:        15 * time.Minute,
		BlockDuration: 30 * time.Minute,
		EntryTTL:      time.Hour,
	}
}

// Status is the result of a rate-limit check.
type Status struct {
	Allowed      bool
	Remaining    int        // attempts left in the current window
	ResetAt      *time.Time // when the current window restarts
	BlockedUntil *time.Time // set once the identifier is in cool-down
}

// RateLimiter tracks attempt counts per identifier (IP, email) in a fixed
// window with a cool-down once the limit is exceeded.
//
// The map is shared by every concurrent authentication request, so all
// access goes through the mutex. A background sweep bounds memory
// regardless of call volume.
type RateLimiter struct {
	config RateLimitConfig
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	stopCh  chan struct{}
}

type rateLimitEntry struct {
	count        int
	firstAttempt time.Time
	blockedUntil *time.Time
}

// NewRateLimiter creates a rate limiter and starts its sweep goroutine.
// Call Close to stop the sweep.
func NewRateLimiter(config RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if config.MaxAttempts <= 0 {
		config = DefaultRateLimitConfig()
	}
	if config.EntryTTL <= 0 {
		config.EntryTTL = DefaultRateLimitConfig().EntryTTL
	}
	rl := &RateLimiter{
		config:  config,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}

	go rl.sweep()

	return rl
}

// Check records an attempt for the identifier and reports whether it is
// allowed. The 6th attempt inside the window starts the cool-down; every
// attempt during the cool-down is denied with BlockedUntil set.
func (rl *RateLimiter) Check(identifier string) Status {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.entries[identifier]

	// An entry past its cool-down, or past its window, restarts fresh.
	if exists {
		if entry.blockedUntil != nil && !now.Before(*entry.blockedUntil) {
			exists = false
		} else if entry.blockedUntil == nil && now.Sub(entry.firstAttempt) > rl.config.Window {
			exists = false
		}
	}

	if !exists {
		rl.entries[identifier] = &rateLimitEntry{count: 1, firstAttempt: now}
		reset := now.Add(rl.config.Window)
		return Status{Allowed: true, Remaining: rl.config.MaxAttempts - 1, ResetAt: &reset}
	}

	if entry.blockedUntil != nil {
		metrics.RateLimitBlocks.Inc()
		blocked := *entry.blockedUntil
		return Status{Allowed: false, Remaining: 0, BlockedUntil: &blocked}
	}

	entry.count++
	reset := entry.firstAttempt.Add(rl.config.Window)

	if entry.count > rl.config.MaxAttempts {
		blocked := now.Add(rl.config.BlockDuration)
		entry.blockedUntil = &blocked
		metrics.RateLimitBlocks.Inc()
		rl.logger.Warn("identifier blocked by rate limiter",
			"identifier", identifier,
			"attempts", entry.count,
			"blocked_until", blocked,
		)
		return Status{Allowed: false, Remaining: 0, BlockedUntil: &blocked}
	}

	return Status{Allowed: true, Remaining: rl.config.MaxAttempts - entry.count, ResetAt: &reset}
}

// Status reports the identifier's current state without recording an
// attempt.
func (rl *RateLimiter) Status(identifier string) Status {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.entries[identifier]
	if !exists {
		return Status{Allowed: true, Remaining: rl.config.MaxAttempts}
	}

	if entry.blockedUntil != nil {
		if now.Before(*entry.blockedUntil) {
			blocked := *entry.blockedUntil
			return Status{Allowed: false, Remaining: 0, BlockedUntil: &blocked}
		}
		return Status{Allowed: true, Remaining: rl.config.MaxAttempts}
	}

	if now.Sub(entry.firstAttempt) > rl.config.Window {
		return Status{Allowed: true, Remaining: rl.config.MaxAttempts}
	}

	remaining := rl.config.MaxAttempts - entry.count
	if remaining < 0 {
		remaining = 0
	}
	reset := entry.firstAttempt.Add(rl.config.Window)
	return Status{Allowed: remaining > 0, Remaining: remaining, ResetAt: &reset}
}

// Reset clears the identifier's accumulated attempts. Called on
// successful authentication so a legitimate login does not carry failed
// attempts into the next window.
func (rl *RateLimiter) Reset(identifier string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, identifier)
}

// Close stops the background sweep.
func (rl *RateLimiter) Close() {
	close(rl.stopCh)
}

// sweep periodically removes entries idle longer than EntryTTL.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.config.EntryTTL)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, entry := range rl.entries {
				if now.Sub(entry.firstAttempt) > rl.config.EntryTTL {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// RateLimitMiddleware wraps a rate limiter for use as HTTP middleware on
// the authentication endpoints.
type RateLimitMiddleware struct {
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware.
func NewRateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit returns middleware that rate limits requests by client IP.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)

		status := m.limiter.Check(clientIP)
		if !status.Allowed {
			m.logger.Warn("rate limit exceeded",
				"ip", clientIP,
				"path", r.URL.Path,
				"method", r.Method,
			)

			retryAfter := 1
			if status.BlockedUntil != nil {
				if secs := int(time.Until(*status.BlockedUntil).Seconds()); secs > retryAfter {
					retryAfter = secs
				}
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)

			body := map[string]string{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please try again later.",
			}
			if status.BlockedUntil != nil {
				body["blocked_until"] = status.BlockedUntil.Format(time.RFC3339)
			}
			_ = json.NewEncoder(w).Encode(body)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2.
	// The first one is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if clientIP != "" {
				return clientIP
			}
		}
	}

	// X-Real-IP (nginx)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}

	return ip
}
