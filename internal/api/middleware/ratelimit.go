package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/relayworks/server/internal/config"
)

type RateLimitTier string

const (
	TierAPI  RateLimitTier = "api"
	TierAuth RateLimitTier = "auth"
)

// tierFor puts credential endpoints on the stricter auth budget. The tier
// is decided from the path here because this middleware runs before the
// mux routes the request.
func tierFor(path string) RateLimitTier {
	if strings.HasPrefix(path, "/api/v1/auth/") {
		return TierAuth
	}
	return TierAPI
}

func RateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	store := newLimiterStore(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := store.limiter(tierFor(r.URL.Path), clientKey(r))
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow() {
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMinute map[RateLimitTier]int
	lastSweep time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterStore(cfg config.RateLimitConfig) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*limiterEntry),
		perMinute: map[RateLimitTier]int{
			TierAPI:  cfg.APIPerMinute,
			TierAuth: cfg.AuthPerMinute,
		},
		lastSweep: time.Now(),
	}
}

func (s *limiterStore) limiter(tier RateLimitTier, key string) *rate.Limiter {
	limit := s.perMinute[tier]
	if limit <= 0 {
		return nil
	}

	lookup := string(tier) + ":" + key
	if key == "" {
		lookup = string(tier)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.sweepLocked(now)

	if entry, ok := s.limiters[lookup]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	interval := time.Minute / time.Duration(limit)
	limiter := rate.NewLimiter(rate.Every(interval), limit)

	s.limiters[lookup] = &limiterEntry{
		limiter:  limiter,
		lastSeen: now,
	}
	return limiter
}

// sweepLocked evicts limiter entries not seen in 15 minutes so the map
// stays bounded. Caller holds s.mu. The sweep piggybacks on lookups, so
// no background goroutine is needed.
func (s *limiterStore) sweepLocked(now time.Time) {
	const (
		sweepEvery = 5 * time.Minute
		entryTTL   = 15 * time.Minute
	)

	if now.Sub(s.lastSweep) < sweepEvery {
		return
	}
	s.lastSweep = now

	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > entryTTL {
			delete(s.limiters, key)
		}
	}
}

func clientKey(r *http.Request) string {
	if r == nil {
		return ""
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return strings.TrimSpace(host)
	}
	return r.RemoteAddr
}
