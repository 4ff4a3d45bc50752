package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/unisphere-campus/server/internal/auth"
	"github.com/unisphere-campus/server/internal/config"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierPublic        RateLimitTier = "public"
	TierAuthenticated RateLimitTier = "authenticated"
	TierAdmin         RateLimitTier = "admin"
	// TierLogin allows a burst of LoginPer15Minutes attempts, refilled evenly
	// over 15 minutes.
	TierLogin RateLimitTier = "login"
)

const (
	limiterTTL      = 15 * time.Minute
	cleanupInterval = 5 * time.Minute
	loginWindow     = 15 * time.Minute
)

// RateLimiter keeps one token bucket per tier and client key.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	perMinute map[RateLimitTier]int
	login     int
	trusted   []*net.IPNet
	stop      chan struct{}
	stopOnce  sync.Once
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter starts the idle-entry cleanup goroutine; call Stop on
// shutdown. A tier with a non-positive limit is unlimited.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		perMinute: map[RateLimitTier]int{
			TierPublic:        cfg.PublicPerMinute,
			TierAuthenticated: cfg.AuthenticatedPerMinute,
			TierAdmin:         cfg.AdminPerMinute,
		},
		login:   cfg.LoginPer15Minutes,
		trusted: parseCIDRs(cfg.TrustedProxyCIDRs),
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	go rl.cleanupLoop()
	return rl
}

// Limit applies a fixed tier, keyed by client IP.
func (rl *RateLimiter) Limit(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(tier, clientIP(r, rl.trusted)) {
				rl.reject(w, r, tier)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LimitByRole picks the authenticated or admin tier from the claims set by
// RequireAuth and keys the bucket by user id.
func (rl *RateLimiter) LimitByRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tier := TierPublic
		key := clientIP(r, rl.trusted)
		if claims := ClaimsFromContext(r.Context()); claims != nil {
			tier = TierAuthenticated
			if auth.IsAdmin(claims.Role) {
				tier = TierAdmin
			}
			key = "user:" + claims.Subject
		}
		if !rl.allow(tier, key) {
			rl.reject(w, r, tier)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) reject(w http.ResponseWriter, r *http.Request, tier RateLimitTier) {
	retryAfter := time.Minute
	if tier == TierLogin && rl.login > 0 {
		retryAfter = loginWindow / time.Duration(rl.login)
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	LoggerFromContext(r.Context()).Warn().Str("tier", string(tier)).Msg("rate limit exceeded")
	writeProblem(w, r, http.StatusTooManyRequests, "Too many requests")
}

func (rl *RateLimiter) allow(tier RateLimitTier, key string) bool {
	limiter := rl.limiter(tier, key)
	return limiter == nil || limiter.Allow()
}

func (rl *RateLimiter) limiter(tier RateLimitTier, key string) *rate.Limiter {
	var limiter *rate.Limiter
	lookup := string(tier) + ":" + key

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, ok := rl.limiters[lookup]; ok {
		entry.lastSeen = rl.now()
		return entry.limiter
	}

	switch tier {
	case TierLogin:
		if rl.login <= 0 {
			return nil
		}
		limiter = rate.NewLimiter(rate.Every(loginWindow/time.Duration(rl.login)), rl.login)
	default:
		limit := rl.perMinute[tier]
		if limit <= 0 {
			return nil
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), limit)
	}

	rl.limiters[lookup] = &limiterEntry{limiter: limiter, lastSeen: rl.now()}
	return limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	current := rl.now()
	for key, entry := range rl.limiters {
		if current.Sub(entry.lastSeen) > limiterTTL {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// clientIP only trusts X-Forwarded-For and X-Real-IP when the direct peer is
// a configured proxy.
func clientIP(r *http.Request, trusted []*net.IPNet) string {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if !containsIP(trusted, remote) {
		return remote
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	return remote
}

func parseCIDRs(values []string) []*net.IPNet {
	var out []*net.IPNet
	for _, value := range values {
		_, cidr, err := net.ParseCIDR(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		out = append(out, cidr)
	}
	return out
}

func containsIP(nets []*net.IPNet, ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}
