package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/unisphere-campus/server/internal/config"
)

var corsHeaders = [][2]string{
	{"Access-Control-Allow-Credentials", "true"},
	{"Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS"},
	{"Access-Control-Allow-Headers", "Authorization, Content-Type, Accept, X-Request-ID"},
	{"Access-Control-Expose-Headers", "X-Request-ID, Retry-After"},
	{"Access-Control-Max-Age", "86400"},
}

func normalizeOrigin(origin string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(origin)), "/")
}

// originPolicy holds the normalised allow-list built once per router.
type originPolicy struct {
	any     bool
	allowed map[string]bool
}

func newOriginPolicy(cfg config.CORSConfig) originPolicy {
	policy := originPolicy{any: cfg.AllowAllOrigins, allowed: map[string]bool{}}
	for _, origin := range cfg.AllowedOrigins {
		origin = normalizeOrigin(origin)
		if origin == "*" {
			policy.any = true
		}
		policy.allowed[origin] = true
	}
	return policy
}

func (p originPolicy) permits(origin string) bool {
	return p.any || p.allowed[normalizeOrigin(origin)]
}

// CORS sets the allow headers for permitted origins, echoing the request
// origin. Preflights are answered here: 204 when permitted, 403 otherwise.
func CORS(cfg config.CORSConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	policy := newOriginPolicy(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := w.Header()
			header.Add("Vary", "Origin")
			permitted := policy.permits(origin)
			if permitted {
				header.Set("Access-Control-Allow-Origin", origin)
				for _, kv := range corsHeaders {
					header.Set(kv[0], kv[1])
				}
			} else {
				logger.Warn().Str("origin", origin).Str("method", r.Method).Str("path", r.URL.Path).Msg("origin not allowed")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if permitted {
					w.WriteHeader(http.StatusNoContent)
				} else {
					w.WriteHeader(http.StatusForbidden)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
