package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/unisphere-campus/server/internal/api/handlers"
	"github.com/unisphere-campus/server/internal/api/middleware"
	"github.com/unisphere-campus/server/internal/audit"
	"github.com/unisphere-campus/server/internal/config"
	"github.com/unisphere-campus/server/internal/metrics"
)

// Dependencies are the services the HTTP layer is built on. Notifier and
// Jobs may be nil.
type Dependencies struct {
	Config        config.Config
	Logger        zerolog.Logger
	Build         BuildInfo
	Authenticator middleware.Authenticator
	Auth          handlers.AuthService
	Events        handlers.EventService
	Notifier      handlers.RegistrationNotifier
	Announcements handlers.AnnouncementService
	Places        handlers.PlaceService
	Health        handlers.HealthSource
	Jobs          handlers.JobQueue
}

// Router is the assembled HTTP handler plus the background state it owns.
type Router struct {
	Handler     http.Handler
	RateLimiter *middleware.RateLimiter
}

// Close stops the rate limiter cleanup goroutine.
func (r *Router) Close() {
	if r.RateLimiter != nil {
		r.RateLimiter.Stop()
	}
}

func NewRouter(deps Dependencies) *Router {
	cfg := deps.Config
	env := cfg.Environment
	auditLogger := audit.NewLogger(deps.Logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimit)

	authHandler := handlers.NewAuthHandler(deps.Auth, env)
	eventsHandler := handlers.NewEventsHandler(deps.Events, deps.Notifier, auditLogger, env)
	announcementsHandler := handlers.NewAnnouncementsHandler(deps.Announcements, auditLogger, env)
	placesHandler := handlers.NewPlacesHandler(deps.Places, env)
	health := handlers.NewHealthChecker(deps.Health, deps.Jobs, deps.Build.Version, deps.Build.GitCommit)

	requireAuth := middleware.RequireAuth(deps.Authenticator)
	public := func(h http.HandlerFunc) http.Handler {
		return limiter.Limit(middleware.TierPublic)(h)
	}
	user := func(h http.HandlerFunc) http.Handler {
		return requireAuth(limiter.LimitByRole(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return requireAuth(limiter.LimitByRole(middleware.RequireAdmin(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", health.Health())
	mux.Handle("GET /healthz", handlers.Healthz())
	mux.Handle("GET /readyz", handlers.Readyz(deps.Health))
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("GET /version", VersionHandler(deps.Build))
	mux.Handle("GET /api/v1/openapi.json", OpenAPIHandler())

	mux.Handle("POST /api/v1/auth/register", public(authHandler.Register))
	mux.Handle("POST /api/v1/auth/login", limiter.Limit(middleware.TierLogin)(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/v1/auth/refresh", public(authHandler.Refresh))
	mux.Handle("POST /api/v1/auth/logout", user(authHandler.Logout))
	mux.Handle("GET /api/v1/auth/me", user(authHandler.Me))
	mux.Handle("/api/v1/auth/profile", methodMux(map[string]http.Handler{
		http.MethodGet: user(authHandler.Me),
		http.MethodPut: user(authHandler.UpdateProfile),
	}))
	mux.Handle("GET /api/v1/auth/education-options", public(authHandler.EducationOptions))

	eventsCollection := methodMux(map[string]http.Handler{
		http.MethodGet:  user(eventsHandler.List),
		http.MethodPost: admin(eventsHandler.Create),
	})
	mux.Handle("/api/v1/events", eventsCollection)
	mux.Handle("/api/v1/events/{$}", eventsCollection)
	mux.Handle("/api/v1/events/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    user(eventsHandler.Get),
		http.MethodPut:    admin(eventsHandler.Update),
		http.MethodPatch:  admin(eventsHandler.Update),
		http.MethodDelete: admin(eventsHandler.Delete),
	}))
	mux.Handle("/api/v1/events/{id}/register", methodMux(map[string]http.Handler{
		http.MethodPost:   user(eventsHandler.Register),
		http.MethodDelete: user(eventsHandler.Unregister),
	}))
	mux.Handle("GET /api/v1/events/{id}/registrations", admin(eventsHandler.Registrations))
	mux.Handle("POST /api/v1/events/{id}/sync-registration-count", admin(eventsHandler.SyncCount))
	mux.Handle("POST /api/v1/events/sync-all-registration-counts", admin(eventsHandler.SyncAll))

	announcementsCollection := methodMux(map[string]http.Handler{
		http.MethodGet:  user(announcementsHandler.List),
		http.MethodPost: admin(announcementsHandler.Create),
	})
	mux.Handle("/api/v1/announcements", announcementsCollection)
	mux.Handle("/api/v1/announcements/{$}", announcementsCollection)
	mux.Handle("/api/v1/announcements/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    user(announcementsHandler.Get),
		http.MethodPut:    admin(announcementsHandler.Update),
		http.MethodDelete: admin(announcementsHandler.Delete),
	}))
	mux.Handle("GET /api/v1/announcements/category/{category}", user(announcementsHandler.ByCategory))
	mux.Handle("GET /api/v1/announcements/priority/high", user(announcementsHandler.HighPriority))

	placesCollection := methodMux(map[string]http.Handler{
		http.MethodGet:  user(placesHandler.List),
		http.MethodPost: user(placesHandler.Create),
	})
	mux.Handle("/api/v1/user-places", placesCollection)
	mux.Handle("/api/v1/user-places/{$}", placesCollection)
	mux.Handle("/api/v1/user-places/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    user(placesHandler.Get),
		http.MethodPatch:  user(placesHandler.Update),
		http.MethodDelete: user(placesHandler.Delete),
	}))

	var handler http.Handler = mux
	handler = middleware.RequestSize(middleware.DefaultMaxBodySize)(handler)
	handler = middleware.CORS(cfg.CORS, deps.Logger)(handler)
	handler = middleware.SecurityHeaders(env == "production")(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging()(handler)
	handler = middleware.CorrelationID(deps.Logger)(handler)
	handler = middleware.Tracing(handler)

	return &Router{Handler: handler, RateLimiter: limiter}
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
