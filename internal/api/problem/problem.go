package problem

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/problem+json"

const typeBase = "https://unisphere.campus/problems/"

// Problem type URIs shared by every handler.
const (
	TypeValidation   = typeBase + "validation-error"
	TypeNotFound     = typeBase + "not-found"
	TypeConflict     = typeBase + "conflict"
	TypeUnauthorized = typeBase + "unauthorized"
	TypeForbidden    = typeBase + "forbidden"
	TypeRateLimited  = typeBase + "rate-limited"
	TypeTooLarge     = typeBase + "payload-too-large"
	TypeServerError  = typeBase + "server-error"
)

type ProblemDetails struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Status   int            `json:"status"`
	Detail   string         `json:"detail,omitempty"`
	Instance string         `json:"instance,omitempty"`
	Errors   map[string]any `json:"errors,omitempty"`
}

type Option func(*ProblemDetails)

func WithDetail(detail string) Option {
	return func(p *ProblemDetails) {
		p.Detail = detail
	}
}

// WithFieldError attaches a single field message under "errors".
func WithFieldError(field, message string) Option {
	return func(p *ProblemDetails) {
		if field == "" {
			return
		}
		if p.Errors == nil {
			p.Errors = map[string]any{}
		}
		p.Errors[field] = message
	}
}

// Write renders an RFC 7807 response. Client errors carry err's message as
// the detail; server error detail is only exposed in development and test.
func Write(w http.ResponseWriter, r *http.Request, status int, typ, title string, err error, env string, opts ...Option) {
	problem := ProblemDetails{
		Type:   typ,
		Title:  title,
		Status: status,
	}

	for _, opt := range opts {
		opt(&problem)
	}

	if problem.Detail == "" && err != nil {
		if status < 500 || env == "development" || env == "test" {
			problem.Detail = err.Error()
		} else {
			problem.Detail = http.StatusText(status)
		}
	}

	if r != nil {
		problem.Instance = r.URL.Path
		logger := zerolog.Ctx(r.Context())
		switch {
		case err != nil && status >= 500:
			logger.Error().Err(err).Int("status", status).Str("type", typ).
				Str("path", r.URL.Path).Str("method", r.Method).Msg(title)
		case err != nil && status >= 400:
			logger.Warn().Err(err).Int("status", status).Str("type", typ).
				Str("path", r.URL.Path).Str("method", r.Method).Msg(title)
		}
	}

	WriteProblem(w, problem)
}

func WriteProblem(w http.ResponseWriter, problem ProblemDetails) {
	payload, err := json.Marshal(problem)
	if err != nil {
		fallback := fmt.Sprintf(`{"type":"about:blank","title":%q,"status":500}`, http.StatusText(http.StatusInternalServerError))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallback))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(problem.Status)
	_, _ = w.Write(payload)
}
