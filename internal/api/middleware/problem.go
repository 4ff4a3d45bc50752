package middleware

import (
	"net/http"

	"github.com/unisphere-campus/server/internal/api/problem"
)

var problemTypes = map[int]string{
	http.StatusUnauthorized:          problem.TypeUnauthorized,
	http.StatusForbidden:             problem.TypeForbidden,
	http.StatusTooManyRequests:       problem.TypeRateLimited,
	http.StatusRequestEntityTooLarge: problem.TypeTooLarge,
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	typ, ok := problemTypes[status]
	if !ok {
		typ = problem.TypeServerError
	}
	problem.WriteProblem(w, problem.ProblemDetails{
		Type:     typ,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}
