package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/unisphere-campus/server/internal/api/middleware"
	"github.com/unisphere-campus/server/internal/api/problem"
)

var (
	errEmptyBody   = errors.New("request body is empty")
	errBodyTooBig  = errors.New("request body too large")
	errInvalidBody = errors.New("request body is not valid JSON")
)

// MessageResponse is the body of endpoints that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// readBody reads the whole request body, honouring the MaxBytesReader set by
// the RequestSize middleware.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, errEmptyBody
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errBodyTooBig
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyBody
	}
	return data, nil
}

func decodeJSON(r *http.Request, dst any) error {
	data, err := readBody(r)
	if err != nil {
		return err
	}
	return unmarshalBody(data, dst)
}

func unmarshalBody(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return fmt.Errorf("%w: field %s must be %s", errInvalidBody, typeErr.Field, typeErr.Type)
		}
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func writeBodyError(w http.ResponseWriter, r *http.Request, err error, env string) {
	if errors.Is(err, errBodyTooBig) {
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TypeTooLarge, "Request body too large", err, env)
		return
	}
	problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request body", err, env)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

// requireID writes a 400 and reports false when the path id is malformed.
func requireID(w http.ResponseWriter, r *http.Request, env string) (int64, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid id", err, env)
		return 0, false
	}
	return id, true
}

// requireUser returns the caller's id. Routes behind RequireAuth always
// have one.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		problem.WriteProblem(w, problem.ProblemDetails{
			Type:     problem.TypeUnauthorized,
			Title:    "Unauthorized",
			Status:   http.StatusUnauthorized,
			Detail:   "Could not validate credentials",
			Instance: r.URL.Path,
		})
		return 0, false
	}
	return userID, true
}

func serverError(w http.ResponseWriter, r *http.Request, err error, env string) {
	problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, env)
}
