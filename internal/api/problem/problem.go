package problem

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/problem+json"

// Machine-readable error codes carried in the "code" member. Clients
// branch on these, not on titles.
const (
	CodeTokenExpired        = "AUTH_TOKEN_EXPIRED"
	CodeTokenInvalid        = "AUTH_TOKEN_INVALID"
	CodeTokenMissing        = "AUTH_TOKEN_MISSING"
	CodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeEmailUnverified     = "EMAIL_UNVERIFIED"
	CodeNotFound            = "NOT_FOUND"
	CodeValidation          = "VALIDATION_FAILED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
)

type ProblemDetails struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Status   int            `json:"status"`
	Code     string         `json:"code,omitempty"`
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

func WithErrors(errs map[string]any) Option {
	return func(p *ProblemDetails) {
		p.Errors = errs
	}
}

func Write(w http.ResponseWriter, r *http.Request, status int, code, title string, err error, env string, opts ...Option) {
	problem := ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Code:   code,
	}

	for _, opt := range opts {
		opt(&problem)
	}

	if problem.Detail == "" && err != nil {
		if env == "development" || env == "test" {
			problem.Detail = err.Error()
		} else {
			problem.Detail = http.StatusText(status)
		}
	}

	if problem.Instance == "" && r != nil {
		problem.Instance = r.URL.Path
	}

	if err != nil && status >= 500 {
		logger := zerolog.Ctx(r.Context())
		logger.Error().
			Err(err).
			Int("status", status).
			Str("code", code).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(title)
	} else if err != nil && status >= 400 {
		logger := zerolog.Ctx(r.Context())
		logger.Warn().
			Err(err).
			Int("status", status).
			Str("code", code).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(title)
	}

	WriteProblem(w, problem)
}

func WriteProblem(w http.ResponseWriter, problem ProblemDetails) {
	payload, err := json.Marshal(problem)
	if err != nil {
		fallback := fmt.Sprintf("{\"type\":\"about:blank\",\"title\":\"%s\",\"status\":500}", http.StatusText(http.StatusInternalServerError))
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallback))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(problem.Status)
	_, _ = w.Write(payload)
}
