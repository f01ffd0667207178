// Package response writes JSON responses from plain net/http handlers and
// middleware that run outside the huma API, such as the rate limiter and the
// router's fallback handlers. Bodies match the shape huma operations produce.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
)

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil && logger != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// Error writes err as a coded error body. Errors without a code become an
// opaque 500.
func Error(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *domainerrors.Error
	if !domainerrors.As(err, &domainErr) {
		if logger != nil {
			logger.Error("unhandled error", slog.Any("error", err))
		}
		domainErr = domainerrors.ErrInternal
	}
	JSON(w, domainErr.HTTPStatus(), domainErr, logger)
}

// TooManyRequests writes a 429 with a Retry-After hint in seconds.
func TooManyRequests(w http.ResponseWriter, retryAfter string, logger *slog.Logger) {
	if retryAfter != "" {
		w.Header().Set("Retry-After", retryAfter)
	}
	Error(w, domainerrors.ErrRateLimited, logger)
}

// NotFound writes a 404 for unrouted paths.
func NotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, domainerrors.NotFoundf("no route for %s", r.URL.Path), nil)
}

// MethodNotAllowed writes a 405 for routed paths with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusMethodNotAllowed, domainerrors.Error{
		Code:    domainerrors.CodeValidation,
		Message: r.Method + " is not allowed on " + r.URL.Path,
	}, nil)
}
