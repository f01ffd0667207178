package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
)

var registerErrorHandler sync.Once

// RegisterErrorHandler makes huma report its own errors (request decoding,
// schema validation, panics) in the same {code, message, errors} shape as
// domain errors. Domain errors returned from handlers are already
// huma.StatusError values and are written unchanged.
func RegisterErrorHandler() {
	registerErrorHandler.Do(func() {
		huma.NewError = newError
	})
}

func newError(status int, message string, errs ...error) huma.StatusError {
	var fields []domainerrors.FieldError
	for _, err := range errs {
		if err == nil {
			continue
		}
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return domainErr
		}
		var detail *huma.ErrorDetail
		if errors.As(err, &detail) {
			fields = append(fields, domainerrors.FieldError{
				Field:   fieldName(detail.Location),
				Message: detail.Message,
			})
		}
	}

	code := statusToCode(status)
	if code == domainerrors.CodeInternal {
		// Never echo internal failure text to clients.
		message = domainerrors.ErrInternal.Message
	}
	if code == domainerrors.CodeValidation && len(fields) > 0 {
		return domainerrors.ValidationWithFields(message, fields)
	}
	return &domainerrors.Error{Code: code, Message: message}
}

// fieldName strips huma's location prefix: "body.title" becomes "title",
// "query.q" becomes "q".
func fieldName(location string) string {
	for _, prefix := range []string{"body.", "query.", "path.", "header."} {
		if rest, ok := strings.CutPrefix(location, prefix); ok {
			return rest
		}
	}
	return location
}

// statusToCode maps HTTP status codes to our domain error codes.
func statusToCode(status int) domainerrors.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge,
		http.StatusUnsupportedMediaType, http.StatusMethodNotAllowed:
		return domainerrors.CodeValidation
	case http.StatusUnauthorized:
		return domainerrors.CodeUnauthenticated
	case http.StatusForbidden:
		return domainerrors.CodeForbidden
	case http.StatusNotFound:
		return domainerrors.CodeNotFound
	case http.StatusTooManyRequests:
		return domainerrors.CodeRateLimited
	case http.StatusServiceUnavailable:
		return domainerrors.CodeBackendUnavailable
	default:
		if status >= 400 && status < 500 {
			return domainerrors.CodeValidation
		}
		return domainerrors.CodeInternal
	}
}
