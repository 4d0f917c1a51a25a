package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// ErrorBody is the JSON envelope returned for failed requests.
type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

// ErrorPayload carries the public part of an error.
type ErrorPayload struct {
	TextCode   string            `json:"text_code,omitempty"`
	Message    string            `json:"message"`
	Validation map[string]string `json:"validation,omitempty"`
}

// PublicError maps err to an HTTP status and the public error it is allowed
// to expose. Causes recorded in metadata stay out of the payload.
func PublicError(err error) (int, ErrorPayload) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr == nil {
		return http.StatusInternalServerError, ErrorPayload{
			TextCode: TextCodeAuthUnavailable,
			Message:  "An unexpected server error occurred",
		}
	}

	status := richErr.Code
	if status < 400 || status > 599 {
		status = statusForCategory(richErr.Category)
	}

	return status, ErrorPayload{
		TextCode: richErr.TextCode,
		Message:  richErr.Message,
	}
}

func statusForCategory(cat errors.Category) int {
	switch cat {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryBadInput, errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as an ErrorBody and logs the internal details.
func WriteError(c *fiber.Ctx, logger Logger, err error) error {
	status, payload := PublicError(err)

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr != nil {
		logger = normalizeLogger(logger)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"path", c.Path(),
				"text_code", richErr.TextCode,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		} else {
			logger.Debug("request rejected", "path", c.Path(), "text_code", richErr.TextCode)
		}
	} else {
		normalizeLogger(logger).Error("request failed", "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(ErrorBody{Error: payload})
}
