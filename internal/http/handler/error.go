package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"clinicfiles/internal/http/middleware"
	"clinicfiles/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Set for lifecycle failures that may have left a side effect; clients must
	// re-read the file before retrying.
	PartialEffect bool                  `json:"partial_effect,omitempty"`
	Compensation  *service.Compensation `json:"compensation,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	})
}

// writeServiceError maps a lifecycle error kind to its HTTP status and error code.
func writeServiceError(c *fiber.Ctx, err error) error {
	var se *service.Error
	if !errors.As(err, &se) {
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}

	env := errorEnvelope{
		PartialEffect: se.PartialEffect(),
		Compensation:  se.Compensation,
	}
	status := fiber.StatusInternalServerError
	switch se.Kind {
	case service.KindValidation:
		status, env.Code, env.Message = fiber.StatusBadRequest, "VALIDATION_FAILED", "invalid input"
		if se.Err != nil {
			env.Message = se.Err.Error()
		}
	case service.KindNotFound:
		status, env.Code, env.Message = fiber.StatusNotFound, "NOT_FOUND", "file not found"
	case service.KindInvalidTransition:
		status, env.Code, env.Message = fiber.StatusConflict, "INVALID_STATE_TRANSITION", "operation not allowed in the file's current state"
	case service.KindBlobOperation:
		status, env.Code, env.Message = fiber.StatusBadGateway, "BLOB_OPERATION_FAILED", "file storage operation failed"
	case service.KindMetadataWrite:
		env.Code, env.Message = "METADATA_WRITE_FAILED", "file metadata could not be saved"
	default:
		env.Code, env.Message = "INTERNAL_ERROR", "internal server error"
	}

	return c.Status(status).JSON(errorPayload{RequestID: requestIDFromCtx(c), Error: env})
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "authentication required")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "payload too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
