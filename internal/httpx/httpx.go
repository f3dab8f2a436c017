package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/coaltail/rhythmlink-backend/internal/apperr"
	"github.com/gofiber/fiber/v2"
)

type ErrorResponse struct {
	Error     string              `json:"error"`
	Code      string              `json:"code,omitempty"`
	Fields    []apperr.FieldError `json:"fields,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:         fiber.StatusBadRequest,
	apperr.KindInvalidCredentials: fiber.StatusUnauthorized,
	apperr.KindUnauthorized:       fiber.StatusUnauthorized,
	apperr.KindForbidden:          fiber.StatusForbidden,
	apperr.KindNotFound:           fiber.StatusNotFound,
	apperr.KindAlreadyExists:      fiber.StatusConflict,
	apperr.KindInternal:           fiber.StatusInternalServerError,
}

// StatusFor returns the HTTP status for an error kind.
func StatusFor(kind apperr.Kind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

func requestID(c *fiber.Ctx) string {
	if v := c.Locals("requestid"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func Error(c *fiber.Ctx, status int, code string, message string) error {
	if message == "" {
		message = "Request failed"
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(c),
	})
}

// FromError writes the response for an error returned by a service. Internal
// errors are logged and answered with a generic message.
func FromError(c *fiber.Ctx, err error) error {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperr.KindInternal {
		slog.Error("http: request failed",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", requestID(c),
			"error", err,
		)
		return Internal(c, string(apperr.KindInternal))
	}

	return c.Status(StatusFor(appErr.Kind)).JSON(ErrorResponse{
		Error:     appErr.Message,
		Code:      string(appErr.Kind),
		Fields:    appErr.Fields,
		RequestID: requestID(c),
	})
}

// ErrorHandler is the fiber error handler: framework errors keep their status,
// everything else goes through FromError.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return Error(c, fe.Code, "", fe.Message)
	}
	return FromError(c, err)
}

func Unauthorized(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusUnauthorized, code, message)
}

func Forbidden(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusForbidden, code, message)
}

func Internal(c *fiber.Ctx, code string) error {
	return Error(c, fiber.StatusInternalServerError, code, "Internal server error")
}

func LocalUint(c *fiber.Ctx, key string) (uint, error) {
	v := c.Locals(key)
	if v == nil {
		return 0, fmt.Errorf("missing local %s", key)
	}
	u, ok := v.(uint)
	if !ok {
		return 0, fmt.Errorf("invalid local %s", key)
	}
	return u, nil
}

// ParamUint parses a positive numeric route parameter.
func ParamUint(c *fiber.Ctx, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Params(name), 10, 0)
	if err != nil || n == 0 {
		return 0, apperr.Validation("invalid path parameter", apperr.FieldError{
			Field:   name,
			Message: name + " must be a positive integer",
		})
	}
	return uint(n), nil
}
