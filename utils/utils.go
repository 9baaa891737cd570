package utils

import (
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var eventLog = logrus.New()

// Error codes shared across handlers.
const (
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeAccessDenied  = "ACCESS_DENIED"
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidUUID   = "INVALID_UUID"
	CodeInvalidBody   = "INVALID_BODY"
	CodeInternalError = "INTERNAL_ERROR"
)

// ErrorResponse writes the standard {error, code} failure body.
func ErrorResponse(c *fiber.Ctx, status int, message, code string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

// InternalError reports err to Sentry and the event log, and returns a
// generic 500 body. Raw error text is never echoed to the caller.
func InternalError(c *fiber.Ctx, err error) error {
	sentry.CaptureException(err)
	LogEvent("internal_error", map[string]interface{}{
		"path":  c.Path(),
		"error": err.Error(),
	})
	return ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", CodeInternalError)
}

// LogEvent logs a structured event.
func LogEvent(eventType string, data map[string]interface{}) {
	eventLog.WithFields(logrus.Fields(data)).Info(eventType)
}

// ParseLimitOffset extracts pagination params: limit defaults to 10 and
// is clamped to 100, offset defaults to 0.
func ParseLimitOffset(c *fiber.Ctx) (int, int) {
	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// GenerateRateLimitKey creates a unique key for rate limiting
func GenerateRateLimitKey(ip, path string) string {
	return "rl:" + ip + ":" + path
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}
