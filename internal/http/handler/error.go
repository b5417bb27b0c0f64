package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"filemeta/internal/http/middleware"
)

// errorPayload is the body of every non-2xx JSON response.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusCodes maps the statuses Fiber raises on its own to envelope codes.
// Anything else is reported as INTERNAL_ERROR.
var statusCodes = map[int]errorEnvelope{
	fiber.StatusBadRequest:            {Code: "BAD_REQUEST", Message: "bad request"},
	fiber.StatusNotFound:              {Code: "NOT_FOUND", Message: "resource not found"},
	fiber.StatusMethodNotAllowed:      {Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"},
	fiber.StatusRequestEntityTooLarge: {Code: "PAYLOAD_TOO_LARGE", Message: "request body too large"},
	fiber.StatusServiceUnavailable:    {Code: "SERVICE_UNAVAILABLE", Message: "service unavailable"},
}

var internalError = errorEnvelope{Code: "INTERNAL_ERROR", Message: "internal server error"}

func requestIDFromCtx(c *fiber.Ctx) string {
	s, _ := c.Locals(middleware.RequestIDLocalKey).(string)
	return s
}

// writeError sends the envelope with status. message must be safe to show a client.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error:     errorEnvelope{Code: code, Message: message},
	})
}

// ErrorHandler renders errors that escape a route (unknown routes, wrong
// methods, oversized bodies, panics recovered upstream) in the files API
// envelope. The status comes from a *fiber.Error anywhere in the chain; any
// other error is a 500 and its text is never sent.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		env, ok := statusCodes[status]
		if !ok {
			env = internalError
		}
		return writeError(c, status, env.Code, env.Message)
	}
}
