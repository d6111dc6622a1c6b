package serverutils

import "github.com/gofiber/fiber/v2"

// AppError is the service-level error carried up to the HTTP boundary, where
// the error handler middleware turns it into a response body. Anything that is
// not an AppError is converted to a generic internal error so no detail leaks.
type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(status int, code, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

func ErrInvalidInput(message string) *AppError {
	return NewAppError(fiber.StatusBadRequest, "invalid_input", message)
}

func ErrUnauthorized(message string) *AppError {
	return NewAppError(fiber.StatusForbidden, "unauthorized", message)
}

func ErrNotFound(message string) *AppError {
	return NewAppError(fiber.StatusNotFound, "not_found", message)
}

// ErrRateLimited signals the per-visitor or per-IP limiter rejected the call.
func ErrRateLimited(message string) *AppError {
	return NewAppError(fiber.StatusTooManyRequests, "rate_limited", message)
}

// ErrBusy signals the global limiter rejected the call (system overload).
func ErrBusy(message string) *AppError {
	return NewAppError(fiber.StatusServiceUnavailable, "busy", message)
}
