package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeNotFound           = "NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeConflict           = "CONFLICT"
	CodeBlockedUser        = "BLOCKED_USER"
	CodeIntegrityViolation = "INTEGRITY_VIOLATION"
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
	}
}

func NewBlockedUserError(message string) *AppError {
	return &AppError{
		Code:    CodeBlockedUser,
		Message: message,
	}
}

func NewIntegrityError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeIntegrityViolation,
		Message: message,
		Err:     err,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// IsCode reports whether err is an AppError carrying code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// HTTPStatus maps an error code to its response status.
func HTTPStatus(code string) int {
	switch code {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeForbidden, CodeBlockedUser:
		return fiber.StatusForbidden
	case CodeConflict:
		return fiber.StatusConflict
	case CodeValidation, CodeIntegrityViolation:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// Response is the envelope every API response is written in.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// exposeErrorDetail controls whether wrapped causes reach clients.
var exposeErrorDetail = true

// SetErrorDetail toggles diagnostic detail in error responses. Disable it in production.
func SetErrorDetail(enabled bool) {
	exposeErrorDetail = enabled
}

// RespondWithError writes err in the response envelope. A zero status is
// derived from the error code.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = NewInternalError(err)
	}
	if status == 0 {
		status = HTTPStatus(appErr.Code)
	}

	response := Response{
		Success: false,
		Message: appErr.Message,
		Code:    appErr.Code,
	}
	if exposeErrorDetail && appErr.Err != nil {
		response.Error = appErr.Err.Error()
	}

	return c.Status(status).JSON(response)
}

// RespondWithData writes a successful envelope.
func RespondWithData(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}
