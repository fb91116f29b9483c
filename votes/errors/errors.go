// Copyright (c) 2024 Telar Social
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Vote service specific errors
var (
	ErrUnauthorized    = errors.New("authentication required")
	ErrSubjectNotFound = errors.New("vote subject not found")
	ErrInvalidInput    = errors.New("invalid vote input")

	// ErrVoteConflict means the uniqueness race could not be resolved within the retry budget
	ErrVoteConflict = errors.New("vote conflict")

	// ErrTransient covers timeouts, cancellations and unavailable dependencies
	ErrTransient = errors.New("transient failure")

	// ErrPersistence wraps unexpected storage failures
	ErrPersistence = errors.New("persistence failure")

	// ErrUnknown is what a client sees for any failure it cannot classify
	ErrUnknown = errors.New("unknown failure")
)

// Code is the wire error code of the vote RPC
type Code string

// Error codes
const (
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeNotFound     Code = "NOT_FOUND"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeTransient    Code = "TRANSIENT"
	CodeUnknown      Code = "UNKNOWN"
	CodeRateLimited  Code = "RATE_LIMITED"
)

// ErrorResponse represents the standardized error response format
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ServiceError is a failed vote RPC as seen by a client.
// It unwraps to the sentinel matching Code.
type ServiceError struct {
	Code    Code
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return FromCode(string(e.Code))
}

// Classify maps an error onto the wire taxonomy. A conflict is reported as transient.
func Classify(err error) Code {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrSubjectNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrVoteConflict),
		errors.Is(err, ErrTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return CodeTransient
	default:
		return CodeUnknown
	}
}

// Retryable reports whether the same request may succeed if sent again
func Retryable(err error) bool {
	return Classify(err) == CodeTransient
}

// Status returns the HTTP status for a code
func Status(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeTransient:
		return http.StatusServiceUnavailable
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// FromCode turns a wire code back into its sentinel
func FromCode(code string) error {
	switch Code(code) {
	case CodeUnauthorized:
		return ErrUnauthorized
	case CodeNotFound:
		return ErrSubjectNotFound
	case CodeInvalidInput:
		return ErrInvalidInput
	case CodeTransient, CodeRateLimited:
		return ErrTransient
	default:
		return ErrUnknown
	}
}

var messages = map[Code]string{
	CodeUnauthorized: "Authentication required",
	CodeNotFound:     "Subject not found",
	CodeInvalidInput: "Invalid vote request",
	CodeTransient:    "Vote could not be applied, try again",
	CodeUnknown:      "An unexpected error occurred",
}

// HandleServiceError handles service errors and returns appropriate HTTP responses
func HandleServiceError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	code := Classify(err)
	return c.Status(Status(code)).JSON(ErrorResponse{
		Code:    string(code),
		Message: messages[code],
		Details: err.Error(),
	})
}

// HandleInvalidRequestError handles malformed request bodies with 400 Bad Request
func HandleInvalidRequestError(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
		Code:    string(CodeInvalidInput),
		Message: message,
		Details: message,
	})
}
