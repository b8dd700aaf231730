// Package api exposes the engine over HTTP with Echo.
package api

import (
	"time"

	"github.com/rotamed/scheduler/internal/validation"
)

// APIResponse is the standard response envelope for all endpoints.
type APIResponse struct {
	Data             interface{}        `json:"data,omitempty"`
	ValidationResult *validation.Result `json:"validation,omitempty"`
	Error            *ErrorResponse     `json:"error,omitempty"`
	Meta             ResponseMeta       `json:"meta"`
}

// ErrorResponse carries the machine error code and human message.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// SuccessResponse wraps data in a successful envelope.
func SuccessResponse(data interface{}) *APIResponse {
	return &APIResponse{
		Data: data,
		Meta: ResponseMeta{Timestamp: time.Now().UTC(), Version: "1.0"},
	}
}

// ErrorResponseWithCode wraps a coded failure in the envelope.
func ErrorResponseWithCode(code, message string) *APIResponse {
	return &APIResponse{
		Error: &ErrorResponse{Code: code, Message: message},
		Meta:  ResponseMeta{Timestamp: time.Now().UTC(), Version: "1.0"},
	}
}
