package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes reported in GraphQL error extensions.
const (
	ErrorCodeNotFound        = "ENTITY_NOT_FOUND"
	ErrorCodeUnauthenticated = "UNAUTHENTICATED"
	ErrorCodeForbidden       = "UNAUTHORIZED_ERROR"
)

// APIError is a non-2xx HTTP response from the API
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

// Error returns the error message
func (e *APIError) Error() string {
	msg := fmt.Sprintf("API error (status %d)", e.StatusCode)
	if e.Message != "" {
		msg = fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
	}
	if e.RequestID != "" {
		msg += " [request " + e.RequestID + "]"
	}
	return msg
}

// GraphQLErrorDetail is one entry of a GraphQL "errors" array
type GraphQLErrorDetail struct {
	Message    string        `json:"message"`
	Path       []interface{} `json:"path,omitempty"`
	Extensions struct {
		ErrorCode string `json:"errorCode,omitempty"`
	} `json:"extensions"`
}

// GraphQLError is a 2xx response whose body carries GraphQL errors
type GraphQLError struct {
	Errors    []GraphQLErrorDetail
	RequestID string
}

// Error returns the error message
func (e *GraphQLError) Error() string {
	messages := make([]string, 0, len(e.Errors))
	for _, detail := range e.Errors {
		messages = append(messages, detail.Message)
	}
	msg := "GraphQL error: " + strings.Join(messages, "; ")
	if e.RequestID != "" {
		msg += " [request " + e.RequestID + "]"
	}
	return msg
}

// HasCode reports whether any error entry carries code
func (e *GraphQLError) HasCode(code string) bool {
	for _, detail := range e.Errors {
		if detail.Extensions.ErrorCode == code {
			return true
		}
	}
	return false
}

// IsNotFoundError returns true if the error is a not found error
func IsNotFoundError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	var gqlErr *GraphQLError
	if errors.As(err, &gqlErr) {
		return gqlErr.HasCode(ErrorCodeNotFound)
	}
	return false
}

// IsAuthenticationError returns true if the error is an authentication error
func IsAuthenticationError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized ||
			apiErr.StatusCode == http.StatusForbidden
	}
	var gqlErr *GraphQLError
	if errors.As(err, &gqlErr) {
		return gqlErr.HasCode(ErrorCodeUnauthenticated) || gqlErr.HasCode(ErrorCodeForbidden)
	}
	return false
}

// parseErrorResponse parses an error response body
func parseErrorResponse(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var payload struct {
		Message string               `json:"message"`
		Errors  []GraphQLErrorDetail `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" && len(payload.Errors) > 0 {
			apiErr.Message = payload.Errors[0].Message
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	return apiErr
}
