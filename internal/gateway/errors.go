package gateway

import (
	"context"
	"errors"
	"fmt"
)

// ConnectivityError means the prediction service could not be reached at all.
type ConnectivityError struct {
	Op      string
	BaseURL string
	Err     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("Cannot connect to the prediction service at %s. Check that it is running and reachable.", e.BaseURL)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ServerError is a failed response that carried no actionable payload.
type ServerError struct {
	Op     string
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("Server error: %d", e.Status)
}

// PredictionError carries the service's own {"error": ...} detail.
type PredictionError struct {
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *PredictionError) Error() string { return e.Detail }

func (e *PredictionError) Unwrap() error { return e.Err }

// AuthError is a rejected login.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// ValidationError is a precondition failure detected before any request, or a
// registration rejected by the service.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Message returns the line to show the user for err.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The prediction service took too long to answer. Please try again."
	}
	return err.Error()
}

// IsUnexpected reports whether err is worth sending to error reporting:
// server faults, as opposed to user, network or domain outcomes.
func IsUnexpected(err error) bool {
	var srvErr *ServerError
	return errors.As(err, &srvErr)
}
