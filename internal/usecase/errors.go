package usecase

import (
	"fmt"
	"strings"
)

type ErrorCode string

const (
	ErrorInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrorUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrorRateLimited   ErrorCode = "RATE_LIMITED"
	ErrorUpstream      ErrorCode = "UPSTREAM_ERROR"
	ErrorEmptyResponse ErrorCode = "EMPTY_RESPONSE"
	ErrorModelList     ErrorCode = "MODEL_LIST_ERROR"
	ErrorNotFound      ErrorCode = "NOT_FOUND"
	ErrorForbidden     ErrorCode = "FORBIDDEN"
	ErrorConflict      ErrorCode = "CONFLICT"
	ErrorInternal      ErrorCode = "INTERNAL_ERROR"
)

// Error is returned by every usecase operation. Error() yields the message
// safe to show to the end user; Reason and Err are for logs.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch e.Code {
	case ErrorInvalidInput:
		if e.Reason == reasonInvalidCampaign {
			return "Invalid campaign"
		}
		return fmt.Sprintf("Invalid input: %s", humanReason(e.Reason))
	case ErrorUnauthorized:
		return "Invalid API key"
	case ErrorRateLimited:
		return "Rate limit exceeded, please try again later"
	case ErrorUpstream:
		return "provider error: " + causeMessage(e.Err)
	case ErrorEmptyResponse:
		return "No response from provider"
	case ErrorModelList:
		return "Failed to fetch models: " + causeMessage(e.Err)
	case ErrorNotFound:
		return humanReason(e.Reason)
	case ErrorForbidden:
		return "not allowed"
	case ErrorConflict:
		return humanReason(e.Reason)
	}
	return "internal error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func causeMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func humanReason(reason string) string {
	return strings.ReplaceAll(reason, "_", " ")
}
