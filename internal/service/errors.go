package service

import "fmt"

type ErrorCode string

const (
	ErrorNoQuestions     ErrorCode = "NO_QUESTIONS"
	ErrorStaleQuestion   ErrorCode = "STALE_QUESTION"
	ErrorInvalidQuestion ErrorCode = "INVALID_QUESTION"
	ErrorUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrorDeliveryFailed  ErrorCode = "DELIVERY_FAILED"
	ErrorNoSession       ErrorCode = "NO_SESSION"
	ErrorBroadcastBusy   ErrorCode = "BROADCAST_BUSY"
)

// Sentinels for errors.Is. Matching is by code, so a wrapped *Error carrying
// extra reason or cause still matches its sentinel.
var (
	ErrNoQuestions     = &Error{Code: ErrorNoQuestions, Reason: "no questions available"}
	ErrStaleQuestion   = &Error{Code: ErrorStaleQuestion, Reason: "question reference is stale"}
	ErrInvalidQuestion = &Error{Code: ErrorInvalidQuestion, Reason: "invalid question set"}
	ErrUnauthorized    = &Error{Code: ErrorUnauthorized, Reason: "not an operator"}
	ErrDeliveryFailed  = &Error{Code: ErrorDeliveryFailed, Reason: "recipient delivery failed"}
	ErrNoSession       = &Error{Code: ErrorNoSession, Reason: "no broadcast awaiting a message"}
	ErrBroadcastBusy   = &Error{Code: ErrorBroadcastBusy, Reason: "broadcast already in progress"}
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("service: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("service: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
