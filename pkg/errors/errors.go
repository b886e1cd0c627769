package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"cinesync/internal/core/domain"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	ErrCodeInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidRoomCode        ErrorCode = "INVALID_ROOM_CODE"
	ErrCodeRoomNotFound           ErrorCode = "ROOM_NOT_FOUND"
	ErrCodeRoomFull               ErrorCode = "ROOM_FULL"
	ErrCodeAlreadyJoined          ErrorCode = "ALREADY_JOINED"
	ErrCodeNotParticipant         ErrorCode = "NOT_PARTICIPANT"
	ErrCodeUnauthorizedRoomAction ErrorCode = "UNAUTHORIZED_ROOM_ACTION"
	ErrCodeRoomClosed             ErrorCode = "ROOM_CLOSED"
	ErrCodeStreamNotFound         ErrorCode = "STREAM_NOT_FOUND"
	ErrCodeInvalidTransition      ErrorCode = "INVALID_STREAM_TRANSITION"
	ErrCodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimit              ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable     ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError represents an application error with code and context
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Context:    make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with application error
func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Cause:      err,
		Context:    make(map[string]interface{}),
	}
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

func NewServiceUnavailableError(message string) *AppError {
	return NewAppError(ErrCodeServiceUnavailable, message, http.StatusServiceUnavailable)
}

type domainMapping struct {
	target error
	code   ErrorCode
	status int
}

// Order matters: the first match wins.
var domainMappings = []domainMapping{
	{domain.ErrInvalidRoomCode, ErrCodeInvalidRoomCode, http.StatusBadRequest},
	{domain.ErrInvalidInput, ErrCodeInvalidInput, http.StatusBadRequest},
	{domain.ErrInvalidEvent, ErrCodeInvalidInput, http.StatusBadRequest},
	{domain.ErrRoomNotFound, ErrCodeRoomNotFound, http.StatusNotFound},
	{domain.ErrStreamNotFound, ErrCodeStreamNotFound, http.StatusNotFound},
	{domain.ErrRoomFull, ErrCodeRoomFull, http.StatusConflict},
	{domain.ErrAlreadyJoined, ErrCodeAlreadyJoined, http.StatusConflict},
	{domain.ErrNotParticipant, ErrCodeNotParticipant, http.StatusConflict},
	{domain.ErrInvalidStreamTransition, ErrCodeInvalidTransition, http.StatusConflict},
	{domain.ErrUnauthorizedRoomAction, ErrCodeUnauthorizedRoomAction, http.StatusForbidden},
	{domain.ErrRoomClosed, ErrCodeRoomClosed, http.StatusGone},
	{domain.ErrLockTimeout, ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
}

// FromDomain maps a service error onto an AppError. Unknown errors become
// INTERNAL_ERROR with a generic message so internals never leak to clients.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}
	for _, m := range domainMappings {
		if stderrors.Is(err, m.target) {
			return WrapError(err, m.code, m.target.Error(), m.status)
		}
	}
	return WrapError(err, ErrCodeInternal, "internal server error", http.StatusInternalServerError)
}

// IsAppError checks if error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return nil
}
