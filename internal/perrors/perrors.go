package perrors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
)

type ErrCode struct {
	Code   string `json:"code"`
	Status int    `json:"status"`
}

var (
	ErrCodeInvalidRequest      ErrCode = ErrCode{"invalid_request", http.StatusBadRequest}
	ErrCodeInternalServer              = ErrCode{"internal_server_error", http.StatusInternalServerError}
	ErrCodeNotFound                    = ErrCode{"not_found", http.StatusNotFound}
	ErrCodeConflict                    = ErrCode{"conflict", http.StatusConflict}
	ErrCodeUnauthorized                = ErrCode{"unauthenticated", http.StatusUnauthorized}
	ErrCodeForbidden                   = ErrCode{"forbidden", http.StatusForbidden}
	ErrCodeBadRequest                  = ErrCode{"bad_request", http.StatusBadRequest}
	ErrCodeMethodNotAllowed            = ErrCode{"method_not_allowed", http.StatusMethodNotAllowed}
	ErrCodeTooManyRequests             = ErrCode{"too_many_requests", http.StatusTooManyRequests}
	ErrCodeInternalServerError         = ErrCode{"internal_server_error", http.StatusInternalServerError}
	ErrCodeNotImplemented              = ErrCode{"not_implemented", http.StatusNotImplemented}

	// Domain error kinds. Expected failures travel as these values; panics are
	// reserved for programmer error.
	ErrCodeValidation   = ErrCode{"validation_error", http.StatusBadRequest}
	ErrCodeVerification = ErrCode{"verification_error", http.StatusBadRequest}
	ErrCodeTransport    = ErrCode{"transport_error", http.StatusBadGateway}
)

type Err struct {
	Message    string                   `json:"-"`
	Err        string                   `json:"error"`
	Code       ErrCode                  `json:"-"`
	Stacktrace []string                 `json:"-"`
	Args       []map[string]interface{} `json:"args"`
}

func (e Err) Error() string {
	return e.Err
}

func (e Err) HttpStatus() int {
	return e.Code.Status
}

func (e Err) Print(ctx context.Context) {
	args := append([]any{slog.Any("error", e.Error())})
	if len(e.Args) > 0 {
		for k, v := range e.Args[0] {
			args = append(args, slog.Any(k, v))
		}
	}
	args = append(args, slog.Any("stacktrace", e.Stacktrace))
	slog.ErrorContext(ctx, e.Message, args...)
}

func New(code ErrCode, msg string, err error, args ...map[string]interface{}) error {
	pc := make([]uintptr, 20)
	count := runtime.Callers(1, pc)
	frames := runtime.CallersFrames(pc[:count])

	var stacktrace []string
	for frame, hasMore := frames.Next(); hasMore; frame, hasMore = frames.Next() {
		stacktrace = append(stacktrace, fmt.Sprintf("%s:%d", frame.File, frame.Line))
	}

	errString := "error missing"
	if err != nil {
		errString = err.Error()
	}

	return Err{
		Code:       code,
		Message:    msg,
		Err:        errString,
		Stacktrace: stacktrace,
		Args:       args,
	}
}

func NewErrInvalidRequest(err error, args ...map[string]interface{}) error {
	return New(ErrCodeInvalidRequest, err.Error(), err, args...)
}

func NewErrInternalServerError(err error, args ...map[string]interface{}) error {
	return New(ErrCodeInternalServer, err.Error(), err, args...)
}

func NewErrNotFound(err error, args ...map[string]interface{}) error {
	return New(ErrCodeNotFound, err.Error(), err, args...)
}

// NewErrUnauthenticated marks a caller whose chat has no ERP user link.
func NewErrUnauthenticated(err error, args ...map[string]interface{}) error {
	return New(ErrCodeUnauthorized, err.Error(), err, args...)
}

// NewErrForbidden marks a resolved user that lacks access to the target record.
func NewErrForbidden(err error, args ...map[string]interface{}) error {
	return New(ErrCodeForbidden, err.Error(), err, args...)
}

func NewErrValidation(err error, args ...map[string]interface{}) error {
	return New(ErrCodeValidation, err.Error(), err, args...)
}

// NewErrVerification is deliberately generic: all code-check sub-cases
// (expired, locked, mismatch, missing) surface with the same message.
func NewErrVerification(err error, args ...map[string]interface{}) error {
	return New(ErrCodeVerification, err.Error(), err, args...)
}

func NewErrTransport(err error, args ...map[string]interface{}) error {
	return New(ErrCodeTransport, err.Error(), err, args...)
}

func NewErrTooManyRequests(err error, args ...map[string]interface{}) error {
	return New(ErrCodeTooManyRequests, err.Error(), err, args...)
}

// CodeOf extracts the ErrCode string of an error, or "internal_server_error"
// when the error is not a perrors.Err.
func CodeOf(err error) string {
	var perr Err
	if errors.As(err, &perr) {
		return perr.Code.Code
	}
	return ErrCodeInternalServer.Code
}
