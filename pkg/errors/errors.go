// Package errors defines the engine's error kinds (spec.md §7) as a
// small typed-code error, adapted from the teacher's AppError: a code,
// a message, an optional wrapped cause, a captured stack, and a
// context bag for structured logging.
package errors

import (
	"fmt"
	"runtime"
	"strings"
)

type ErrorCode string

const (
	// ErrInput covers missing required mapping fields, unsupported
	// extensions, and an empty file after decode.
	ErrInput ErrorCode = "INPUT_ERROR"
	// ErrDecode covers format converter/parse failures.
	ErrDecode ErrorCode = "DECODE_ERROR"
	// ErrLimit covers a row count or file size exceeding policy.
	ErrLimit ErrorCode = "LIMIT_ERROR"
	// ErrInternal covers scratch store, cursor or I/O failure.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
	Stack   string
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
		Stack:   getStack(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Context: make(map[string]interface{}),
		Stack:   getStack(),
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithContext(key string, value interface{}) *AppError {
	e.Context[key] = value
	return e
}

// IsRetryable reports whether the staging store should retry the
// operation that produced this error (e.g. a transient SQLite-busy
// error surfaced as ErrInternal by the staging layer).
func (e *AppError) IsRetryable() bool {
	if e.Err == nil {
		return false
	}
	msg := strings.ToLower(e.Err.Error())
	for _, s := range []string{"database is locked", "busy", "deadlock"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func getStack() string {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])

	var builder strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			builder.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return builder.String()
}

// Is reports whether err is an *AppError carrying the given code.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Code == code
}

// Code extracts the ErrorCode from err, defaulting to ErrInternal for
// any error that isn't an *AppError (the engine wraps everything
// unexpected as ErrInternal before it escapes, per spec.md §7).
func Code(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
