// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and internal errors
//   - Validation errors (100-199): Invalid parameters, configuration, event types
//   - Lexical errors (200-299): Unknown characters in AlgoScript source
//   - Parse errors (300-399): Structural violations of the AlgoScript grammar
//   - Indicator errors (400-499): Indicator lookup and market data feed errors
//   - Trading errors (500-599): Order placement and exchange errors
//   - Journal errors (600-699): Run journal persistence errors
//   - Server errors (700-799): HTTP surface errors
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeNoMarketData, "no candles for symbol %s", symbol)
//	err = errors.Wrap(errors.ErrCodeOrderFailed, "failed to place order", err)
//	if errors.HasCode(err, errors.ErrCodeOrderFailed) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error is an error carrying an ErrorCode and an optional cause.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func New(code ErrorCode, message string) *Error {
	return Wrap(code, message, nil)
}

func Newf(code ErrorCode, format string, args ...any) *Error {
	return Wrap(code, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches code and message to cause. A nil cause yields a plain Error.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return Wrap(code, fmt.Sprintf(format, args...), cause)
}

// Error renders "[code] message" followed by ": cause" when there is one.
func (e *Error) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%d] %s", e.Code, e.Message)

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode returns the code of the outermost *Error in err's chain, or
// ErrCodeUnknown when there is none.
func GetCode(err error) ErrorCode {
	var e *Error
	if !errors.As(err, &e) {
		return ErrCodeUnknown
	}

	return e.Code
}

func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}
