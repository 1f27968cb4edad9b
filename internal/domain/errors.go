package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrLimitReached = fmt.Errorf("limit reached")
)

// Sentinel errors for the stream client.
var (
	ErrConnectTimeout  = fmt.Errorf("connect: %w", ErrTimeout)
	ErrNotConnected    = fmt.Errorf("socket not connected")
	ErrInvalidFrame    = fmt.Errorf("frame: %w", ErrInvalidInput)
	ErrSendRateLimited = fmt.Errorf("send: %w", ErrLimitReached)
	ErrConfigLoad      = fmt.Errorf("failed to load configuration")
	ErrDecryption      = fmt.Errorf("decryption failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Stream.Decode")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsTransportError reports whether err belongs to the self-healing transport
// class: a connect timeout or a socket failure. Frame rejections are not.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrInvalidFrame) && !errors.Is(err, ErrSendRateLimited)
}

// ErrorCode is a machine-parseable error category for logs.
type ErrorCode string

const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeConnectTimeout  ErrorCode = "CONNECT_TIMEOUT"
	CodeNotConnected    ErrorCode = "NOT_CONNECTED"
	CodeInvalidFrame    ErrorCode = "INVALID_FRAME"
	CodeSendRateLimited ErrorCode = "SEND_RATE_LIMITED"
	CodeConfigLoad      ErrorCode = "CONFIG_LOAD"
	CodeDecryption      ErrorCode = "DECRYPTION"
	CodeTimeout         ErrorCode = "TIMEOUT"
	CodeInvalidInput    ErrorCode = "INVALID_INPUT"
	CodeLimitReached    ErrorCode = "LIMIT_REACHED"
)

// errorCodeOrder lists sentinels from most to least specific so wrapped
// category sentinels do not shadow the specific ones.
var errorCodeOrder = []struct {
	err  error
	code ErrorCode
}{
	{ErrConnectTimeout, CodeConnectTimeout},
	{ErrNotConnected, CodeNotConnected},
	{ErrInvalidFrame, CodeInvalidFrame},
	{ErrSendRateLimited, CodeSendRateLimited},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrDecryption, CodeDecryption},
	{ErrTimeout, CodeTimeout},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrLimitReached, CodeLimitReached},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, entry := range errorCodeOrder {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	return ErrorCodeOf(e.Err)
}
