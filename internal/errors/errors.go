package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodeOutOfRange         = Code(codes.OutOfRange)
	CodeInternal           = Code(codes.Internal)
	CodeUnavailable        = Code(codes.Unavailable)
	CodeUnauthenticated    = Code(codes.Unauthenticated)
)

var http2code = map[int]Code{
	http.StatusBadRequest:   CodeInvalidArgument,
	http.StatusUnauthorized: CodeUnauthenticated,
	http.StatusForbidden:    CodeUnauthenticated,
	http.StatusNotFound:     CodeNotFound,
	http.StatusConflict:     CodeAlreadyExists,
}

// Error is the single failure type shared by every component of the client.
// Status holds the HTTP status reported by the backend; 0 means the request never got a response.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.Status != 0 {
		s += fmt.Sprintf(", status: %d", e.Status)
	}
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

// FromHTTPStatus classifies a non-2xx backend status.
func FromHTTPStatus(status int) Code {
	if c, ok := http2code[status]; ok {
		return c
	}

	return CodeInternal
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

// InvalidArgument is a client-side precondition failure, raised before any request is issued.
func InvalidArgument(format string, args ...any) *Error {
	return New(CodeInvalidArgument, WithMessagef(format, args...))
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsAttemptClosed reports whether err says an attempt has no further questions.
// The gateway reports every form of that signal with CodeOutOfRange.
func IsAttemptClosed(err error) bool {
	return Is(err, CodeOutOfRange)
}

// IsTransport reports whether err happened before the backend answered.
func IsTransport(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == CodeUnavailable && e.Status == 0
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithStatus(status int) Option {
	return optionFunc(func(e *Error) {
		e.Status = status
	})
}
