package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure the inference path can produce.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindDecodeFailure
	KindLoadFailure
	KindInferenceFailure
	KindRenderFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindDecodeFailure:
		return "decode_failure"
	case KindLoadFailure:
		return "load_failure"
	case KindInferenceFailure:
		return "inference_failure"
	case KindRenderFailure:
		return "render_failure"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a kind to the status code used at the HTTP boundary.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound, KindLoadFailure:
		return http.StatusServiceUnavailable
	case KindDecodeFailure:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
