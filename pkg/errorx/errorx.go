// Package errorx provides coded errors: every user-visible failure carries a
// registered business code that maps to an HTTP status and a safe message.
package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Coder describes an error code: business code, associated HTTP status,
// user-safe message and an optional reference document.
type Coder interface {
	Code() int
	HTTPStatus() int
	String() string
	Reference() string
}

var (
	codesMu sync.Mutex
	codes   = map[int]Coder{}
)

// unknownCoder is returned for errors without a registered code.
var unknownCoder = defaultCoder{
	code: 1, http: http.StatusInternalServerError,
	msg: "An internal server error occurred",
}

type defaultCoder struct {
	code int
	http int
	msg  string
	ref  string
}

func (c defaultCoder) Code() int         { return c.code }
func (c defaultCoder) HTTPStatus() int   { return c.http }
func (c defaultCoder) String() string    { return c.msg }
func (c defaultCoder) Reference() string { return c.ref }

// Register registers a Coder. Codes must be unique; code 1 is reserved.
func Register(coder Coder) error {
	if coder.Code() == 1 {
		return fmt.Errorf("code 1 is reserved as the unknown error code")
	}
	codesMu.Lock()
	defer codesMu.Unlock()
	if _, ok := codes[coder.Code()]; ok {
		return fmt.Errorf("code %d already registered", coder.Code())
	}
	codes[coder.Code()] = coder
	return nil
}

// MustRegister registers a Coder and panics on conflict. Intended for
// package init blocks.
func MustRegister(coder Coder) {
	if err := Register(coder); err != nil {
		panic(err)
	}
}

// withCode is an error annotated with a business code.
type withCode struct {
	err  error
	code int
}

func (w *withCode) Error() string {
	if w.err != nil {
		return w.err.Error()
	}
	return ParseCoder(w).String()
}

func (w *withCode) Unwrap() error { return w.err }

// WithCode creates a new coded error from a format string.
func WithCode(code int, format string, args ...interface{}) error {
	return &withCode{
		err:  fmt.Errorf(format, args...),
		code: code,
	}
}

// WrapC wraps err with a business code and a contextual message.
func WrapC(err error, code int, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &withCode{
		err:  fmt.Errorf(format+": %w", append(args, err)...),
		code: code,
	}
}

// ParseCoder extracts the Coder from err. Errors without a code resolve to
// the unknown coder (HTTP 500).
func ParseCoder(err error) Coder {
	var wc *withCode
	if errors.As(err, &wc) {
		if coder, ok := lookup(wc.code); ok {
			return coder
		}
	}
	return unknownCoder
}

// IsCode reports whether err (or anything it wraps) carries the given code.
func IsCode(err error, code int) bool {
	var wc *withCode
	if errors.As(err, &wc) {
		return wc.code == code
	}
	return false
}

func lookup(code int) (Coder, bool) {
	codesMu.Lock()
	defer codesMu.Unlock()
	c, ok := codes[code]
	return c, ok
}
