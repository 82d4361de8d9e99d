package v1

import (
	"net/http"

	"github.com/wyrdlab/reverie/pkg/errorx"
)

// Handler error codes.
// Code format: 100GNZ
//   - 100: module prefix (lorekeeper handler)
//   - G:   resource group (0=common, 1=chat, 2=session, 3=memory)
//   - N:   sequential error number within the group
//   - Z:   reserved (0)

const (
	// Common request errors (100xxx).
	ErrBind       = 100010
	ErrValidation = 100020

	// Chat errors (1001xx).
	ErrEmptyMessage = 100110
	ErrTurnFailed   = 100120
	ErrBusy         = 100130

	// Session errors (1002xx).
	ErrSessionNotFound = 100210
	ErrSessionList     = 100220
	ErrSessionDelete   = 100230
	ErrHistory         = 100240

	// Memory errors (1003xx).
	ErrFactsLoad = 100310
)

func init() {
	errorx.MustRegister(newCoder(ErrBind, http.StatusBadRequest, "Request body binding failed"))
	errorx.MustRegister(newCoder(ErrValidation, http.StatusBadRequest, "Request validation failed"))

	errorx.MustRegister(newCoder(ErrEmptyMessage, http.StatusBadRequest, "Message must not be empty"))
	errorx.MustRegister(newCoder(ErrTurnFailed, http.StatusInternalServerError, "Chat turn failed"))
	errorx.MustRegister(newCoder(ErrBusy, http.StatusTooManyRequests, "Too many concurrent requests"))

	errorx.MustRegister(newCoder(ErrSessionNotFound, http.StatusNotFound, "Session not found"))
	errorx.MustRegister(newCoder(ErrSessionList, http.StatusInternalServerError, "Failed to list sessions"))
	errorx.MustRegister(newCoder(ErrSessionDelete, http.StatusInternalServerError, "Failed to delete session"))
	errorx.MustRegister(newCoder(ErrHistory, http.StatusInternalServerError, "Failed to load history"))

	errorx.MustRegister(newCoder(ErrFactsLoad, http.StatusInternalServerError, "Failed to load user memory"))
}

type coder struct {
	code int
	http int
	msg  string
}

func newCoder(code, httpStatus int, msg string) *coder {
	return &coder{code: code, http: httpStatus, msg: msg}
}

func (c *coder) Code() int         { return c.code }
func (c *coder) HTTPStatus() int   { return c.http }
func (c *coder) String() string    { return c.msg }
func (c *coder) Reference() string { return "" }
