package errno

import (
	"errors"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrChunkNotFound   = errors.New("episodic chunk not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrTierDowngrade   = errors.New("required tier cannot be downgraded")
	ErrEmptyMessage    = errors.New("message must not be empty")
	ErrSessionBusy     = errors.New("too many concurrent turns for user")
	ErrFactsConflict   = errors.New("facts were modified concurrently")
	ErrTurnAborted     = errors.New("turn aborted")
	ErrSearchDisabled  = errors.New("web search gateway disabled")
)
