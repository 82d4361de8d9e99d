// Package safego launches goroutines that cannot take the process down
// with an unhandled panic.
package safego

import (
	"context"
	"runtime/debug"

	"github.com/wyrdlab/reverie/pkg/logger"
)

// Go runs fn in a new goroutine, recovering and logging any panic.
// The context is accepted for call-site symmetry; fn is responsible for
// observing its cancellation.
func Go(_ context.Context, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("[safego] recovered panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}
