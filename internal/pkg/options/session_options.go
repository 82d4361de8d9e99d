package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// SessionOptions tunes the session manager: concurrency caps, queueing and
// eviction of idle orchestrators.
type SessionOptions struct {
	MaxConcurrentPerUser int           `json:"max-concurrent-per-user" mapstructure:"max-concurrent-per-user"`
	AcquireTimeout       time.Duration `json:"acquire-timeout"         mapstructure:"acquire-timeout"`
	IdleTimeout          time.Duration `json:"idle-timeout"            mapstructure:"idle-timeout"`
	MaxActive            int           `json:"max-active"              mapstructure:"max-active"`
	TurnTimeout          time.Duration `json:"turn-timeout"            mapstructure:"turn-timeout"`
}

// NewSessionOptions returns defaults.
func NewSessionOptions() *SessionOptions {
	return &SessionOptions{
		MaxConcurrentPerUser: 8,
		AcquireTimeout:       5 * time.Second,
		IdleTimeout:          time.Hour,
		MaxActive:            256,
		TurnTimeout:          60 * time.Second,
	}
}

// Validate checks the option values.
func (o *SessionOptions) Validate() []error {
	var errs []error
	if o.MaxConcurrentPerUser < 1 {
		errs = append(errs, fmt.Errorf("--sessions.max-concurrent-per-user must be >= 1"))
	}
	if o.MaxActive < 1 {
		errs = append(errs, fmt.Errorf("--sessions.max-active must be >= 1"))
	}
	return errs
}

// AddFlags registers the flags for this group.
func (o *SessionOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.MaxConcurrentPerUser, "sessions.max-concurrent-per-user", o.MaxConcurrentPerUser,
		"Concurrent turns allowed per user across all sessions.")
	fs.DurationVar(&o.AcquireTimeout, "sessions.acquire-timeout", o.AcquireTimeout,
		"How long a queued turn waits for a concurrency slot before failing.")
	fs.DurationVar(&o.IdleTimeout, "sessions.idle-timeout", o.IdleTimeout,
		"Idle duration after which an in-memory orchestrator is evicted.")
	fs.IntVar(&o.MaxActive, "sessions.max-active", o.MaxActive,
		"LRU cap on in-memory orchestrators.")
	fs.DurationVar(&o.TurnTimeout, "sessions.turn-timeout", o.TurnTimeout,
		"Overall latency budget for one turn.")
}
