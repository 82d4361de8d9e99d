package options

import (
	"github.com/spf13/pflag"
)

// LogOptions configures process logging.
type LogOptions struct {
	Level string `json:"level" mapstructure:"level"`
	File  string `json:"file"  mapstructure:"file"`
}

// NewLogOptions returns defaults.
func NewLogOptions() *LogOptions {
	return &LogOptions{
		Level: "info",
	}
}

// Validate checks the option values.
func (o *LogOptions) Validate() []error {
	return nil
}

// AddFlags registers the flags for this group.
func (o *LogOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level,
		"Minimum log level: debug, info, warn or error.")
	fs.StringVar(&o.File, "log.file", o.File,
		"Log file path in addition to stderr (empty = stderr only).")
}
