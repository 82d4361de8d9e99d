package config

import (
	"github.com/wyrdlab/reverie/internal/lorekeeper/options"
)

// Config is the running configuration structure of the lorekeeper service.
type Config struct {
	*options.Options
}

// CreateConfigFromOptions creates a running configuration instance based
// on the given options.
func CreateConfigFromOptions(opts *options.Options) (*Config, error) {
	return &Config{opts}, nil
}
