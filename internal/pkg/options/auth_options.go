package options

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/wyrdlab/reverie/pkg/utils/json"
)

// AuthOptions configures bearer-token authentication. Token verification is
// a boundary concern: a static token table maps bearer tokens to an
// identity, and the core only ever sees (user_id, username).
type AuthOptions struct {
	Enabled    bool   `json:"enabled"     mapstructure:"enabled"`
	TokensFile string `json:"tokens-file" mapstructure:"tokens-file"`
	AllowLocal bool   `json:"allow-local" mapstructure:"allow-local"`
}

// NewAuthOptions returns defaults: auth on, loopback bypass on.
func NewAuthOptions() *AuthOptions {
	return &AuthOptions{
		Enabled:    true,
		AllowLocal: true,
	}
}

// TokenIdentity is one row of the token table.
type TokenIdentity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// LoadTokens reads the token table file. A missing configuration yields an
// empty table.
func (o *AuthOptions) LoadTokens() (map[string]TokenIdentity, error) {
	if o.TokensFile == "" {
		return map[string]TokenIdentity{}, nil
	}
	data, err := os.ReadFile(o.TokensFile)
	if err != nil {
		return nil, fmt.Errorf("read tokens file %q: %w", o.TokensFile, err)
	}
	var tokens map[string]TokenIdentity
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("decode tokens file %q: %w", o.TokensFile, err)
	}
	return tokens, nil
}

// Validate checks the option values.
func (o *AuthOptions) Validate() []error {
	var errs []error
	if o.Enabled && o.TokensFile == "" && !o.AllowLocal {
		errs = append(errs, fmt.Errorf("--auth.enabled requires --auth.tokens-file or --auth.allow-local"))
	}
	return errs
}

// AddFlags registers the flags for this group.
func (o *AuthOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "auth.enabled", o.Enabled,
		"Enforce bearer-token authentication.")
	fs.StringVar(&o.TokensFile, "auth.tokens-file", o.TokensFile,
		"JSON file mapping bearer tokens to {user_id, username}.")
	fs.BoolVar(&o.AllowLocal, "auth.allow-local", o.AllowLocal,
		"Skip auth for loopback requests, using a local dev identity.")
}
