package options

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"
)

// DataOptions locates everything the server persists: the relational store
// and the per-user data tree (transcripts, context snapshots, episodic
// archives, prompt overrides).
type DataOptions struct {
	BaseDir    string `json:"base-dir"    mapstructure:"base-dir"`
	SQLitePath string `json:"sqlite-path" mapstructure:"sqlite-path"`
}

// NewDataOptions returns defaults rooted in ./data.
func NewDataOptions() *DataOptions {
	return &DataOptions{
		BaseDir: "data",
	}
}

// ResolveSQLitePath returns the configured path, defaulting to
// <base-dir>/reverie.db.
func (o *DataOptions) ResolveSQLitePath() string {
	if o.SQLitePath != "" {
		return o.SQLitePath
	}
	return filepath.Join(o.BaseDir, "reverie.db")
}

// Validate checks the option values.
func (o *DataOptions) Validate() []error {
	var errs []error
	if o.BaseDir == "" {
		errs = append(errs, fmt.Errorf("--data.base-dir must not be empty"))
	}
	return errs
}

// AddFlags registers the flags for this group.
func (o *DataOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.BaseDir, "data.base-dir", o.BaseDir,
		"Root directory for per-user data (transcripts, episodic archives).")
	fs.StringVar(&o.SQLitePath, "data.sqlite-path", o.SQLitePath,
		"SQLite database path (default <base-dir>/reverie.db).")
}
