// Package options defines the reusable option groups shared by the server
// binary, each binding to its own flag section.
package options

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/wyrdlab/reverie/internal/pkg/server"
)

// ServerRunOptions configures the generic HTTP server.
type ServerRunOptions struct {
	Mode            string   `json:"mode"             mapstructure:"mode"`
	BindAddress     string   `json:"bind-address"     mapstructure:"bind-address"`
	BindPort        int      `json:"bind-port"        mapstructure:"bind-port"`
	Healthz         bool     `json:"healthz"          mapstructure:"healthz"`
	EnableProfiling bool     `json:"profiling"        mapstructure:"profiling"`
	Middlewares     []string `json:"middlewares"      mapstructure:"middlewares"`
}

// NewServerRunOptions returns defaults.
func NewServerRunOptions() *ServerRunOptions {
	return &ServerRunOptions{
		Mode:        "release",
		BindAddress: "127.0.0.1",
		BindPort:    8711,
		Healthz:     true,
	}
}

// ApplyTo copies the options onto a server.Config.
func (o *ServerRunOptions) ApplyTo(c *server.Config) error {
	c.Mode = o.Mode
	c.BindAddress = o.BindAddress
	c.BindPort = o.BindPort
	c.Healthz = o.Healthz
	c.EnableProfiling = o.EnableProfiling
	c.Middlewares = o.Middlewares
	return nil
}

// Validate checks the option values.
func (o *ServerRunOptions) Validate() []error {
	var errs []error
	if o.BindPort < 1 || o.BindPort > 65535 {
		errs = append(errs, fmt.Errorf("--serving.bind-port %d must be between 1 and 65535", o.BindPort))
	}
	return errs
}

// AddFlags registers the flags for this group.
func (o *ServerRunOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Mode, "serving.mode", o.Mode,
		"Server mode: release, debug or test.")
	fs.StringVar(&o.BindAddress, "serving.bind-address", o.BindAddress,
		"IP address on which to serve.")
	fs.IntVar(&o.BindPort, "serving.bind-port", o.BindPort,
		"Port on which to serve.")
	fs.BoolVar(&o.Healthz, "serving.healthz", o.Healthz,
		"Install the /healthz route.")
	fs.BoolVar(&o.EnableProfiling, "serving.profiling", o.EnableProfiling,
		"Install pprof routes under /debug/pprof.")
}
