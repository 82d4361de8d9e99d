// Package options aggregates every option group of the lorekeeper server.
package options

import (
	genericoptions "github.com/wyrdlab/reverie/internal/pkg/options"
	"github.com/wyrdlab/reverie/internal/pkg/server"
	"github.com/wyrdlab/reverie/pkg/utils/cliflag"
	"github.com/wyrdlab/reverie/pkg/utils/json"
)

// Options is the full server configuration.
type Options struct {
	GenericServerRunOptions *genericoptions.ServerRunOptions `json:"serving"  mapstructure:"serving"`
	LogOptions              *genericoptions.LogOptions       `json:"log"      mapstructure:"log"`
	ModelOptions            *genericoptions.ModelOptions     `json:"models"   mapstructure:"models"`
	MemoryOptions           *genericoptions.MemoryOptions    `json:"memory"   mapstructure:"memory"`
	SessionOptions          *genericoptions.SessionOptions   `json:"sessions" mapstructure:"sessions"`
	SearchOptions           *genericoptions.SearchOptions    `json:"search"   mapstructure:"search"`
	DataOptions             *genericoptions.DataOptions      `json:"data"     mapstructure:"data"`
	AuthOptions             *genericoptions.AuthOptions      `json:"auth"     mapstructure:"auth"`
}

// NewOptions returns all defaults.
func NewOptions() *Options {
	return &Options{
		GenericServerRunOptions: genericoptions.NewServerRunOptions(),
		LogOptions:              genericoptions.NewLogOptions(),
		ModelOptions:            genericoptions.NewModelOptions(),
		MemoryOptions:           genericoptions.NewMemoryOptions(),
		SessionOptions:          genericoptions.NewSessionOptions(),
		SearchOptions:           genericoptions.NewSearchOptions(),
		DataOptions:             genericoptions.NewDataOptions(),
		AuthOptions:             genericoptions.NewAuthOptions(),
	}
}

// Flags groups all flags into named sections.
func (o *Options) Flags() (fss cliflag.NamedFlagSets) {
	o.GenericServerRunOptions.AddFlags(fss.FlagSet("serving"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.ModelOptions.AddFlags(fss.FlagSet("models"))
	o.MemoryOptions.AddFlags(fss.FlagSet("memory"))
	o.SessionOptions.AddFlags(fss.FlagSet("sessions"))
	o.SearchOptions.AddFlags(fss.FlagSet("search"))
	o.DataOptions.AddFlags(fss.FlagSet("data"))
	o.AuthOptions.AddFlags(fss.FlagSet("auth"))
	return fss
}

// Validate runs every group's validation.
func (o *Options) Validate() []error {
	var errs []error
	errs = append(errs, o.GenericServerRunOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.ModelOptions.Validate()...)
	errs = append(errs, o.MemoryOptions.Validate()...)
	errs = append(errs, o.SessionOptions.Validate()...)
	errs = append(errs, o.SearchOptions.Validate()...)
	errs = append(errs, o.DataOptions.Validate()...)
	errs = append(errs, o.AuthOptions.Validate()...)
	return errs
}

// ApplyTo copies the generic serving options onto a server config.
func (o *Options) ApplyTo(c *server.Config) error {
	return o.GenericServerRunOptions.ApplyTo(c)
}

func (o *Options) String() string {
	data, _ := json.Marshal(o)
	return string(data)
}
