// Package app builds standard application scaffolding: a cobra command with
// grouped flags, viper config-file binding, and a run function.
package app

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wyrdlab/reverie/pkg/utils/cliflag"
)

// RunFunc is the application body. basename is the binary name.
type RunFunc func(basename string) error

// CliOptions abstracts an application's options struct.
type CliOptions interface {
	Flags() cliflag.NamedFlagSets
	Validate() []error
}

// CompleteableOptions may fill defaults after flags and config are parsed.
type CompleteableOptions interface {
	Complete() error
}

// App is a structured command-line application.
type App struct {
	basename    string
	name        string
	description string
	options     CliOptions
	runFunc     RunFunc
	noConfig    bool
	cmd         *cobra.Command
}

// Option configures an App.
type Option func(*App)

// WithOptions attaches a CliOptions implementation.
func WithOptions(opts CliOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the application body.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithDescription sets the long description.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithNoConfig disables the --config flag.
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

// WithDefaultValidArgs rejects any positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {}
}

// NewApp creates an App with the given name, binary basename and options.
func NewApp(name, basename string, opts ...Option) *App {
	a := &App{
		name:     name,
		basename: basename,
	}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.basename,
		Short:         a.name,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
		for _, name := range namedFlagSets.Order {
			cmd.Flags().AddFlagSet(namedFlagSets.FlagSets[name])
		}
	}

	if !a.noConfig {
		addConfigFlag(a.basename, namedFlagSets.FlagSet("global"))
		cmd.Flags().AddFlagSet(namedFlagSets.FlagSet("global"))
	}

	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "%s\n\n", c.Long)
		cliflag.PrintSections(os.Stdout, namedFlagSets, 0)
	})

	cmd.RunE = a.runCommand

	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, args []string) error {
	printWorkingBanner(a.name)

	if !a.noConfig {
		if err := bindConfig(cmd.Flags()); err != nil {
			return err
		}
	}

	if a.options != nil {
		if completeable, ok := a.options.(CompleteableOptions); ok {
			if err := completeable.Complete(); err != nil {
				return err
			}
		}
		if errs := a.options.Validate(); len(errs) != 0 {
			return fmt.Errorf("invalid options: %v", errs)
		}
	}

	if a.runFunc != nil {
		return a.runFunc(a.basename)
	}
	return nil
}

// Run parses flags and executes the application, exiting non-zero on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// Command exposes the underlying cobra command, mainly for tests.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

func printWorkingBanner(name string) {
	fmt.Fprintf(os.Stdout, "%s %s\n",
		color.GreenString("==>"), color.New(color.Bold).Sprintf("Starting %s ...", name))
}
