package lorekeeper

import (
	"github.com/MakeNowJust/heredoc/v2"

	"github.com/wyrdlab/reverie/internal/lorekeeper/config"
	"github.com/wyrdlab/reverie/internal/lorekeeper/options"
	"github.com/wyrdlab/reverie/pkg/app"
	"github.com/wyrdlab/reverie/pkg/logger"
)

const appName = "lorekeeper"

// NewApp builds the lorekeeper server application.
func NewApp(basename string) *app.App {
	opts := options.NewOptions()
	return app.NewApp(appName,
		basename,
		app.WithOptions(opts),
		app.WithDescription(heredoc.Doc(`
			The lorekeeper is the reverie API server: a multi-user
			conversational assistant with tiered, budget-bounded memory.
			It serves the chat, session and memory endpoints and owns the
			contextual/episodic stores.`)),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.Options) app.RunFunc {
	return func(basename string) error {
		logger.SetLevel(opts.LogOptions.Level)
		if opts.LogOptions.File != "" {
			if err := logger.InitLog(opts.LogOptions.File); err != nil {
				return err
			}
			defer logger.FlushLog()
		}

		cfg, err := config.CreateConfigFromOptions(opts)
		if err != nil {
			return err
		}
		return Run(cfg)
	}
}
