// Package cmd assembles the revctl command tree: the terminal client for a
// running lorekeeper server.
package cmd

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/wyrdlab/reverie/internal/revctl/cmd/chat"
	"github.com/wyrdlab/reverie/internal/revctl/cmd/info"
	"github.com/wyrdlab/reverie/internal/revctl/cmd/sessions"
	"github.com/wyrdlab/reverie/pkg/cli/genericclioptions"
)

// GlobalOptions are shared by every subcommand.
type GlobalOptions struct {
	Server string
	Token  string
}

// NewRevctlCommand builds the root command.
func NewRevctlCommand() *cobra.Command {
	global := &GlobalOptions{}
	streams := genericclioptions.NewStdIOStreams()

	root := &cobra.Command{
		Use:   "revctl",
		Short: "Terminal client for the reverie assistant",
		Long: heredoc.Doc(`
			revctl talks to a running lorekeeper server: interactive chat,
			session management and host diagnostics.`),
		Example: heredoc.Doc(`
			# Start an interactive chat against a local server
			revctl chat

			# Continue an existing session
			revctl chat --session 4f1f6c3a-...

			# List your sessions
			revctl sessions list`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&global.Server, "server", "http://127.0.0.1:8711",
		"Base URL of the lorekeeper server.")
	root.PersistentFlags().StringVar(&global.Token, "token", "",
		"Bearer token (empty relies on the server's local bypass).")

	root.AddCommand(chat.NewCmdChat(func() (string, string) { return global.Server, global.Token }, streams))
	root.AddCommand(sessions.NewCmdSessions(func() (string, string) { return global.Server, global.Token }, streams))
	root.AddCommand(info.NewCmdInfo(streams))

	return root
}
