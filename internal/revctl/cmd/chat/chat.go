package chat

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/wyrdlab/reverie/pkg/cli/genericclioptions"
)

// ConnFunc resolves the server address and token from global flags.
type ConnFunc func() (server, token string)

// NewCmdChat returns the 'chat' subcommand. The TUI writes to the process
// streams directly; streams is accepted for symmetry with the other
// subcommands.
func NewCmdChat(conn ConnFunc, _ genericclioptions.IOStreams) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat with the assistant",
		Example: heredoc.Doc(`
			# Start a fresh conversation
			revctl chat

			# Continue an existing session
			revctl chat --session 4f1f6c3a-9be2-41f0-b5a2-1d2cf6a7e0aa`),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, token := conn()
			return RunTUI(NewClient(server, token, sessionID))
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id to continue.")
	return cmd
}
