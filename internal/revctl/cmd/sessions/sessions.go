// Package sessions implements the 'revctl sessions' subcommands.
package sessions

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/wyrdlab/reverie/pkg/cli/genericclioptions"
	"github.com/wyrdlab/reverie/pkg/utils/json"
)

// ConnFunc resolves the server address and token from global flags.
type ConnFunc func() (server, token string)

var headerStyle = lipgloss.NewStyle().Bold(true)

// NewCmdSessions returns the 'sessions' command group.
func NewCmdSessions(conn ConnFunc, streams genericclioptions.IOStreams) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage conversation sessions",
	}
	cmd.AddCommand(newCmdList(conn, streams))
	cmd.AddCommand(newCmdDelete(conn, streams))
	return cmd
}

type sessionList struct {
	Sessions []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		CreatedAt    string `json:"created_at"`
		LastModified string `json:"last_modified"`
	} `json:"sessions"`
}

func newCmdList(conn ConnFunc, streams genericclioptions.IOStreams) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your sessions",
		Example: heredoc.Doc(`
			# List all sessions on the default server
			revctl sessions list`),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, token := conn()

			var list sessionList
			if err := getJSON(cmd.Context(), server+"/sessions", token, &list); err != nil {
				return err
			}

			table := uitable.New()
			table.MaxColWidth = 48
			table.AddRow(headerStyle.Render("SESSION"), headerStyle.Render("TITLE"), headerStyle.Render("LAST ACTIVITY"))
			for _, s := range list.Sessions {
				title := s.Title
				if title == "" {
					title = "(untitled)"
				}
				table.AddRow(s.ID, title, s.LastModified)
			}
			fmt.Fprintln(streams.Out, table)
			return nil
		},
	}
}

func newCmdDelete(conn ConnFunc, streams genericclioptions.IOStreams) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its archives",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, token := conn()

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodDelete,
				strings.TrimRight(server, "/")+"/sessions/"+args[0], nil)
			if err != nil {
				return err
			}
			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}

			resp, err := httpClient().Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			fmt.Fprintf(streams.Out, "session %s deleted\n", args[0])
			return nil
		},
	}
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func getJSON(ctx context.Context, url, token string, into interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
