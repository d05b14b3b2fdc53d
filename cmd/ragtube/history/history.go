// Package historycmder provides the history command for browsing stored
// chat sessions.
package historycmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragtube/cmd/ragtube/bootstrap"
	"github.com/papercomputeco/ragtube/pkg/cliui"
	"github.com/papercomputeco/ragtube/pkg/config"
	"github.com/papercomputeco/ragtube/pkg/storage"
	"github.com/papercomputeco/ragtube/pkg/utils"
)

const historyLongDesc string = `Browse stored chat history.

Without arguments, lists stored sessions, most recent first. With a session
id, prints every question and answer of that session in order. Use --sources
to include the retrieved transcripts under each answer.

Examples:
  ragtube history
  ragtube history --limit 5
  ragtube history 3f2b9c1e-...`

const historyShortDesc string = "Browse stored chat history"

// previewLength bounds the first question shown per session.
const previewLength = 60

type historyCommander struct {
	storageProvider string
	sqlitePath      string
	postgresDSN     string

	limit   int
	offset  int
	sources bool
}

var historyFlags = []string{
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresDSN,
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l := bootstrap.Logger(cmd)

			cfg, err := bootstrap.LoadConfig(cmd, historyFlags...)
			if err != nil {
				return err
			}

			driver, err := bootstrap.OpenStorage(ctx, cfg, bootstrap.ConfigDir(cmd), l)
			if err != nil {
				return err
			}
			defer driver.Close()

			if len(args) == 1 {
				return PrintSession(ctx, cmd.OutOrStdout(), driver, args[0], cmder.sources)
			}
			return ListSessions(ctx, cmd.OutOrStdout(), driver, storage.SessionQuery{
				Limit:  cmder.limit,
				Offset: cmder.offset,
			})
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagStorageProvider, &cmder.storageProvider)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Registry, config.FlagPostgresDSN, &cmder.postgresDSN)
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 20, "Maximum number of sessions to list (0 for all)")
	cmd.Flags().IntVar(&cmder.offset, "offset", 0, "Number of sessions to skip")
	cmd.Flags().BoolVar(&cmder.sources, "sources", false, "Print retrieved transcripts under each answer")

	return cmd
}

// ListSessions prints a page of stored sessions.
func ListSessions(ctx context.Context, w io.Writer, driver storage.Driver, q storage.SessionQuery) error {
	sessions, err := driver.ListSessions(ctx, q)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintf(w, "\n  %s No stored sessions.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(w, "\n  %s\n\n", cliui.HeaderStyle.Render("Sessions"))
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s  %s  %s\n",
			cliui.IDStyle.Render(s.ID),
			cliui.DimStyle.Render(s.UpdatedAt.Local().Format("Jan 2 15:04")),
			cliui.DimStyle.Render(strconv.Itoa(s.MessageCount)+" messages"),
		)
		if s.FirstQuestion != "" {
			fmt.Fprintf(w, "    %s\n", cliui.ValueStyle.Render(utils.TruncateRunes(s.FirstQuestion, previewLength)))
		}
	}
	fmt.Fprintln(w)

	return nil
}

// PrintSession prints every message of one stored session.
func PrintSession(ctx context.Context, w io.Writer, driver storage.Driver, sessionID string, sources bool) error {
	msgs, err := driver.GetSession(ctx, sessionID)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("no stored session with id %q", sessionID)
		}
		return err
	}

	fmt.Fprintf(w, "\n  %s %s\n\n", cliui.KeyStyle.Render("Session:"), cliui.IDStyle.Render(sessionID))
	for _, m := range msgs {
		label := cliui.UserStyle.Render("you")
		if m.Role != "user" {
			label = cliui.AssistantStyle.Render("ragtube")
		}

		text := m.Text
		if m.IsError {
			text = cliui.ErrorStyle.Render(text)
		}

		fmt.Fprintf(w, "%s %s\n%s\n\n",
			label,
			cliui.DimStyle.Render(utils.FormatTime(m.Timestamp.Local())),
			text,
		)

		if sources && len(m.Context) > 0 {
			fmt.Fprint(w, cliui.RenderSources(m.Context, cliui.DefaultWordWrap))
		}
	}

	return nil
}
