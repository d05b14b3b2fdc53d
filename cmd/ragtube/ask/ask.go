// Package askcmder provides the ask command for one-shot questions.
package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragtube/cmd/ragtube/bootstrap"
	"github.com/papercomputeco/ragtube/pkg/chat"
	"github.com/papercomputeco/ragtube/pkg/cliui"
	"github.com/papercomputeco/ragtube/pkg/config"
	"github.com/papercomputeco/ragtube/pkg/rag"
	"github.com/papercomputeco/ragtube/pkg/transcript"
	"github.com/papercomputeco/ragtube/pkg/worker"
)

const askLongDesc string = `Ask a single question and stream the answer to stdout.

The answer is generated by the RAG backend from YouTube transcripts. Use
--sources to print the retrieved transcripts after the answer. The exchange
is saved to history unless --no-history is set.

Exits non-zero when the backend request fails.

Examples:
  ragtube ask "What does the channel say about sourdough starters?"
  ragtube ask --channel UC123 --sources "Which camera do they use?"`

const askShortDesc string = "Ask a single question"

type askCommander struct {
	apiTarget string
	channel   string
	sources   bool
	noHistory bool
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagChannel, &cmder.channel)
	cmd.Flags().BoolVar(&cmder.sources, "sources", false, "Print the retrieved transcripts after the answer")
	cmd.Flags().BoolVar(&cmder.noHistory, "no-history", false, "Do not save the exchange to history")

	return cmd
}

func (c *askCommander) run(cmd *cobra.Command, question string) error {
	ctx := cmd.Context()
	l := bootstrap.Logger(cmd)

	cfg, err := bootstrap.LoadConfig(cmd,
		config.FlagAPITarget,
		config.FlagChannel,
	)
	if err != nil {
		return err
	}

	client, err := bootstrap.NewClient(cfg, bootstrap.ConfigDir(cmd), l)
	if err != nil {
		return err
	}

	opts := []chat.Option{
		chat.WithLogger(l),
		chat.WithChannel(cfg.Client.ChannelID),
	}

	if !c.noHistory {
		driver, err := bootstrap.OpenStorage(ctx, cfg, bootstrap.ConfigDir(cmd), l)
		if err != nil {
			return err
		}
		defer driver.Close()

		publisher, err := bootstrap.OpenPublisher(cfg, l)
		if err != nil {
			return err
		}
		defer publisher.Close()

		pool, err := worker.NewPool(&worker.Config{
			Driver:     driver,
			Publisher:  publisher,
			NumWorkers: 1,
			Logger:     l,
		})
		if err != nil {
			return err
		}
		// Drains the pending exchange before the driver closes.
		defer pool.Close()

		opts = append(opts, chat.WithCompletionHook(pool.Hook()))
	}

	session := chat.NewSession(client, opts...)
	return Ask(ctx, cmd.OutOrStdout(), session, question, c.sources)
}

// Ask submits question on session, streaming the answer to w as it arrives.
// When showSources is set the retrieved context is rendered after the answer.
func Ask(ctx context.Context, w io.Writer, session *chat.Session, question string, showSources bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		answerIdx = -1
		sources   []rag.SourceDocument
	)
	unsubscribe := session.Transcript().Subscribe(func(ch transcript.Change) {
		if ch.Message.Role != transcript.RoleAssistant || ch.Message.IsError {
			return
		}
		switch ch.Kind {
		case transcript.Appended:
			answerIdx = ch.Index
			fmt.Fprint(w, ch.Message.Text)
			sources = ch.Message.Context
		case transcript.TextAppended:
			if ch.Index == answerIdx {
				fmt.Fprint(w, ch.Delta)
			}
		}
	})
	defer unsubscribe()

	outcome, err := session.Submit(ctx, question)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyQuery) {
			return errors.New("question must not be empty")
		}
		return err
	}
	fmt.Fprintln(w)

	if outcome.State == chat.Failed {
		return fmt.Errorf("%s: %w", chat.ErrorText, outcome.Err)
	}

	if showSources && len(sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprint(w, cliui.RenderSources(sources, cliui.DefaultWordWrap))
	}

	return nil
}
