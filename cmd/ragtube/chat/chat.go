// Package chatcmder provides the chat command for interactive conversations
// with the RAG backend.
package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ragtube/cmd/ragtube/bootstrap"
	statuscmder "github.com/papercomputeco/ragtube/cmd/ragtube/status"
	"github.com/papercomputeco/ragtube/pkg/chat"
	"github.com/papercomputeco/ragtube/pkg/cliui"
	"github.com/papercomputeco/ragtube/pkg/config"
	"github.com/papercomputeco/ragtube/pkg/dotdir"
	"github.com/papercomputeco/ragtube/pkg/storage"
	"github.com/papercomputeco/ragtube/pkg/transcript"
	"github.com/papercomputeco/ragtube/pkg/worker"
)

const chatLongDesc string = `Start an interactive chat with the RAG backend.

Answers are generated from YouTube transcripts and streamed as they arrive.
Every exchange is saved to history unless --no-history is set, and
--resume continues the last saved conversation.

Commands inside the chat:
  /channels              List the indexed channels
  /channel <id|title>    Filter answers by channel ("all" to clear)
  /sources               Show the transcripts behind the last answer
  /help                  Show the commands
  /exit                  Quit (Ctrl+D also works)

Use --tui for a full-screen interface where Tab cycles the channel filter.

Examples:
  ragtube chat
  ragtube chat --channel UC123
  ragtube chat --tui --resume`

const chatShortDesc string = "Interactive chat with YouTube transcripts"

type chatCommander struct {
	apiTarget string
	channel   string
	timeout   string

	tui       bool
	noHistory bool
	resume    bool

	logger *slog.Logger
}

var chatFlags = []string{
	config.FlagAPITarget,
	config.FlagChannel,
	config.FlagTimeout,
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagEventStream,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.Registry, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, config.Registry, config.FlagChannel, &cmder.channel)
	config.AddStringFlag(cmd, config.Registry, config.FlagTimeout, &cmder.timeout)
	cmd.Flags().BoolVar(&cmder.tui, "tui", false, "Use the full-screen interface")
	cmd.Flags().BoolVar(&cmder.noHistory, "no-history", false, "Do not save exchanges to history")
	cmd.Flags().BoolVar(&cmder.resume, "resume", false, "Continue the last saved conversation")

	// Storage and event stream flags are accepted but hidden to keep --help short.
	for _, key := range []string{
		config.FlagStorageProvider,
		config.FlagSQLite,
		config.FlagPostgresDSN,
		config.FlagEventStream,
		config.FlagKafkaBrokers,
		config.FlagKafkaTopic,
	} {
		var discard string
		config.AddStringFlag(cmd, config.Registry, key, &discard)
		_ = cmd.Flags().MarkHidden(config.Registry[key].Name)
	}

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	c.logger = bootstrap.Logger(cmd)
	configDir := bootstrap.ConfigDir(cmd)
	out := cmd.OutOrStdout()

	if c.resume && c.noHistory {
		return errors.New("--resume needs history; drop --no-history")
	}

	cfg, err := bootstrap.LoadConfig(cmd, chatFlags...)
	if err != nil {
		return err
	}

	client, err := bootstrap.NewClient(cfg, configDir, c.logger)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	if err := statuscmder.CheckReadiness(ctx, out, client); err != nil {
		return err
	}

	selector := chat.NewSelector(c.logger)
	if err := cliui.Step(out, "Loading channels", func() error {
		return selector.Load(ctx, client)
	}); err != nil {
		fmt.Fprintf(out, "  %s %s\n",
			cliui.WarnStyle.Render("!"),
			cliui.DimStyle.Render("Channel list unavailable, answers will search all channels"),
		)
	}

	opts := []chat.Option{chat.WithLogger(c.logger)}
	channelID := cfg.Client.ChannelID

	var driver storage.Driver
	if !c.noHistory {
		driver, err = bootstrap.OpenStorage(ctx, cfg, configDir, c.logger)
		if err != nil {
			return err
		}
		defer driver.Close()

		publisher, err := bootstrap.OpenPublisher(cfg, c.logger)
		if err != nil {
			return err
		}
		defer publisher.Close()

		pool, err := worker.NewPool(&worker.Config{
			Driver:     driver,
			Publisher:  publisher,
			NumWorkers: 1,
			Logger:     c.logger,
		})
		if err != nil {
			return err
		}
		defer pool.Close()

		opts = append(opts, chat.WithCompletionHook(pool.Hook()))
	}

	resumed := false
	if c.resume {
		state, t, err := c.loadResumed(ctx, driver, configDir)
		if err != nil {
			return err
		}
		if state != nil {
			resumed = true
			opts = append(opts, chat.WithSessionID(state.SessionID), chat.WithTranscript(t))
			if !cmd.Flags().Changed(config.Registry[config.FlagChannel].Name) && state.ChannelID != "" {
				channelID = state.ChannelID
			}
			fmt.Fprintf(out, "  %s Resuming %s %s\n",
				cliui.SuccessMark,
				cliui.IDStyle.Render(state.SessionID),
				cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", t.Len())),
			)
		}
	}
	if !resumed {
		opts = append(opts, chat.WithGreeting(chat.DefaultGreeting))
	}

	if err := selector.Select(channelID); err != nil {
		fmt.Fprintf(out, "  %s %s\n", cliui.WarnStyle.Render("!"), cliui.DimStyle.Render(err.Error()))
	}

	session := chat.NewSession(client, opts...)
	unbind := session.Bind(selector)
	defer unbind()

	if driver != nil {
		defer c.saveState(session, configDir)
		c.saveState(session, configDir)
	}

	if c.tui {
		return runTUI(ctx, session, selector)
	}

	fmt.Fprintln(out)
	r := &REPL{
		In:       cmd.InOrStdin(),
		Out:      out,
		Session:  session,
		Selector: selector,
		Lister:   client,
	}
	return r.Run(ctx)
}

// loadResumed rebuilds the transcript of the last saved session. It returns
// a nil state when there is nothing to resume.
func (c *chatCommander) loadResumed(ctx context.Context, driver storage.Driver, configDir string) (*dotdir.SessionState, *transcript.Transcript, error) {
	mgr := dotdir.NewManager()
	state, err := mgr.LoadSessionState(configDir)
	if err != nil {
		c.logger.Warn("discarding unreadable session state", "error", err)
		if err := mgr.ClearSessionState(configDir); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	if state == nil {
		c.logger.Debug("no saved session to resume")
		return nil, nil, nil
	}

	msgs, err := driver.GetSession(ctx, state.SessionID)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			// Saved before its first exchange completed.
			c.logger.Debug("saved session has no stored messages", "session_id", state.SessionID)
			return state, transcript.New(), nil
		}
		return nil, nil, fmt.Errorf("loading session %s: %w", state.SessionID, err)
	}

	t := transcript.New()
	for _, m := range msgs {
		t.Append(m.ToTranscript())
	}
	return state, t, nil
}

func (c *chatCommander) saveState(session *chat.Session, configDir string) {
	state := &dotdir.SessionState{
		SessionID: session.ID(),
		ChannelID: session.Channel(),
	}
	if err := dotdir.NewManager().SaveSessionState(state, configDir); err != nil {
		c.logger.Warn("failed to save session state", "error", err)
	}
}
