package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	channelscmder "github.com/papercomputeco/ragtube/cmd/ragtube/channels"
	"github.com/papercomputeco/ragtube/pkg/chat"
	"github.com/papercomputeco/ragtube/pkg/cliui"
	"github.com/papercomputeco/ragtube/pkg/transcript"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("ragtube> ")
)

const replHelp = `Commands:
  /channels              List the indexed channels
  /channel <id|title>    Filter answers by channel ("all" to clear)
  /sources               Show the transcripts behind the last answer
  /help                  Show this help
  /exit                  Quit`

// REPL is the line-oriented chat interface.
type REPL struct {
	In       io.Reader
	Out      io.Writer
	Session  *chat.Session
	Selector *chat.Selector
	Lister   chat.ChannelLister
}

// Run prints the existing transcript, then reads lines from In until EOF or
// /exit. Each line is either a command or a question.
func (r *REPL) Run(ctx context.Context) error {
	for _, m := range r.Session.Transcript().Messages() {
		r.printMessage(m)
	}

	fmt.Fprintf(r.Out, "  %s %s\n",
		cliui.KeyStyle.Render("Channel:"),
		cliui.ValueStyle.Render(r.Selector.Label()),
	)
	fmt.Fprintf(r.Out, "  %s\n\n", cliui.DimStyle.Render("Type your question and press Enter. /help for commands, /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(r.In)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(r.Out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := r.HandleCommand(ctx, input); quit {
				break
			}
			continue
		}

		r.Submit(ctx, input)

		if ctx.Err() != nil {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(r.Out)
	return nil
}

// Submit sends question and streams every assistant reply to Out.
func (r *REPL) Submit(ctx context.Context, question string) {
	streaming := -1
	unsubscribe := r.Session.Transcript().Subscribe(func(ch transcript.Change) {
		if ch.Message.Role != transcript.RoleAssistant {
			return
		}
		switch ch.Kind {
		case transcript.Appended:
			if ch.Message.IsError {
				fmt.Fprintf(r.Out, "%s%s\n", assistantPrompt, cliui.ErrorStyle.Render(ch.Message.Text))
				return
			}
			streaming = ch.Index
			fmt.Fprint(r.Out, assistantPrompt+ch.Message.Text)
		case transcript.TextAppended:
			if ch.Index == streaming {
				fmt.Fprint(r.Out, ch.Delta)
			}
		case transcript.Frozen:
			if ch.Index == streaming {
				fmt.Fprintln(r.Out)
			}
		}
	})
	defer unsubscribe()

	outcome, err := r.Session.Submit(ctx, question)
	if err != nil {
		fmt.Fprintf(r.Out, "  %s %v\n", cliui.FailMark, err)
		return
	}

	if outcome.State == chat.Completed && !outcome.EmptyResult {
		fmt.Fprintf(r.Out, "%s\n", cliui.DimStyle.Render(fmt.Sprintf("  %s · /sources to see the transcripts", cliui.FormatDuration(outcome.Duration()))))
	}
	fmt.Fprintln(r.Out)
}

// HandleCommand runs a slash command and reports whether the REPL should
// quit.
func (r *REPL) HandleCommand(ctx context.Context, input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		return true

	case "/help":
		fmt.Fprintf(r.Out, "\n%s\n\n", replHelp)

	case "/channels":
		if err := channelscmder.ListChannels(ctx, r.Out, r.Lister, r.Selector.Selected()); err != nil {
			fmt.Fprintf(r.Out, "  %s %v\n\n", cliui.FailMark, err)
			return false
		}
		// Keep the selector in step with what was just shown.
		if len(r.Selector.Channels()) == 0 {
			_ = r.Selector.Load(ctx, r.Lister)
		}

	case "/channel":
		if arg == "" {
			fmt.Fprintf(r.Out, "  %s %s\n\n", cliui.KeyStyle.Render("Channel:"), cliui.ValueStyle.Render(r.Selector.Label()))
			return false
		}
		if err := r.Selector.SelectByTitle(arg); err != nil {
			fmt.Fprintf(r.Out, "  %s %v\n\n", cliui.FailMark, err)
			return false
		}
		fmt.Fprintf(r.Out, "  %s %s %s\n\n", cliui.SuccessMark, cliui.KeyStyle.Render("Channel:"), cliui.ValueStyle.Render(r.Selector.Label()))

	case "/sources":
		m, ok := lastWithContext(r.Session.Transcript())
		if !ok {
			fmt.Fprintf(r.Out, "  %s\n\n", cliui.DimStyle.Render("No sources yet."))
			return false
		}
		fmt.Fprint(r.Out, cliui.RenderSources(m.Context, cliui.DefaultWordWrap))

	default:
		fmt.Fprintf(r.Out, "  %s %v\n\n", cliui.FailMark, errUnknownCommand(name))
	}

	return false
}

func (r *REPL) printMessage(m transcript.Message) {
	switch {
	case m.Role == transcript.RoleUser:
		fmt.Fprintf(r.Out, "%s%s\n", userPrompt, m.Text)
	case m.IsError:
		fmt.Fprintf(r.Out, "%s%s\n\n", assistantPrompt, cliui.ErrorStyle.Render(m.Text))
	default:
		fmt.Fprintf(r.Out, "%s%s\n\n", assistantPrompt, m.Text)
	}
}

func lastWithContext(t *transcript.Transcript) (transcript.Message, bool) {
	msgs := t.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].HasContext() {
			return msgs[i], true
		}
	}
	return transcript.Message{}, false
}

func errUnknownCommand(name string) error {
	return errors.New("unknown command " + name + ", try /help")
}
