package chatcmder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/papercomputeco/ragtube/pkg/chat"
	"github.com/papercomputeco/ragtube/pkg/cliui"
	"github.com/papercomputeco/ragtube/pkg/transcript"
)

const inputHeight = 3

var (
	tuiTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	tuiMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	tuiChannelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("215"))
	tuiDividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
)

type tuiKeyMap struct {
	Submit   key.Binding
	Channel  key.Binding
	Sources  key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding
}

func (k tuiKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Channel, k.Sources, k.PageUp, k.PageDown, k.Quit}
}

func (k tuiKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Submit, k.Channel, k.Sources}, {k.PageUp, k.PageDown, k.Quit}}
}

func defaultTUIKeyMap() tuiKeyMap {
	return tuiKeyMap{
		Submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "ask")),
		Channel:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "channel")),
		Sources:  key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "sources")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
	}
}

// transcriptChangedMsg is sent for every transcript mutation.
type transcriptChangedMsg struct{}

// submitDoneMsg is sent when a submission finishes.
type submitDoneMsg struct {
	outcome chat.Outcome
	err     error
}

type tuiModel struct {
	ctx      context.Context
	session  *chat.Session
	selector *chat.Selector

	// pending counts submissions still running in command goroutines.
	pending *sync.WaitGroup

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	keys     tuiKeyMap

	busy        bool
	showSources bool
	status      string
	width       int
	height      int

	// rendered caches glamour output of frozen messages by transcript index.
	rendered map[int]string
}

func runTUI(ctx context.Context, session *chat.Session, selector *chat.Selector) error {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pending sync.WaitGroup
	program := bubbletea.NewProgram(newTUIModel(ctx, session, selector, &pending),
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)

	unsubscribe := session.Transcript().Subscribe(func(transcript.Change) {
		program.Send(transcriptChangedMsg{})
	})
	defer unsubscribe()

	_, err := program.Run()

	// Quitting does not wait for commands. Stop a streaming answer and let
	// its completion hooks finish before the caller tears down storage.
	cancel()
	pending.Wait()
	return err
}

func newTUIModel(ctx context.Context, session *chat.Session, selector *chat.Selector, pending *sync.WaitGroup) tuiModel {
	input := textarea.New()
	input.Placeholder = "Ask about the indexed channels..."
	input.ShowLineNumbers = false
	input.SetHeight(inputHeight)
	input.KeyMap.InsertNewline.SetEnabled(false)
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return tuiModel{
		ctx:      ctx,
		session:  session,
		selector: selector,
		pending:  pending,
		input:    input,
		viewport: viewport.New(cliui.DefaultWordWrap, 20),
		spinner:  sp,
		help:     help.New(),
		keys:     defaultTUIKeyMap(),
		rendered: make(map[int]string),
	}
}

func (m tuiModel) Init() bubbletea.Cmd {
	return textarea.Blink
}

func (m tuiModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-inputHeight-4, 1)
		m.rendered = make(map[int]string)
		m.refresh()
		return m, nil

	case transcriptChangedMsg:
		m.refresh()
		return m, nil

	case submitDoneMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.status = msg.err.Error()
		case msg.outcome.State == chat.Failed:
			m.status = "request failed"
		default:
			m.status = "answered in " + cliui.FormatDuration(msg.outcome.Duration())
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd bubbletea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case bubbletea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, bubbletea.Quit

		case key.Matches(msg, m.keys.Submit):
			return m.submit()

		case key.Matches(msg, m.keys.Channel):
			if m.busy {
				return m, nil
			}
			m.selector.Cycle()
			m.status = "channel: " + m.selector.Label()
			return m, nil

		case key.Matches(msg, m.keys.Sources):
			m.showSources = !m.showSources
			m.rendered = make(map[int]string)
			m.refresh()
			return m, nil

		case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
			var cmd bubbletea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd bubbletea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m tuiModel) submit() (bubbletea.Model, bubbletea.Cmd) {
	if m.busy {
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	m.input.Reset()
	m.busy = true
	m.status = ""

	session, ctx, pending := m.session, m.ctx, m.pending
	pending.Add(1)
	return m, bubbletea.Batch(m.spinner.Tick, func() bubbletea.Msg {
		defer pending.Done()
		outcome, err := session.Submit(ctx, text)
		return submitDoneMsg{outcome: outcome, err: err}
	})
}

func (m *tuiModel) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *tuiModel) renderTranscript() string {
	width := m.viewport.Width
	if width <= 0 {
		width = cliui.DefaultWordWrap
	}
	wrap := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for i, msg := range m.session.Transcript().Messages() {
		switch {
		case msg.Role == transcript.RoleUser:
			b.WriteString(cliui.UserStyle.Render("you") + "\n")
			b.WriteString(wrap.Render(msg.Text) + "\n\n")

		case msg.IsError:
			b.WriteString(cliui.AssistantStyle.Render("ragtube") + "\n")
			b.WriteString(cliui.ErrorStyle.Render(wrap.Render(msg.Text)) + "\n\n")

		case !msg.Frozen:
			b.WriteString(cliui.AssistantStyle.Render("ragtube") + "\n")
			b.WriteString(wrap.Render(msg.Text) + "\n\n")

		default:
			b.WriteString(cliui.AssistantStyle.Render("ragtube") + "\n")
			b.WriteString(m.renderFrozen(i, msg, width))
		}
	}
	return b.String()
}

func (m *tuiModel) renderFrozen(index int, msg transcript.Message, width int) string {
	if out, ok := m.rendered[index]; ok {
		return out
	}

	out, err := cliui.RenderMarkdown(msg.Text, width)
	if err != nil {
		out = msg.Text + "\n\n"
	}
	if m.showSources && msg.HasContext() {
		out += cliui.RenderSources(msg.Context, width)
	}

	m.rendered[index] = out
	return out
}

func (m tuiModel) View() string {
	header := tuiTitleStyle.Render("ragtube") + "  " +
		tuiMutedStyle.Render("channel:") + " " + tuiChannelStyle.Render(m.selector.Label())
	if m.busy {
		header += "  " + m.spinner.View()
	} else if m.status != "" {
		header += "  " + tuiMutedStyle.Render(m.status)
	}

	divider := tuiDividerStyle.Render(strings.Repeat("─", max(m.width, 1)))

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		header,
		m.viewport.View(),
		divider,
		m.input.View(),
		m.help.View(m.keys),
	)
}
