package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pairlink/pairlink/internal/call"
	"github.com/pairlink/pairlink/internal/execute"
	"github.com/pairlink/pairlink/internal/protocol"
	"github.com/pairlink/pairlink/internal/session"
)

// Focusable panes, cycled with Tab.
const (
	focusPad = iota
	focusCode
	focusInput
	focusChat
	focusCount
)

// CallController is the slice of the call negotiator the workspace
// needs. Nil when the session runs without a call.
type CallController interface {
	State() call.State
	SetMuted(muted bool)
	Muted() bool
	VideoOn() bool
	DisableVideo()
	EnableVideo() error
}

// Runner executes code remotely. Satisfied by execute.Client.
type Runner interface {
	Run(ctx context.Context, language, source, stdin string) (protocol.ExecutionResult, error)
}

// Messages delivered from outside the bubbletea loop via Program.Send.
type (
	// RemoteMsg signals that a peer event updated the shared workspace.
	RemoteMsg struct {
		Event string
		Chat  *protocol.ChatMessage
	}

	// CallStateMsg signals a call state transition.
	CallStateMsg struct {
		State call.State
	}

	// PeerMsg signals peer arrival or departure on the relay.
	PeerMsg struct {
		Joined bool
	}

	// DisconnectedMsg signals that the relay connection dropped.
	DisconnectedMsg struct{}

	execDoneMsg struct {
		result protocol.ExecutionResult
		err    error
	}
)

// ModelOptions configures the workspace model.
type ModelOptions struct {
	Session  *session.Session
	Runner   Runner
	Call     CallController
	Room     string
	Name     string
	Language string
}

// Model is the interactive two-pane workspace: shared pad and code
// editor on top, stdin and execution output below, chat at the bottom.
type Model struct {
	session *session.Session
	runner  Runner
	call    CallController

	room     string
	name     string
	language string

	pad       textarea.Model
	code      textarea.Model
	input     textarea.Model
	chatInput textinput.Model
	chatLog   []string

	output    protocol.ExecutionResult
	running   bool
	spinner   spinner.Model
	callState call.State
	peerHere  bool
	statusMsg string

	focus    int
	width    int
	height   int
	quitting bool
}

func NewModel(opts ModelOptions) *Model {
	pad := textarea.New()
	pad.Placeholder = "Shared notes..."
	pad.ShowLineNumbers = false
	pad.Focus()

	code := textarea.New()
	code.Placeholder = "Write code here..."
	code.ShowLineNumbers = true

	input := textarea.New()
	input.Placeholder = "stdin for the program..."
	input.ShowLineNumbers = false

	chat := textinput.New()
	chat.Placeholder = "Message your peer..."

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	callState := call.StateIdle
	if opts.Call != nil {
		callState = opts.Call.State()
	}

	return &Model{
		session:   opts.Session,
		runner:    opts.Runner,
		call:      opts.Call,
		room:      opts.Room,
		name:      opts.Name,
		language:  opts.Language,
		pad:       pad,
		code:      code,
		input:     input,
		chatInput: chat,
		spinner:   s,
		callState: callState,
	}
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			// Trailing keystrokes still reach the peer before teardown.
			m.session.Flush()
			m.session.Close()
			return m, tea.Quit

		case "tab":
			m.cycleFocus()
			return m, nil

		case "ctrl+r":
			return m, m.runCode()

		case "ctrl+l":
			next := execute.Next(m.language)
			m.language = next.Name
			m.session.SelectLanguage(next.Name)
			return m, nil

		case "ctrl+a":
			if m.call != nil {
				m.call.SetMuted(!m.call.Muted())
			}
			return m, nil

		case "ctrl+v":
			if m.call != nil {
				if m.call.VideoOn() {
					m.call.DisableVideo()
				} else if err := m.call.EnableVideo(); err != nil {
					// Call goes on audio-only.
					m.statusMsg = fmt.Sprintf("video unavailable: %v", err)
				}
			}
			return m, nil

		case "enter":
			if m.focus == focusChat {
				m.sendChat()
				return m, nil
			}
		}

		cmds = append(cmds, m.updateFocused(msg))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case spinner.TickMsg:
		if m.running {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case RemoteMsg:
		m.applyRemote(msg)

	case CallStateMsg:
		m.callState = msg.State

	case PeerMsg:
		m.peerHere = msg.Joined
		if msg.Joined {
			m.statusMsg = "peer joined"
		} else {
			m.statusMsg = "peer left"
		}

	case DisconnectedMsg:
		m.quitting = true
		m.statusMsg = "connection lost"
		return m, tea.Quit

	case execDoneMsg:
		m.running = false
		if msg.err != nil {
			m.statusMsg = msg.err.Error()
			break
		}
		m.output = msg.result
		m.session.PublishResult(msg.result)
	}

	return m, tea.Batch(cmds...)
}

// updateFocused routes keystrokes into the focused pane and propagates
// the resulting text through the session.
func (m *Model) updateFocused(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd

	switch m.focus {
	case focusPad:
		m.pad, cmd = m.pad.Update(msg)
		m.session.SetPad(m.pad.Value())
	case focusCode:
		m.code, cmd = m.code.Update(msg)
		m.session.SetCode(m.code.Value())
	case focusInput:
		m.input, cmd = m.input.Update(msg)
		m.session.SetInput(m.input.Value())
	case focusChat:
		m.chatInput, cmd = m.chatInput.Update(msg)
	}
	return cmd
}

func (m *Model) cycleFocus() {
	m.pad.Blur()
	m.code.Blur()
	m.input.Blur()
	m.chatInput.Blur()

	m.focus = (m.focus + 1) % focusCount
	switch m.focus {
	case focusPad:
		m.pad.Focus()
	case focusCode:
		m.code.Focus()
	case focusInput:
		m.input.Focus()
	case focusChat:
		m.chatInput.Focus()
	}
}

// applyRemote refreshes the affected pane from the session snapshot.
// The session already resolved the write, the view just catches up.
func (m *Model) applyRemote(msg RemoteMsg) {
	snap := m.session.Snapshot()

	switch msg.Event {
	case protocol.EventPad:
		m.pad.SetValue(snap.Pad)
	case protocol.EventCode:
		m.code.SetValue(snap.Code)
	case protocol.EventInput:
		m.input.SetValue(snap.Input)
	case protocol.EventLanguage:
		m.language = snap.Language
	case protocol.EventOutput:
		m.output = snap.Output
	case protocol.EventChat:
		if msg.Chat != nil {
			m.chatLog = append(m.chatLog, fmt.Sprintf("%s %s",
				ChatPeerStyle.Render(msg.Chat.From+":"), msg.Chat.Text))
		}
	case protocol.EventStateSnapshot:
		m.pad.SetValue(snap.Pad)
		m.code.SetValue(snap.Code)
		m.input.SetValue(snap.Input)
		m.language = snap.Language
		m.output = snap.Output
	}
}

func (m *Model) runCode() tea.Cmd {
	if m.running {
		return nil
	}

	source := m.code.Value()
	stdin := m.input.Value()
	language := m.language

	m.running = true
	m.statusMsg = ""

	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		result, err := m.runner.Run(context.Background(), language, source, stdin)
		return execDoneMsg{result: result, err: err}
	})
}

func (m *Model) sendChat() {
	text := strings.TrimSpace(m.chatInput.Value())
	if text == "" {
		return
	}
	m.session.SendChat(text)
	m.chatLog = append(m.chatLog, fmt.Sprintf("%s %s",
		BoldStyle.Render("me:"), text))
	m.chatInput.SetValue("")
}

func (m *Model) resize() {
	if m.width < 20 || m.height < 12 {
		return
	}
	paneWidth := m.width/2 - 4
	topHeight := m.height/2 - 3
	bottomHeight := m.height - topHeight - 9

	m.pad.SetWidth(paneWidth)
	m.pad.SetHeight(topHeight)
	m.code.SetWidth(paneWidth)
	m.code.SetHeight(topHeight)
	m.input.SetWidth(paneWidth)
	m.input.SetHeight(bottomHeight)
	m.chatInput.Width = m.width - 10
}

func (m *Model) View() string {
	if m.quitting {
		if m.statusMsg != "" {
			return MutedStyle.Render(m.statusMsg) + "\n"
		}
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderPanes())
	b.WriteString("\n")
	b.WriteString(m.renderChat())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(MutedStyle.Render(
		"tab: switch pane • ctrl+r: run • ctrl+l: language • ctrl+a: mute • ctrl+v: camera • ctrl+c: quit"))

	return b.String()
}

func (m *Model) renderPanes() string {
	top := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderPane("Pad", m.pad.View(), m.focus == focusPad),
		m.renderPane("Code", m.code.View(), m.focus == focusCode),
	)
	bottom := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderPane("Stdin", m.input.View(), m.focus == focusInput),
		m.renderPane("Output", m.renderOutput(), false),
	)
	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func (m *Model) renderPane(title, content string, focused bool) string {
	style := PaneStyle
	if focused {
		style = FocusedPaneStyle
	}
	return style.Render(PaneTitleStyle.Render(title) + "\n" + content)
}

func (m *Model) renderOutput() string {
	if m.running {
		return fmt.Sprintf("%s running...", m.spinner.View())
	}

	var parts []string
	if m.output.Stdout != "" {
		parts = append(parts, OutputStyle.Render(m.output.Stdout))
	}
	if m.output.Stderr != "" {
		parts = append(parts, StderrStyle.Render(m.output.Stderr))
	}
	if len(parts) == 0 {
		return MutedStyle.Render("no output yet (ctrl+r to run)")
	}
	return strings.Join(parts, "\n")
}

func (m *Model) renderChat() string {
	const keep = 3
	log := m.chatLog
	if len(log) > keep {
		log = log[len(log)-keep:]
	}

	style := PaneStyle
	if m.focus == focusChat {
		style = FocusedPaneStyle
	}

	body := strings.Join(log, "\n")
	if body != "" {
		body += "\n"
	}
	return style.Render(PaneTitleStyle.Render("Chat") + "\n" + body + m.chatInput.View())
}

func (m *Model) renderStatusBar() string {
	peer := MutedStyle.Render(IconPeer + " waiting for peer")
	if m.peerHere {
		peer = SuccessStyle.Render(IconPeer + " peer here")
	}

	callPart := ""
	if m.call != nil {
		mic := IconMic
		if m.call.Muted() {
			mic = IconMuted
		}
		cam := IconCamera
		if !m.call.VideoOn() {
			cam = MutedStyle.Render(IconCamera)
		}
		callPart = fmt.Sprintf(" │ %s %s %s %s", IconCall, m.callState, mic, cam)
	}

	status := fmt.Sprintf("%s %s │ %s │ %s%s",
		IconRoom, m.room, m.language, peer, callPart)
	if m.statusMsg != "" {
		status += " │ " + WarningStyle.Render(m.statusMsg)
	}

	return StatusBarStyle.Render(status)
}
