// Package tui is the local operator front end: a terminal chat that
// renders the messages the session engine posts through an in-memory
// transport and feeds the operator's keystrokes back to the manager.
// Keyboard buttons are numbered; typing a number presses the button,
// anything else is sent as text.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mbaylis/curator/internal/engine"
	"github.com/mbaylis/curator/internal/transport"
)

// localChat is the chat id of the terminal conversation. There is only
// one chat in the terminal front end.
const localChat int64 = 1

// maxVisibleMessages bounds how much history the view renders.
const maxVisibleMessages = 10

// App wraps the Bubbletea program.
type App struct {
	model Model
}

// New creates the terminal front end over a manager and the recorder the
// manager posts through.
func New(manager *engine.Manager, recorder *transport.Recorder, operatorID int64) *App {
	return &App{model: NewModel(manager, recorder, operatorID)}
}

// Run starts the TUI and blocks until the operator quits.
func (a *App) Run() error {
	// Open with the root menu so the first screen is not empty.
	if err := a.model.manager.HandleText(localChat, nil, "/menu", a.model.operatorID); err != nil {
		return err
	}
	program := tea.NewProgram(a.model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// tickMsg is sent periodically so messages posted by background work
// (directory watchers) appear without a keystroke.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the Bubbletea model for the operator chat.
type Model struct {
	manager    *engine.Manager
	recorder   *transport.Recorder
	operatorID int64

	input   textinput.Model
	errText string
	width   int
	height  int
}

// NewModel creates the initial model.
func NewModel(manager *engine.Manager, recorder *transport.Recorder, operatorID int64) Model {
	input := textinput.New()
	input.Placeholder = "number = press button, r <text> = reply, /menu = menu"
	input.Focus()
	input.CharLimit = 256
	return Model{
		manager:    manager,
		recorder:   recorder,
		operatorID: operatorID,
		input:      input,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tick()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.submit()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit interprets the input line and feeds it to the manager.
func (m *Model) submit() {
	text := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	m.errText = ""
	if text == "" {
		return
	}

	var err error
	switch {
	case isNumber(text):
		err = m.pressButton(text)
	case strings.HasPrefix(text, "r "):
		err = m.reply(strings.TrimSpace(strings.TrimPrefix(text, "r ")))
	default:
		err = m.manager.HandleText(localChat, nil, text, m.operatorID)
	}
	if err != nil {
		m.errText = err.Error()
	}
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// pressButton resolves a typed number against the newest message with a
// keyboard.
func (m *Model) pressButton(text string) error {
	message, buttons, ok := m.activeKeyboard()
	if !ok {
		return fmt.Errorf("there are no buttons to press")
	}
	n, _ := strconv.Atoi(text)
	if n < 1 || n > len(buttons) {
		return fmt.Errorf("button %d does not exist", n)
	}
	return m.manager.HandleChoice(localChat, message.Handle, buttons[n-1].Data, m.operatorID)
}

// reply sends text as a reply to the newest open item message.
func (m *Model) reply(text string) error {
	live := m.recorder.Live()
	for i := len(live) - 1; i >= 0; i-- {
		if isItemMessage(live[i]) {
			handle := live[i].Handle
			return m.manager.HandleText(localChat, &handle, text, m.operatorID)
		}
	}
	return fmt.Errorf("there is no open item to reply to")
}

// activeKeyboard returns the newest live message carrying buttons.
func (m *Model) activeKeyboard() (transport.Message, []transport.Button, bool) {
	live := m.recorder.Live()
	for i := len(live) - 1; i >= 0; i-- {
		if buttons := flatten(live[i].Keyboard); len(buttons) > 0 {
			return live[i], buttons, true
		}
	}
	return transport.Message{}, nil, false
}

func flatten(kb transport.Keyboard) []transport.Button {
	var buttons []transport.Button
	for _, row := range kb {
		buttons = append(buttons, row...)
	}
	return buttons
}

// isItemMessage reports whether a message is one of the engine's item
// posts, recognizable by its label buttons.
func isItemMessage(msg transport.Message) bool {
	for _, b := range flatten(msg.Keyboard) {
		if strings.HasPrefix(b.Data, "label:") {
			return true
		}
	}
	return false
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Curator"))
	b.WriteString("\n")

	live := m.recorder.Live()
	if len(live) > maxVisibleMessages {
		live = live[len(live)-maxVisibleMessages:]
	}

	activeHandle := transport.MessageHandle(0)
	if message, _, ok := m.activeKeyboard(); ok {
		activeHandle = message.Handle
	}

	for _, msg := range live {
		b.WriteString(renderContent(msg.Content))
		b.WriteString("\n")
		if len(msg.Keyboard) > 0 {
			b.WriteString(renderKeyboard(msg.Keyboard, msg.Handle == activeHandle))
		}
		b.WriteString("\n")
	}

	if m.errText != "" {
		b.WriteString(errorStyle.Render(m.errText))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString(helpStyle.Render("\nenter to send · esc to quit"))
	return b.String()
}

func renderContent(content transport.Content) string {
	switch content.Kind {
	case transport.KindImage:
		return attachmentStyle.Render(fmt.Sprintf("[image] %s", content.Path))
	case transport.KindDocument:
		return attachmentStyle.Render(fmt.Sprintf("[file] %s", content.Path))
	default:
		return messageStyle.Render(content.Text)
	}
}

// renderKeyboard shows the buttons of one message. Only the newest
// keyboard is numbered; older ones are inert history.
func renderKeyboard(kb transport.Keyboard, active bool) string {
	var rows []string
	n := 0
	for _, row := range kb {
		var cells []string
		for _, button := range row {
			n++
			if active {
				cells = append(cells, buttonStyle.Render(fmt.Sprintf("[%d] %s", n, button.Label)))
			} else {
				cells = append(cells, helpStyle.Render(fmt.Sprintf("· %s", button.Label)))
			}
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(cells, "  ")))
	}
	return strings.Join(rows, "\n") + "\n"
}
