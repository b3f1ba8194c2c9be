package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/jianghu/engine"
	"github.com/nathoo/jianghu/engine/events"
	"github.com/nathoo/jianghu/engine/state"
	"github.com/nathoo/jianghu/types"
)

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // true for echoed player input
	isSystem bool // true for system messages
	isError  bool // true for rejected commands
}

// Model is the Bubble Tea model for the Jianghu TUI.
type Model struct {
	ctx    context.Context
	engine *engine.Engine
	defs   *state.Defs

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated story lines (unstyled, for re-wrapping)

	width    int
	height   int
	ready    bool
	trace    bool
	quitting bool
	stepping bool // an engine call is in flight; its events are not redrawn
	lastCmd  string
}

// gameOutputMsg is a batch of lines to append to the story.
type gameOutputMsg struct {
	input    string   // echoed player input (empty for intro)
	lines    []string // output lines
	isSystem bool     // true for meta-command output
}

// stepDoneMsg is the result of an engine Step run as a command.
type stepDoneMsg struct {
	input  string
	result engine.Result
}

// engineEventMsg forwards an engine event raised outside a Step, such as a
// meditation reply or a combat reveal fired by a timer.
type engineEventMsg struct {
	event types.Event
}

// redrawEvents are the events that change the view on their own.
var redrawEvents = []string{
	events.SceneLoaded,
	events.MeditationReplied,
	events.CombatRevealed,
}

// New creates a TUI model wired to the given engine.
func New(ctx context.Context, eng *engine.Engine, defs *state.Defs) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	return Model{
		ctx:      ctx,
		engine:   eng,
		defs:     defs,
		input:    ti,
		history:  NewHistory(100),
		stepping: true, // until the opening output arrives
	}
}

// Run starts the Bubble Tea program. Engine events are forwarded into the
// program so timed steps redraw the view.
func Run(ctx context.Context, eng *engine.Engine, defs *state.Defs) error {
	m := New(ctx, eng, defs)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	unsubscribe := eng.Events.Subscribe(func(ev types.Event) {
		p.Send(engineEventMsg{event: ev})
	}, redrawEvents...)
	defer unsubscribe()

	_, err := p.Run()
	return err
}

// Init returns the initial command that loads the start scene.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.initialOutput())
}

func (m Model) initialOutput() tea.Cmd {
	return func() tea.Msg {
		var lines []string
		if g := m.defs.Game; g.Title != "" {
			title := g.Title
			if g.Version != "" {
				title += " v" + g.Version
			}
			if g.Author != "" {
				title += " by " + g.Author
			}
			lines = append(lines, title, "")
		}

		if m.engine.Snapshot().Scene == nil {
			if err := m.engine.Start(m.ctx); err != nil {
				return stepDoneMsg{result: engine.Result{Err: err}}
			}
		}
		lines = append(lines, m.engine.Describe()...)
		return stepDoneMsg{result: engine.Result{Output: lines}}
	}
}

// Update handles messages (key presses, window resize, game output).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(m.mode()); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
				m.history.ResetCursor()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case stepDoneMsg:
		m.stepping = false
		m = m.appendResult(msg)

	case engineEventMsg:
		if !m.stepping {
			m = m.appendOutput(gameOutputMsg{lines: m.engine.Describe()})
		}
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// mode is the current scene mode, which scopes input history.
func (m Model) mode() types.UIMode {
	return m.engine.Snapshot().Session.UI.Mode
}

// handleEnter processes the submitted input line. An empty line continues.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	if m.stepping {
		return m, nil
	}
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input != "" {
		m.history.Push(m.mode(), input)
		m.history.ResetCursor()
	}

	if strings.EqualFold(input, "again") {
		if m.lastCmd == "" {
			m = m.appendOutput(gameOutputMsg{
				input: input, lines: []string{"Nothing to repeat."}, isSystem: true,
			})
			return m, nil
		}
		input = m.lastCmd
	} else if input != "" && !strings.HasPrefix(input, "/") {
		m.lastCmd = input
	}

	// Meta-commands.
	if strings.HasPrefix(input, "/") {
		output, quit := m.handleMeta(input)
		m = m.appendOutput(gameOutputMsg{input: input, lines: output, isSystem: true})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	m.stepping = true
	return m, m.step(input)
}

// step runs one engine Step off the Update loop.
func (m Model) step(input string) tea.Cmd {
	eng, ctx := m.engine, m.ctx
	return func() tea.Msg {
		return stepDoneMsg{input: input, result: eng.Step(ctx, input)}
	}
}

// appendResult adds a step's output, its error, and its trace.
func (m Model) appendResult(msg stepDoneMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{text: "> " + msg.input, isInput: true})
	}
	if err := msg.result.Err; err != nil {
		m.rawLines = append(m.rawLines, rawLine{text: err.Error(), isError: true})
	}
	output := msg.result.Output
	if m.trace {
		output = append(output, formatTrace(msg.result)...)
	}
	return m.appendOutput(gameOutputMsg{lines: output})
}

// appendOutput adds lines to the story and refreshes the viewport.
func (m Model) appendOutput(msg gameOutputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{
			text: "> " + msg.input, isInput: true,
		})
	}

	for _, line := range msg.lines {
		rl := rawLine{text: line, isSystem: msg.isSystem}
		if !msg.isSystem {
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}

	// Blank line separator between turns.
	m.rawLines = append(m.rawLines, rawLine{})

	m.refreshViewport()

	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}

		wrapped := wordWrap(rl.text, width)

		switch {
		case rl.isInput:
			styled = append(styled, stylePlayerInput.Render(wrapped))
		case rl.isError:
			styled = append(styled, styleError.Render(wrapped))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		default:
			styled = append(styled, renderLineKind(wrapped, rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindChoice:
		return styleChoice.Render(line)
	case kindLocked:
		return styleLocked.Render(line)
	case kindDialogue:
		return styleDialogue.Render(line)
	case kindClock:
		return styleClock.Render(line)
	case kindHint:
		return styleSystem.Render(line)
	case kindEnd:
		return styleEnd.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleNarration.Render(line)
	}
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries. Leading indentation is kept on the first line.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	indent := text[:len(text)-len(strings.TrimLeft(text, " "))]
	words := strings.Fields(text)
	lineLen := 0

	for i, word := range words {
		wLen := len(word)

		if i == 0 {
			result.WriteString(indent + word)
			lineLen = len(indent) + wLen
			continue
		}

		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}

	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	cmd := strings.Fields(input)[0]

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true

	case "/help":
		return m.cmdHelp(), false

	case "/state":
		return m.cmdState(), false

	case "/trace":
		m.trace = !m.trace
		if m.trace {
			return []string{"Trace output enabled."}, false
		}
		return []string{"Trace output disabled."}, false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdHelp() []string {
	return []string{
		"System:",
		"  /quit         Exit game",
		"  /help         Show this help",
		"  /state        Show cultivation, traits and flags",
		"  /trace        Toggle engine event output",
		"",
		"Story commands:",
		"  <Enter> (n)            Continue to the next panel",
		"  <number> or <id>       Pick a choice, move or destination",
		`  say <words> / "..."    Speak to the person before you`,
		"  go <destination>       Travel",
		"  look (l)               Show the scene again",
		"  again                  Repeat your last command",
		"",
		"Navigation: PgUp/PgDn to scroll, Up/Down for command history",
	}
}

func (m *Model) cmdState() []string {
	s := m.engine.Snapshot().Session
	p := s.Player
	output := []string{
		fmt.Sprintf("Scene: %s", s.Narrative.CurrentScene),
		fmt.Sprintf("Realm: %s", p.Cultivation.Realm),
		fmt.Sprintf("Internal energy %d, external arts %d, comprehension %d",
			p.Cultivation.InternalEnergy, p.Cultivation.ExternalArts, p.Cultivation.Comprehension),
		fmt.Sprintf("Orthodoxy %d, aggression %d, cunning %d",
			p.Traits.Orthodoxy, p.Traits.Aggression, p.Traits.Cunning),
	}
	if len(s.World.Flags) > 0 {
		output = append(output, fmt.Sprintf("Flags: %v", s.World.Flags))
	}
	if len(s.World.Relationships) > 0 {
		output = append(output, fmt.Sprintf("Relationships: %v", s.World.Relationships))
	}
	return output
}

func formatTrace(result engine.Result) []string {
	if len(result.Events) == 0 {
		return nil
	}
	lines := []string{fmt.Sprintf("[trace] Events: %d", len(result.Events))}
	for _, e := range result.Events {
		lines = append(lines, fmt.Sprintf("[trace]   %s %v", e.Type, e.Data))
	}
	return lines
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
