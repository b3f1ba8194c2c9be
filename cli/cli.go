// Package cli provides terminal I/O, output formatting, and meta-command
// dispatch for the Jianghu engine.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nathoo/jianghu/engine"
	"github.com/nathoo/jianghu/engine/state"
)

// Queue is a scheduler that holds timed engine steps until the CLI drains
// them between prompts, so output never interleaves with typing.
type Queue struct {
	mu    sync.Mutex
	steps []queued
}

type queued struct {
	delay time.Duration
	f     func()
}

// AfterFunc implements engine.Scheduler.
func (q *Queue) AfterFunc(d time.Duration, f func()) {
	q.mu.Lock()
	q.steps = append(q.steps, queued{d, f})
	q.mu.Unlock()
}

// Drain runs queued steps in order, including steps they queue, and
// reports how many ran. With wait set it sleeps out each delay first.
func (q *Queue) Drain(wait bool) int {
	n := 0
	for {
		q.mu.Lock()
		if len(q.steps) == 0 {
			q.mu.Unlock()
			return n
		}
		s := q.steps[0]
		q.steps = q.steps[1:]
		q.mu.Unlock()

		if wait && s.delay > 0 {
			time.Sleep(s.delay)
		}
		s.f()
		n++
	}
}

// CLI handles terminal interaction with the player.
type CLI struct {
	Engine    *engine.Engine
	Defs      *state.Defs
	Queue     *Queue // the engine's scheduler; nil when the engine runs its own timers
	In        io.Reader
	Out       io.Writer
	Trace     bool
	Wait      bool   // sleep out engine delays (off for scripts)
	EchoInput bool   // echo each input line after the prompt (for script playback)
	lastCmd   string // for "again" repeat
}

// New creates a CLI wired to the given engine. q must be the scheduler the
// engine was built with.
func New(eng *engine.Engine, defs *state.Defs, q *Queue) *CLI {
	return &CLI{
		Engine: eng,
		Defs:   defs,
		Queue:  q,
		In:     os.Stdin,
		Out:    os.Stdout,
		Wait:   true,
	}
}

// Run starts the game loop. It shows the title, loads the start scene if
// needed, then loops: prompt → input → dispatch → output.
func (c *CLI) Run(ctx context.Context) error {
	if c.Defs.Game.Title != "" {
		c.printLine(c.Defs.Game.Title)
		c.printLine("")
	}

	if c.Engine.Snapshot().Scene == nil {
		if err := c.Engine.Start(ctx); err != nil {
			return fmt.Errorf("starting story: %w", err)
		}
	}
	c.printLines(c.Engine.Describe())
	c.drain()

	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Meta-commands start with '/'.
		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return nil // /quit
			}
			continue
		}

		if strings.EqualFold(input, "again") {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else if input != "" {
			c.lastCmd = input
		}

		result := c.Engine.Step(ctx, input)
		if result.Err != nil {
			c.printSystem(result.Err.Error())
		}
		c.printLines(result.Output)
		if c.Trace {
			c.printTrace(result)
		}
		c.drain()
	}
	return scanner.Err()
}

// drain runs the engine's pending timed steps and redescribes the view
// after each batch.
func (c *CLI) drain() {
	if c.Queue == nil {
		return
	}
	for c.Queue.Drain(c.Wait) > 0 {
		c.printLine("")
		c.printLines(c.Engine.Describe())
	}
}

// handleMeta dispatches meta-commands. Returns true if the game should exit.
func (c *CLI) handleMeta(input string) bool {
	cmd := strings.Fields(input)[0]

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/help":
		c.cmdHelp()

	case "/state":
		c.cmdState()

	case "/history":
		c.cmdHistory()

	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *CLI) cmdHelp() {
	help := []string{
		"System:",
		"  /quit         Exit game",
		"  /help         Show this help",
		"  /state        Show cultivation, traits, time and flags",
		"  /history      Show the scenes visited and choices made",
		"  /trace        Toggle engine event output",
		"",
		"Story commands:",
		"  <Enter> (n)            Continue to the next panel",
		"  <number> or <id>       Pick a choice, move or destination",
		`  say <words> / "..."    Speak to the person before you`,
		"  go <destination>       Travel",
		"  look (l)               Show the scene again",
		"  again                  Repeat your last command",
	}
	for _, line := range help {
		c.printLine(line)
	}
}

func (c *CLI) cmdState() {
	s := c.Engine.Snapshot().Session
	p := s.Player
	w := s.World

	c.printSystem(fmt.Sprintf("Scene: %s (%s)", s.Narrative.CurrentScene, s.UI.Mode))
	c.printSystem(fmt.Sprintf("Age %d, %s origin, realm %s", p.Age, p.Origin, p.Cultivation.Realm))
	c.printSystem(fmt.Sprintf("Internal energy %d, external arts %d, comprehension %d",
		p.Cultivation.InternalEnergy, p.Cultivation.ExternalArts, p.Cultivation.Comprehension))
	c.printSystem(fmt.Sprintf("Orthodoxy %d, aggression %d, cunning %d",
		p.Traits.Orthodoxy, p.Traits.Aggression, p.Traits.Cunning))
	for _, t := range p.Techniques {
		c.printSystem(fmt.Sprintf("Technique: %s (mastery %d)", t.Name, t.Mastery))
	}
	t := w.CurrentTime
	c.printSystem(fmt.Sprintf("Day %d, %s, %s of year %d", t.Day, t.Period, t.Season, t.Year))
	if w.CurrentLocation.Name != "" {
		c.printSystem(fmt.Sprintf("Location: %s", w.CurrentLocation.Name))
	}
	if len(w.Flags) > 0 {
		c.printSystem(fmt.Sprintf("Flags: %s", sortedPairs(w.Flags)))
	}
	if len(w.Relationships) > 0 {
		rel := make(map[string]any, len(w.Relationships))
		for k, v := range w.Relationships {
			rel[k] = v
		}
		c.printSystem(fmt.Sprintf("Relationships: %s", sortedPairs(rel)))
	}
}

func (c *CLI) cmdHistory() {
	n := c.Engine.Snapshot().Session.Narrative
	c.printSystem(fmt.Sprintf("Scenes: %s", strings.Join(n.SceneHistory, " → ")))
	for _, ch := range n.ChoicesMade {
		c.printSystem(fmt.Sprintf("%s: %s", ch.SceneID, ch.ChoiceText))
	}
}

func (c *CLI) printTrace(result engine.Result) {
	if len(result.Events) == 0 {
		return
	}
	c.printSystem(fmt.Sprintf("trace: %d events", len(result.Events)))
	for _, e := range result.Events {
		c.printSystem(fmt.Sprintf("trace:   %s %s", e.Type, sortedPairs(e.Data)))
	}
}

// sortedPairs formats a map as key=value pairs in key order.
func sortedPairs(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, m[k])
	}
	return strings.Join(parts, " ")
}

func (c *CLI) printLines(lines []string) {
	for _, line := range lines {
		c.printLine(line)
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
