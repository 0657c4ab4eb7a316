/*
Package chat contains the core logic for the line-oriented chat service.

This file defines the per-session command Dispatcher and the built-in /list, /quit
and /help commands.
*/
package chat

import (
	"fmt"
	"strings"
)

// CommandPrefix marks a line as a command candidate.
const CommandPrefix = "/"

// UnknownCommandPolicy decides what happens to a "/"-prefixed line with no registered command.
type UnknownCommandPolicy int

const (
	// UnknownSwallow consumes the line without any visible effect.
	UnknownSwallow UnknownCommandPolicy = iota

	// UnknownForward leaves the line unconsumed so it is broadcast as chat text.
	UnknownForward
)

// ParseUnknownCommandPolicy maps the configuration value to a policy.
func ParseUnknownCommandPolicy(s string) (UnknownCommandPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "swallow":
		return UnknownSwallow, nil
	case "forward":
		return UnknownForward, nil
	default:
		return UnknownSwallow, fmt.Errorf("unknown command policy %q", s)
	}
}

func (p UnknownCommandPolicy) String() string {
	if p == UnknownForward {
		return "forward"
	}
	return "swallow"
}

// Command binds a command name to its handler.
type Command struct {
	// Name includes the prefix, e.g. "/list". Lookup is case-insensitive.
	Name string

	// Description is shown by /help.
	Description string

	// Run receives the whitespace-separated tokens after the name.
	Run func(args []string)
}

// Dispatcher maps command names to handlers for a single session.
type Dispatcher struct {
	commands map[string]Command
	order    []string
	policy   UnknownCommandPolicy
}

// NewDispatcher creates an empty dispatcher with the given unknown-command policy.
func NewDispatcher(policy UnknownCommandPolicy) *Dispatcher {
	return &Dispatcher{
		commands: make(map[string]Command),
		policy:   policy,
	}
}

// Register adds cmd, replacing any command with the same name.
func (d *Dispatcher) Register(cmd Command) {
	key := strings.ToLower(cmd.Name)
	if _, exists := d.commands[key]; !exists {
		d.order = append(d.order, key)
	}
	d.commands[key] = cmd
}

// Commands returns the registered commands in registration order.
func (d *Dispatcher) Commands() []Command {
	out := make([]Command, 0, len(d.order))
	for _, key := range d.order {
		out = append(out, d.commands[key])
	}
	return out
}

// Handle runs the command named by the first token of line and reports whether the
// line was consumed. Lines not starting with CommandPrefix are never consumed.
func (d *Dispatcher) Handle(line string) bool {
	if !strings.HasPrefix(line, CommandPrefix) {
		return false
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	cmd, ok := d.commands[strings.ToLower(fields[0])]
	if !ok {
		return d.policy == UnknownSwallow
	}

	cmd.Run(fields[1:])
	return true
}

// ListCommand sends to a snapshot of the roster.
func ListCommand(room *Room, to Sender) Command {
	return Command{
		Name:        "/list",
		Description: "Shows the list of connected users",
		Run: func([]string) {
			names := room.Roster()
			to.Send(fmt.Sprintf("--- Online Users (%d) ---", len(names)))
			for _, name := range names {
				to.Send("- " + name)
			}
		},
	}
}

// QuitCommand calls quit. The leave notice is produced by Room.Leave during disconnect.
func QuitCommand(quit func()) Command {
	return Command{
		Name:        "/quit",
		Description: "Disconnects from the server",
		Run: func([]string) {
			quit()
		},
	}
}

// HelpCommand sends to the commands registered on d.
func HelpCommand(d *Dispatcher, to Sender) Command {
	return Command{
		Name:        "/help",
		Description: "Shows the available commands",
		Run: func([]string) {
			to.Send("--- Commands ---")
			for _, cmd := range d.Commands() {
				to.Send(cmd.Name + " : " + cmd.Description)
			}
		},
	}
}
