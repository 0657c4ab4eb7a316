/*
Package chat contains the core logic for the line-oriented chat service.

This file defines the Room, the single shared registry of joined sessions. It owns
membership (join/leave), fan-out of formatted lines to every member, and observer
notification. Each Join and Leave is one critical section under the write lock;
broadcasts share the read lock so different senders can fan out concurrently.
*/
package chat

import (
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
)

const (
	// SystemSender is the sender name used for server-generated lines.
	SystemSender = "SYSTEM"

	// SystemPrefix starts every line sent on behalf of SystemSender.
	SystemPrefix = "[SYSTEM] "

	// DefaultMaxNameLength bounds nicknames when no option overrides it.
	DefaultMaxNameLength = 32
)

// Sender is the outbound capability the Room needs from a member.
// Send must not block; delivery is best-effort.
type Sender interface {
	Send(line string)
}

// Room struct represents the single chat room shared by every connection.
type Room struct {
	// members maps nickname to the member's send capability.
	members map[string]Sender

	// mu protects members. Join/Leave hold it exclusively, Broadcast shares it.
	mu sync.RWMutex

	// observers are notified in registration order.
	observers []Observer

	// obsMu protects observers.
	obsMu sync.RWMutex

	// maxNameLength is the maximum nickname length in runes.
	maxNameLength int

	// structured logger with room context.
	logger zerolog.Logger
}

// RoomOption customizes a Room at construction.
type RoomOption func(*Room)

// WithMaxNameLength sets the maximum nickname length in runes.
func WithMaxNameLength(n int) RoomOption {
	return func(r *Room) {
		if n > 0 {
			r.maxNameLength = n
		}
	}
}

// WithObservers registers observers at construction time.
func WithObservers(observers ...Observer) RoomOption {
	return func(r *Room) {
		r.observers = append(r.observers, observers...)
	}
}

// NewRoom creates an empty Room.
func NewRoom(opts ...RoomOption) *Room {
	r := &Room{
		members:       make(map[string]Sender),
		maxNameLength: DefaultMaxNameLength,
		logger:        logx.Component("room"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// AddObserver registers o for the lifetime of the room. There is no unregister.
func (r *Room) AddObserver(o Observer) {
	if o == nil {
		return
	}

	r.obsMu.Lock()
	r.observers = append(r.observers, o)
	r.obsMu.Unlock()
}

// ValidateName checks that name can be used as a nickname.
func (r *Room) ValidateName(name string) error {
	switch {
	case name == "" || name != strings.TrimSpace(name):
		return errs.NewError(errs.ErrInvalidName, name)
	case utf8.RuneCountInString(name) > r.maxNameLength:
		return errs.NewError(errs.ErrInvalidName, name)
	case strings.HasPrefix(name, CommandPrefix):
		return errs.NewError(errs.ErrInvalidName, name)
	case strings.EqualFold(name, SystemSender):
		return errs.NewError(errs.ErrInvalidName, name)
	}
	return nil
}

// Join adds s under name, notifies observers and announces the arrival to every member,
// the newcomer included. It fails with ErrDuplicateName if name is taken, leaving the
// current occupant untouched.
func (r *Room) Join(name string, s Sender) error {
	if err := r.ValidateName(name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[name]; exists {
		r.logger.Warn().Str("nickname", name).Msg("Join rejected: nickname already taken.")
		return errs.NewError(errs.ErrDuplicateName, name)
	}

	r.members[name] = s

	r.logger.Info().
		Str("nickname", name).
		Int("total_users", len(r.members)).
		Msg("User joined room.")

	r.notify(func(o Observer) { o.OnUserJoined(name) })
	r.broadcastLocked(SystemSender, name+" has joined.")

	return nil
}

// Leave removes name and announces the departure. It is a no-op when name is absent,
// so both /quit and disconnect cleanup may call it.
func (r *Room) Leave(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[name]; !ok {
		return
	}

	delete(r.members, name)

	r.logger.Info().
		Str("nickname", name).
		Int("total_users", len(r.members)).
		Msg("User left room.")

	r.notify(func(o Observer) { o.OnUserLeft(name) })
	r.broadcastLocked(SystemSender, name+" has left.")
}

// Broadcast sends the formatted line to every current member, then reports the
// unformatted message to observers.
func (r *Room) Broadcast(sender, text string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.broadcastLocked(sender, text)
}

// Announce broadcasts a system line.
func (r *Room) Announce(text string) {
	r.Broadcast(SystemSender, text)
}

// broadcastLocked must be called with mu held (read or write).
func (r *Room) broadcastLocked(sender, text string) {
	line := FormatLine(sender, text)

	for name, member := range r.members {
		r.deliver(name, member, line)
	}

	r.notify(func(o Observer) { o.OnMessageSent(sender, text) })
}

// deliver isolates one recipient: a panicking Send never aborts the fan-out.
func (r *Room) deliver(name string, member Sender, line string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn().
				Str("nickname", name).
				Interface("panic", rec).
				Msg("Send to member failed. Skipping recipient.")
		}
	}()

	member.Send(line)
}

// notify calls fn for every observer in registration order, recovering panics.
func (r *Room) notify(fn func(Observer)) {
	r.obsMu.RLock()
	observers := r.observers
	r.obsMu.RUnlock()

	for _, o := range observers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error().
						Interface("panic", rec).
						Msg("Observer panicked. Room state change kept.")
				}
			}()

			fn(o)
		}()
	}
}

// Roster returns a sorted snapshot of the joined nicknames.
func (r *Room) Roster() []string {
	r.mu.RLock()
	names := lo.Keys(r.members)
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Count returns the number of joined members.
func (r *Room) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.members)
}

// Has reports whether name is currently joined.
func (r *Room) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.members[name]
	return ok
}

// FormatLine renders a chat line as delivered to clients.
func FormatLine(sender, text string) string {
	if sender == SystemSender {
		return SystemPrefix + text
	}
	return sender + " : " + text
}
