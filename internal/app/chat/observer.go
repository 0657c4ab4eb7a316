//go:generate go run go.uber.org/mock/mockgen -source=observer.go -destination=mocks/mock_observer.go -package=mocks

/*
Package chat contains the core logic for the line-oriented chat service: the shared
room, the per-connection sessions, command dispatch and the connection acceptor.

This file defines the Observer contract through which external components (reporting,
debug logging) learn about joins, leaves and messages without touching room internals.
*/
package chat

import (
	"github.com/rs/zerolog"
)

// Observer is notified synchronously from inside Room.Join, Room.Leave and Room.Broadcast.
// Implementations must be safe for concurrent use, must not block, and must not call back
// into the Room. A panic is recovered by the Room and logged.
type Observer interface {
	OnUserJoined(name string)
	OnUserLeft(name string)
	OnMessageSent(sender, text string)
}

// NoopObserver ignores every event.
type NoopObserver struct{}

func (NoopObserver) OnUserJoined(string)          {}
func (NoopObserver) OnUserLeft(string)            {}
func (NoopObserver) OnMessageSent(string, string) {}

// LogObserver writes every room event at debug level.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver returns an observer that logs through logger.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger.With().Str("component", "room_events").Logger()}
}

func (o *LogObserver) OnUserJoined(name string) {
	o.logger.Debug().Str("nickname", name).Msg("+ user joined")
}

func (o *LogObserver) OnUserLeft(name string) {
	o.logger.Debug().Str("nickname", name).Msg("- user left")
}

func (o *LogObserver) OnMessageSent(sender, text string) {
	o.logger.Debug().Str("sender", sender).Str("text", text).Msg("message sent")
}
