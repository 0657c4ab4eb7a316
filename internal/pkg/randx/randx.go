/*
Package randx provides identifier generation for chat sessions.

Session IDs are UUID v4 strings; they tag every log line emitted on behalf of a
connection so one client can be followed across join, chat and disconnect.
*/
package randx

import (
	"github.com/google/uuid"
)

// SessionID generates a standard UUID v4 string identifying one connection.
func SessionID() string {
	return uuid.New().String()
}

// ShortID returns the first block of a session ID, handy for compact console output.
func ShortID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()[:8]
}
