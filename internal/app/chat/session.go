/*
Package chat contains the core logic for the line-oriented chat service.

This file defines the Session struct, representing one connected client. It runs the
nickname handshake, the read loop that feeds the command dispatcher and the room, and a
writer goroutine that drains the outbound queue so that a slow client never blocks a
broadcast.
*/
package chat

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/randx"
)

const (
	// NamePrompt is the first line every client receives.
	NamePrompt = "Enter nickname :"

	// DefaultSendQueueSize is the number of outbound lines buffered per session.
	DefaultSendQueueSize = 256

	// how long Disconnect waits for queued lines to be flushed before closing the transport.
	flushWait = time.Second

	msgTooFast = "You are sending messages too fast."
)

// SessionConfig carries the per-session tunables.
type SessionConfig struct {
	// SendQueueSize bounds the outbound queue. Lines beyond it are dropped.
	SendQueueSize int

	// UnknownCommands decides the fate of unregistered "/" lines.
	UnknownCommands UnknownCommandPolicy

	// MessageRate is the sustained chat lines per second. Zero disables the limit.
	MessageRate rate.Limit

	// MessageBurst is the token bucket size for chat lines.
	MessageBurst int
}

// Session struct represents one live connection and the member it becomes after the handshake.
type Session struct {
	// unique session identifier for logs.
	id string

	// underlying line transport.
	conn LineConn

	// the room the session joins after the handshake.
	room *Room

	// tunables copied at construction.
	cfg SessionConfig

	// name is the nickname bound by a successful Join, empty before that.
	name string

	// mu serializes the join step against Disconnect reading name.
	mu sync.Mutex

	// connected is true from construction until Disconnect starts.
	connected atomic.Bool

	// writeFailed is set once the writer gave up on the transport.
	writeFailed atomic.Bool

	// outbound queue drained by the writer. Never closed.
	send chan string

	// done is closed when Disconnect starts. It stops the writer.
	done chan struct{}

	// closed is closed when Disconnect has finished.
	closed chan struct{}

	// writerDone is closed when the writer goroutine exits.
	writerDone chan struct{}

	// writerStarted guards against waiting on a writer that never ran.
	writerStarted atomic.Bool

	// closeOnce makes Disconnect idempotent.
	closeOnce sync.Once

	// limiter throttles chat lines.
	limiter *rate.Limiter

	// structured logger with session context.
	logger zerolog.Logger
}

// NewSession constructs a Session for conn. Call Serve to run it.
func NewSession(conn LineConn, room *Room, cfg SessionConfig) *Session {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = DefaultSendQueueSize
	}

	limit, burst := cfg.MessageRate, cfg.MessageBurst
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	id := randx.SessionID()

	s := &Session{
		id:         id,
		conn:       conn,
		room:       room,
		cfg:        cfg,
		send:       make(chan string, cfg.SendQueueSize),
		done:       make(chan struct{}),
		closed:     make(chan struct{}),
		writerDone: make(chan struct{}),
		limiter:    rate.NewLimiter(limit, burst),
		logger: logx.Component("session").With().
			Str("session_id", randx.ShortID(id)).
			Str("remote_addr", logx.AnonymizeIP(conn.RemoteAddr())).
			Logger(),
	}
	s.connected.Store(true)

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Name returns the joined nickname, or "" before a successful handshake.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.name
}

// Connected reports whether Disconnect has not started yet.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Send queues line for delivery. It never blocks: once the session is disconnected the
// line is discarded, and when the queue is full the line is dropped and logged.
func (s *Session) Send(line string) {
	if !s.connected.Load() || s.writeFailed.Load() {
		return
	}

	select {
	case s.send <- line:
	default:
		s.logger.Warn().Int("queue_len", len(s.send)).Msg("Session send queue full, dropping line")
	}
}

// Disconnect leaves the room (if joined), flushes what is already queued and closes the
// transport. Concurrent and repeated calls run the sequence once and all return after it.
func (s *Session) Disconnect() {
	s.closeOnce.Do(func() {
		defer close(s.closed)

		s.connected.Store(false)
		close(s.done)

		s.mu.Lock()
		name := s.name
		s.mu.Unlock()

		if name != "" {
			s.room.Leave(name)
		}

		if s.writerStarted.Load() {
			select {
			case <-s.writerDone:
			case <-time.After(flushWait):
				s.logger.Warn().Msg("Flush timed out. Closing transport with lines pending.")
			}
		}

		if err := s.conn.Close(); err != nil && !isClosedConnError(err) {
			s.logger.Warn().Err(err).Msg("Transport close error")
		}

		s.logger.Info().Str("nickname", name).Msg("Session disconnected.")
	})

	<-s.closed
}

// Serve runs the session until the client leaves or the transport fails. It always
// ends with Disconnect.
func (s *Session) Serve() {
	defer s.Disconnect()

	s.startWriter()
	s.Send(NamePrompt)

	name, ok := s.handshake()
	if !ok {
		return
	}

	s.readLoop(name, s.dispatcher())
}

// handshake reads the nickname line and joins the room.
func (s *Session) handshake() (string, bool) {
	line, err := s.conn.ReadLine()
	if err != nil {
		s.logReadError(err, "Handshake aborted")
		return "", false
	}

	name := strings.TrimSpace(line)
	if name == "" {
		s.logger.Debug().Msg("Handshake aborted: empty nickname")
		return "", false
	}

	s.mu.Lock()
	if !s.connected.Load() {
		s.mu.Unlock()
		return "", false
	}
	err = s.room.Join(name, s)
	if err == nil {
		s.name = name
	}
	s.mu.Unlock()

	if err != nil {
		s.sendError(err)
		return "", false
	}

	s.logger.Info().Str("nickname", name).Msg("Handshake completed.")
	return name, true
}

// dispatcher builds the per-session command table.
func (s *Session) dispatcher() *Dispatcher {
	d := NewDispatcher(s.cfg.UnknownCommands)
	d.Register(ListCommand(s.room, s))
	d.Register(QuitCommand(s.Disconnect))
	d.Register(HelpCommand(d, s))
	return d
}

func (s *Session) readLoop(name string, d *Dispatcher) {
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			s.logReadError(err, "Read loop ended")
			return
		}

		if !s.connected.Load() {
			return
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		if d.Handle(line) {
			if !s.connected.Load() {
				return
			}
			continue
		}

		if !s.limiter.Allow() {
			s.Send(SystemPrefix + msgTooFast)
			continue
		}

		s.room.Broadcast(name, line)
	}
}

// sendError reports err to the client as a system line.
func (s *Session) sendError(err error) {
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		s.Send(SystemPrefix + customErr.Message)
		return
	}

	s.logger.Error().Err(err).Msg("Unexpected session error")
	s.Send(SystemPrefix + errs.NewError(errs.ErrUnknown).Message)
}

func (s *Session) logReadError(err error, msg string) {
	if isClosedConnError(err) || !s.connected.Load() {
		s.logger.Debug().Err(err).Msg(msg)
		return
	}
	s.logger.Info().Err(err).Msg(msg)
}

func (s *Session) startWriter() {
	s.writerStarted.Store(true)
	go s.writePump()
}

// writePump writes queued lines to the transport. When the session is disconnecting it
// flushes what is left without blocking and exits.
func (s *Session) writePump() {
	defer close(s.writerDone)

	var (
		pinger Pinger
		ticks  <-chan time.Time
	)
	if p, ok := s.conn.(Pinger); ok {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		pinger, ticks = p, ticker.C
	}

	for {
		select {
		case line := <-s.send:
			if !s.writeLine(line) {
				return
			}

		case <-ticks:
			if err := pinger.Ping(); err != nil {
				s.abortWrites(err, "Error writing ping")
				return
			}

		case <-s.done:
			s.flush()
			return
		}
	}
}

func (s *Session) flush() {
	for {
		select {
		case line := <-s.send:
			if !s.writeLine(line) {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) writeLine(line string) bool {
	if err := s.conn.WriteLine(line); err != nil {
		s.abortWrites(err, "Error writing line")
		return false
	}
	return true
}

// abortWrites stops all further output. A live transport is closed so the blocked read
// loop fails and the session leaves the room through Disconnect.
func (s *Session) abortWrites(err error, msg string) {
	s.writeFailed.Store(true)

	if isClosedConnError(err) {
		s.logger.Debug().Err(err).Msg("Write on closed transport")
		return
	}

	s.logger.Warn().Err(err).Msg(msg)
	if cerr := s.conn.Close(); cerr != nil && !isClosedConnError(cerr) {
		s.logger.Debug().Err(cerr).Msg("Transport close error")
	}
}
