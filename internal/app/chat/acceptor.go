/*
Package chat contains the core logic for the line-oriented chat service.

This file defines the Acceptor, which owns the TCP listener, spawns one tracked worker
per accepted connection and coordinates shutdown: stop accepting, warn every session,
wait for workers up to a grace period, then force the stragglers closed.
*/
package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/limiter"
	"relaychat/internal/pkg/logx"
)

const (
	// DefaultShutdownGrace is how long Stop waits for sessions to finish on their own.
	DefaultShutdownGrace = 5 * time.Second

	// DefaultForceCloseWait is how long Stop waits after forcing sessions closed.
	DefaultForceCloseWait = 2 * time.Second

	// upper bound of the accept retry backoff.
	maxAcceptDelay = time.Second

	msgShuttingDown   = "Server is shutting down."
	msgTooManyConnect = "Too many connections, try again later."
)

// ErrAcceptorClosed is returned by Start and Serve once the acceptor has been stopped.
var ErrAcceptorClosed = errors.New("chat: acceptor closed")

// AcceptorState is the lifecycle state of an Acceptor.
type AcceptorState int

const (
	StateCreated AcceptorState = iota
	StateListening
	StateStopped
)

func (s AcceptorState) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "created"
	}
}

// AcceptorConfig holds the listener and shutdown tunables.
type AcceptorConfig struct {
	// Addr is the TCP listen address, e.g. ":5000".
	Addr string

	// MaxLineBytes bounds one inbound line.
	MaxLineBytes int

	// Session is applied to every spawned session.
	Session SessionConfig

	// ShutdownGrace bounds the cooperative part of Stop.
	ShutdownGrace time.Duration

	// ForceCloseWait bounds the wait after sessions are forced closed.
	ForceCloseWait time.Duration

	// ConnectRate and ConnectBurst limit new connections per remote IP. Zero disables.
	ConnectRate  rate.Limit
	ConnectBurst int
}

// Acceptor struct accepts connections and runs one Session per connection.
type Acceptor struct {
	// the room every session joins.
	room *Room

	// read-only configuration.
	cfg AcceptorConfig

	// per-IP connection limiter.
	connLimiter *limiter.IPRateLimiter

	// mu protects state, listener and sessions.
	mu sync.Mutex

	// lifecycle state.
	state AcceptorState

	// the bound listener, nil until Serve.
	listener net.Listener

	// sessions tracks every live worker.
	sessions map[*Session]struct{}

	// wg counts running workers. Add is always called under mu.
	wg sync.WaitGroup

	// ready is closed once the listener is bound.
	ready chan struct{}

	// stopOnce guards the one-time part of Shutdown.
	stopOnce sync.Once

	// structured logger with acceptor context.
	logger zerolog.Logger
}

// NewAcceptor constructs an Acceptor for room. Nothing is bound until Start or Serve.
func NewAcceptor(room *Room, cfg AcceptorConfig) *Acceptor {
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	if cfg.ForceCloseWait <= 0 {
		cfg.ForceCloseWait = DefaultForceCloseWait
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = DefaultMaxLineBytes
	}

	return &Acceptor{
		room:        room,
		cfg:         cfg,
		connLimiter: limiter.NewIPRateLimiter(cfg.ConnectRate, cfg.ConnectBurst),
		sessions:    make(map[*Session]struct{}),
		ready:       make(chan struct{}),
		logger:      logx.Component("acceptor"),
	}
}

// Start binds cfg.Addr and runs the accept loop until Stop. A bind failure is returned
// immediately. After Stop it returns nil.
func (a *Acceptor) Start() error {
	a.mu.Lock()
	stopped := a.state == StateStopped
	a.mu.Unlock()
	if stopped {
		return ErrAcceptorClosed
	}

	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Addr, err)
	}

	return a.Serve(ln)
}

// Serve runs the accept loop on ln, taking ownership of it.
func (a *Acceptor) Serve(ln net.Listener) error {
	a.mu.Lock()
	if a.state != StateCreated {
		a.mu.Unlock()
		_ = ln.Close()
		return ErrAcceptorClosed
	}
	a.state = StateListening
	a.listener = ln
	close(a.ready)
	a.mu.Unlock()

	a.logger.Info().Str("addr", ln.Addr().String()).Msg("Chat acceptor listening.")

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if a.State() == StateStopped {
				return nil
			}

			if isTemporaryAcceptError(err) {
				delay = lo.Ternary(delay == 0, 5*time.Millisecond, min(delay*2, maxAcceptDelay))
				a.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Accept error, retrying")
				time.Sleep(delay)
				continue
			}

			a.mu.Lock()
			a.state = StateStopped
			a.mu.Unlock()
			_ = ln.Close()

			return fmt.Errorf("accept failed: %w", err)
		}
		delay = 0

		a.acceptTCP(conn)
	}
}

// isTemporaryAcceptError reports accept errors worth retrying: timeouts, descriptor
// exhaustion and connections aborted before they were accepted.
func isTemporaryAcceptError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ECONNABORTED)
}

// acceptTCP applies the connection limit and spawns a worker.
func (a *Acceptor) acceptTCP(conn net.Conn) {
	lc := NewTCPConn(conn, a.cfg.MaxLineBytes)

	if !a.AllowConnection(conn.RemoteAddr().String()) {
		a.logger.Warn().
			Str("remote_addr", logx.AnonymizeIP(conn.RemoteAddr().String())).
			Msg("Connection rejected by rate limiter.")
		a.reject(lc, SystemPrefix+msgTooManyConnect)
		return
	}

	s, err := a.track(lc)
	if err != nil {
		a.reject(lc, SystemPrefix+msgShuttingDown)
		return
	}

	go a.runWorker(s)
}

// AllowConnection consumes one token of the per-IP connection budget for addr.
func (a *Acceptor) AllowConnection(addr string) bool {
	return a.connLimiter.Allow(addr)
}

// Handle runs a session for a connection accepted elsewhere (the WebSocket gateway)
// and blocks until it ends. The session counts toward Stop like a TCP one.
func (a *Acceptor) Handle(conn LineConn) error {
	s, err := a.track(conn)
	if err != nil {
		a.reject(conn, SystemPrefix+msgShuttingDown)
		return err
	}

	a.runWorker(s)
	return nil
}

// track registers a new session unless the acceptor is stopped.
func (a *Acceptor) track(conn LineConn) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state == StateStopped {
		return nil, errs.NewError(errs.ErrServerShuttingDown)
	}

	s := NewSession(conn, a.room, a.cfg.Session)
	a.sessions[s] = struct{}{}
	a.wg.Add(1)

	return s, nil
}

func (a *Acceptor) runWorker(s *Session) {
	defer func() {
		a.mu.Lock()
		delete(a.sessions, s)
		a.mu.Unlock()
		a.wg.Done()
	}()

	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error().Interface("panic", rec).Str("session_id", s.ID()).Msg("Session worker panicked.")
			s.Disconnect()
		}
	}()

	s.Serve()
}

// reject tells the client why and closes the transport without creating a session.
func (a *Acceptor) reject(conn LineConn, line string) {
	if err := conn.WriteLine(line); err != nil {
		a.logger.Debug().Err(err).Msg("Failed to write rejection line")
	}
	_ = conn.Close()
}

// Stop is Shutdown bounded by the configured grace period.
func (a *Acceptor) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace)
	defer cancel()

	return a.Shutdown(ctx)
}

// Shutdown closes the listener, tells every session the server is going away and waits
// for the workers to finish. When ctx is done first the remaining sessions are disconnected
// and waited for at most cfg.ForceCloseWait. It may be called more than once.
func (a *Acceptor) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.state = StateStopped
		ln := a.listener
		sessions := lo.Keys(a.sessions)
		a.mu.Unlock()

		a.logger.Info().Int("active_sessions", len(sessions)).Msg("Acceptor stopping.")

		if ln != nil {
			if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				a.logger.Warn().Err(err).Msg("Listener close error")
			}
		}
		a.connLimiter.Close()

		for _, s := range sessions {
			s.Send(SystemPrefix + msgShuttingDown)
		}
	})

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info().Msg("Acceptor stopped. All sessions finished.")
		return nil
	case <-ctx.Done():
	}

	a.mu.Lock()
	remaining := lo.Keys(a.sessions)
	a.mu.Unlock()

	a.logger.Warn().Int("remaining_sessions", len(remaining)).Msg("Grace period expired. Forcing sessions closed.")
	for _, s := range remaining {
		go s.Disconnect()
	}

	select {
	case <-done:
		a.logger.Info().Msg("Acceptor stopped after forced close.")
		return nil
	case <-time.After(a.cfg.ForceCloseWait):
		n := a.ActiveSessions()
		a.logger.Error().Int("remaining_sessions", n).Msg("Sessions still running after forced close.")
		return fmt.Errorf("%d sessions still running after forced close: %w", n, context.DeadlineExceeded)
	}
}

// State returns the lifecycle state.
func (a *Acceptor) State() AcceptorState {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state
}

// Ready is closed once the listener is bound.
func (a *Acceptor) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the bound listener address, or nil before Serve.
func (a *Acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// ActiveSessions returns the number of running workers.
func (a *Acceptor) ActiveSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.sessions)
}
