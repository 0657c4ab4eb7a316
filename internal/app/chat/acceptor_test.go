package chat

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/time/rate"

	"relaychat/internal/app/chat/mocks"
	"relaychat/internal/pkg/errs"
)

const ioTimeout = 2 * time.Second

func testAcceptorConfig() AcceptorConfig {
	return AcceptorConfig{
		MaxLineBytes:   256,
		ShutdownGrace:  200 * time.Millisecond,
		ForceCloseWait: time.Second,
	}
}

// startAcceptor serves a on a loopback listener and stops it when the test ends.
func startAcceptor(t *testing.T, a *Acceptor) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve(ln) }()

	select {
	case <-a.Ready():
	case <-time.After(ioTimeout):
		t.Fatal("acceptor not ready")
	}

	t.Cleanup(func() {
		_ = a.Stop()
		require.NoError(t, <-errCh)
	})

	return a.Addr().String()
}

type tcpClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *tcpClient {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &tcpClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *tcpClient) send(line string) {
	c.t.Helper()
	_, err := io.WriteString(c.conn, line+"\n")
	require.NoError(c.t, err)
}

func (c *tcpClient) readLine() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return strings.TrimSuffix(line, "\n")
}

func (c *tcpClient) expect(lines ...string) {
	c.t.Helper()
	for _, want := range lines {
		require.Equal(c.t, want, c.readLine())
	}
}

func (c *tcpClient) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(ioTimeout)))
	for {
		// EOF or a reset both mean the server closed the connection.
		if _, err := c.r.ReadString('\n'); err != nil {
			var ne net.Error
			require.False(c.t, errors.As(err, &ne) && ne.Timeout(), "connection still open")
			return
		}
	}
}

func (c *tcpClient) join(name string) {
	c.t.Helper()
	c.expect(NamePrompt)
	c.send(name)
	c.expect("[SYSTEM] " + name + " has joined.")
}

func TestAcceptor_ScenarioA_JoinChatQuit(t *testing.T) {
	room := NewRoom()
	addr := startAcceptor(t, NewAcceptor(room, testAcceptorConfig()))

	bob := dial(t, addr)
	bob.join("Bob")

	alice := dial(t, addr)
	alice.join("Alice")
	bob.expect("[SYSTEM] Alice has joined.")

	alice.send("Hello")
	alice.expect("Alice : Hello")
	bob.expect("Alice : Hello")

	alice.send("/quit")
	alice.expectClosed()
	bob.expect("[SYSTEM] Alice has left.")
	require.False(t, room.Has("Alice"))

	bob.send("/quit")
	bob.expectClosed()
	require.Eventually(t, func() bool { return room.Count() == 0 }, ioTimeout, 5*time.Millisecond)
}

func TestAcceptor_ScenarioB_ListOnlyToRequester(t *testing.T) {
	room := NewRoom()
	addr := startAcceptor(t, NewAcceptor(room, testAcceptorConfig()))

	alice := dial(t, addr)
	alice.join("Alice")
	bob := dial(t, addr)
	bob.join("Bob")
	alice.expect("[SYSTEM] Bob has joined.")

	alice.send("/list")
	alice.expect("--- Online Users (2) ---", "- Alice", "- Bob")

	alice.send("ping")
	bob.expect("Alice : ping")
}

func TestAcceptor_ScenarioC_DuplicateNameRejected(t *testing.T) {
	room := NewRoom()
	addr := startAcceptor(t, NewAcceptor(room, testAcceptorConfig()))

	alice := dial(t, addr)
	alice.join("Alice")

	impostor := dial(t, addr)
	impostor.expect(NamePrompt)
	impostor.send("Alice")
	impostor.expect(`[SYSTEM] Nickname "Alice" is already taken.`)
	impostor.expectClosed()

	require.Equal(t, []string{"Alice"}, room.Roster())

	alice.send("still here")
	alice.expect("Alice : still here")
}

func TestAcceptor_ScenarioD_StopWithBlockedReader(t *testing.T) {
	ctrl := gomock.NewController(t)
	obs := mocks.NewMockObserver(ctrl)
	obs.EXPECT().OnUserJoined("Alice").Times(1)
	obs.EXPECT().OnMessageSent(SystemSender, gomock.Any()).AnyTimes()
	obs.EXPECT().OnUserLeft("Alice").Times(1)

	room := NewRoom(WithObservers(obs))
	cfg := testAcceptorConfig()
	a := NewAcceptor(room, cfg)
	addr := startAcceptor(t, a)

	alice := dial(t, addr)
	alice.join("Alice")
	require.Equal(t, 1, a.ActiveSessions())

	start := time.Now()
	require.NoError(t, a.Stop())
	require.Less(t, time.Since(start), cfg.ShutdownGrace+cfg.ForceCloseWait)

	alice.expect("[SYSTEM] Server is shutting down.")
	alice.expectClosed()

	require.Zero(t, a.ActiveSessions())
	require.Zero(t, room.Count())
	require.Equal(t, StateStopped, a.State())

	// A second stop is a no-op.
	require.NoError(t, a.Stop())
}

func TestAcceptor_StopReturnsEarlyWhenSessionsLeave(t *testing.T) {
	room := NewRoom()
	cfg := testAcceptorConfig()
	cfg.ShutdownGrace = 5 * time.Second
	a := NewAcceptor(room, cfg)
	addr := startAcceptor(t, a)

	alice := dial(t, addr)
	alice.join("Alice")

	go func() {
		_ = alice.conn.SetReadDeadline(time.Now().Add(ioTimeout))
		_, _ = alice.r.ReadString('\n')
		_ = alice.conn.Close()
	}()

	start := time.Now()
	require.NoError(t, a.Stop())
	require.Less(t, time.Since(start), cfg.ShutdownGrace)
}

func TestAcceptor_LongLineDisconnects(t *testing.T) {
	room := NewRoom()
	cfg := testAcceptorConfig()
	cfg.MaxLineBytes = 64
	addr := startAcceptor(t, NewAcceptor(room, cfg))

	alice := dial(t, addr)
	alice.join("Alice")

	alice.send(strings.Repeat("x", 200))
	alice.expectClosed()
	require.Eventually(t, func() bool { return room.Count() == 0 }, ioTimeout, 5*time.Millisecond)
}

func TestAcceptor_ConnectRateLimit(t *testing.T) {
	cfg := testAcceptorConfig()
	cfg.ConnectRate = rate.Every(time.Hour)
	cfg.ConnectBurst = 1
	addr := startAcceptor(t, NewAcceptor(NewRoom(), cfg))

	first := dial(t, addr)
	first.expect(NamePrompt)

	second := dial(t, addr)
	second.expect("[SYSTEM] Too many connections, try again later.")
	second.expectClosed()
}

func TestAcceptor_StartFailsOnBusyAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testAcceptorConfig()
	cfg.Addr = ln.Addr().String()

	err = NewAcceptor(NewRoom(), cfg).Start()
	require.Error(t, err)
}

func TestAcceptor_StartAfterStop(t *testing.T) {
	a := NewAcceptor(NewRoom(), testAcceptorConfig())
	require.NoError(t, a.Stop())

	require.ErrorIs(t, a.Start(), ErrAcceptorClosed)
	require.Nil(t, a.Addr())
}

func TestAcceptor_HandleAfterStopRejects(t *testing.T) {
	a := NewAcceptor(NewRoom(), testAcceptorConfig())
	require.NoError(t, a.Stop())

	conn := newFakeConn()
	err := a.Handle(conn)

	require.True(t, errs.HasCode(err, errs.ErrServerShuttingDown))
	require.Equal(t, []string{"[SYSTEM] Server is shutting down."}, conn.Written())
	require.EqualValues(t, 1, conn.closeCalls.Load())
}

func TestAcceptor_HandleRunsSessionToCompletion(t *testing.T) {
	room := NewRoom()
	a := NewAcceptor(room, testAcceptorConfig())
	conn := newFakeConn()

	conn.in <- "ws-user"
	conn.in <- "hi"
	close(conn.in)

	require.NoError(t, a.Handle(conn))
	require.Equal(t, []string{NamePrompt, "[SYSTEM] ws-user has joined.", "ws-user : hi"}, conn.Written())
	require.Zero(t, a.ActiveSessions())
	require.Zero(t, room.Count())
}

func TestAcceptorState_String(t *testing.T) {
	require.Equal(t, "created", StateCreated.String())
	require.Equal(t, "listening", StateListening.String())
	require.Equal(t, "stopped", StateStopped.String())
}

// scriptedListener returns the queued errors from Accept, then blocks until closed.
type scriptedListener struct {
	queued    chan error
	calls     atomic.Int32
	closed    chan struct{}
	closeOnce sync.Once
}

func newScriptedListener(queued ...error) *scriptedListener {
	l := &scriptedListener{queued: make(chan error, len(queued)), closed: make(chan struct{})}
	for _, err := range queued {
		l.queued <- err
	}
	return l
}

func (l *scriptedListener) Accept() (net.Conn, error) {
	l.calls.Add(1)
	select {
	case err := <-l.queued:
		return nil, err
	default:
	}
	<-l.closed
	return nil, net.ErrClosed
}

func (l *scriptedListener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *scriptedListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000}
}

func TestAcceptor_RetriesDescriptorExhaustion(t *testing.T) {
	ln := newScriptedListener(
		os.NewSyscallError("accept4", syscall.EMFILE),
		os.NewSyscallError("accept4", syscall.ENFILE),
		os.NewSyscallError("accept4", syscall.ECONNABORTED),
	)
	a := NewAcceptor(NewRoom(), testAcceptorConfig())

	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve(ln) }()

	require.Eventually(t, func() bool { return ln.calls.Load() >= 4 }, ioTimeout, 5*time.Millisecond)
	require.Equal(t, StateListening, a.State())

	require.NoError(t, a.Stop())
	require.NoError(t, <-errCh)
}

func TestAcceptor_FatalAcceptErrorStops(t *testing.T) {
	boom := errors.New("listener broken")
	ln := newScriptedListener(boom)
	a := NewAcceptor(NewRoom(), testAcceptorConfig())

	err := a.Serve(ln)

	require.ErrorIs(t, err, boom)
	require.Equal(t, StateStopped, a.State())

	conn := newFakeConn()
	require.True(t, errs.HasCode(a.Handle(conn), errs.ErrServerShuttingDown))
	require.NoError(t, a.Stop())
}
