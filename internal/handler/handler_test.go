package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"relaychat/internal/app/chat"
	"relaychat/internal/app/stats"
	"relaychat/internal/configs"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/resp"
)

type discard struct{}

func (discard) Send(string) {}

func newTestDeps(t *testing.T) *AppDeps {
	t.Helper()

	cfg := configs.Default()
	cfg.Environment = "test"

	counter := stats.NewCounter()
	room := chat.NewRoom(chat.WithObservers(counter))
	acceptor := chat.NewAcceptor(room, chat.AcceptorConfig{
		MaxLineBytes:   cfg.MaxLineBytes,
		ShutdownGrace:  200 * time.Millisecond,
		ForceCloseWait: time.Second,
	})
	t.Cleanup(func() { _ = acceptor.Stop() })

	sampler, err := stats.NewProcessSampler()
	require.NoError(t, err)

	statusLimiter := NewStatusLimiter()
	t.Cleanup(statusLimiter.Close)

	return &AppDeps{
		Room:          room,
		Acceptor:      acceptor,
		Counter:       counter,
		Sampler:       sampler,
		StatusLimiter: statusLimiter,
		Config:        cfg,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	deps := newTestDeps(t)
	rec := get(t, Router(deps), "/health")

	require.Equal(t, http.StatusOK, rec.Code)

	var body resp.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Zero(t, body.Code)
	require.Equal(t, map[string]any{"status": "ok", "service": "RelayChat", "version": "dev"}, body.Data)
}

func TestRouter_UnknownRouteIsJSON404(t *testing.T) {
	rec := get(t, Router(newTestDeps(t)), "/nope")

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":1008`)
}

func TestHandleStatusText(t *testing.T) {
	req := require.New(t)
	deps := newTestDeps(t)
	req.NoError(deps.Room.Join("Alice", discard{}))
	req.NoError(deps.Room.Join("Bob", discard{}))
	deps.Room.Broadcast("Alice", "hi")

	rec := get(t, Router(deps), "/status")

	req.Equal(http.StatusOK, rec.Code)
	req.Equal("text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	req.Contains(body, "--- Chat Admin Dashboard ---")
	req.Contains(body, "Online users : 2")
	req.Contains(body, "Total messages since start : 3")
	req.Contains(body, "List : Alice, Bob")
	req.Contains(body, "Nickname")
}

func TestHandleStatusJSON(t *testing.T) {
	req := require.New(t)
	deps := newTestDeps(t)
	req.NoError(deps.Room.Join("Alice", discard{}))
	deps.Room.Broadcast("Alice", "hi")
	deps.Room.Leave("Alice")
	req.NoError(deps.Room.Join("Bob", discard{}))

	rec := get(t, Router(deps), "/api/status")
	req.Equal(http.StatusOK, rec.Code)

	var body struct {
		Code int           `json:"code"`
		Data StatusPayload `json:"data"`
	}
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &body))

	req.Equal(1, body.Data.UserCount)
	req.Equal([]string{"Bob"}, body.Data.Users)
	req.EqualValues(2, body.Data.JoinCount)
	req.EqualValues(1, body.Data.LeaveCount)
	req.EqualValues(1, body.Data.UserMessageCount)
	req.EqualValues(4, body.Data.MessageCount)
	req.Equal("created", body.Data.AcceptorState)
	req.NotNil(body.Data.Process)
	req.Positive(body.Data.Process.RSSBytes)
}

func TestRouter_StatusRateLimited(t *testing.T) {
	h := Router(newTestDeps(t))

	var last int
	for range StatusBurst + 1 {
		last = get(t, h, "/api/status").Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}

func TestRouter_UsesSharedStatusLimiter(t *testing.T) {
	deps := newTestDeps(t)

	for range StatusBurst {
		require.Equal(t, http.StatusOK, get(t, Router(deps), "/api/status").Code)
	}

	require.Equal(t, 1, deps.StatusLimiter.Len())
	require.Equal(t, http.StatusTooManyRequests, get(t, Router(deps), "/api/status").Code)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestHandleWebSocket_JoinsRoomAndChats(t *testing.T) {
	req := require.New(t)
	deps := newTestDeps(t)
	req.NoError(deps.Room.Join("Bob", discard{}))

	srv := httptest.NewServer(Router(deps))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	req.NoError(err)
	defer conn.Close()

	req.Equal(chat.NamePrompt, readFrame(t, conn))
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("Alice")))
	req.Equal("[SYSTEM] Alice has joined.", readFrame(t, conn))
	req.True(deps.Room.Has("Alice"))

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	req.Equal("Alice : hello", readFrame(t, conn))

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("/list")))
	req.Equal("--- Online Users (2) ---", readFrame(t, conn))
	req.Equal("- Alice", readFrame(t, conn))
	req.Equal("- Bob", readFrame(t, conn))

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("/quit")))
	req.Eventually(func() bool { return !deps.Room.Has("Alice") }, 2*time.Second, 10*time.Millisecond)
	req.Eventually(func() bool { return deps.Acceptor.ActiveSessions() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandleWebSocket_RejectedAfterStop(t *testing.T) {
	deps := newTestDeps(t)
	require.NoError(t, deps.Acceptor.Stop())

	srv := httptest.NewServer(Router(deps))
	defer srv.Close()

	_, res, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), errs.NewError(errs.ErrServerShuttingDown).Message)
}

type lines struct{ got []string }

func (l *lines) Send(line string) { l.got = append(l.got, line) }

func post(t *testing.T, h http.Handler, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestHandleAnnounce(t *testing.T) {
	req := require.New(t)
	deps := newTestDeps(t)
	alice := &lines{}
	req.NoError(deps.Room.Join("Alice", alice))

	rec := post(t, Router(deps), "/api/announce", "application/json", `{"text":"Maintenance at noon"}`)

	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), `"recipients":1`)
	req.Equal("[SYSTEM] Maintenance at noon", alice.got[len(alice.got)-1])
}

func TestHandleAnnounce_RejectsBadInput(t *testing.T) {
	h := Router(newTestDeps(t))

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
	}{
		{"empty text", "application/json", `{"text":"   "}`, http.StatusBadRequest},
		{"multi-line text", "application/json", `{"text":"a\nb"}`, http.StatusBadRequest},
		{"not json", "text/plain", `hello`, http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, "/api/announce", tt.contentType, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
