/*
Package chat contains the core logic for the line-oriented chat service.

This file defines LineConn, the transport seen by a Session, with a TCP implementation
(newline-delimited byte stream) and a WebSocket implementation (one text frame per line).
*/
package chat

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// timeout for writing one line to the transport.
	writeWait = 10 * time.Second

	// maximum time a WebSocket peer may stay silent, pongs included.
	pongWait = 60 * time.Second

	// frequency at which the writer pings WebSocket peers.
	pingPeriod = (pongWait * 9) / 10

	// DefaultMaxLineBytes bounds a single inbound line.
	DefaultMaxLineBytes = 8192
)

// LineConn is a line-oriented, full-duplex transport.
// ReadLine is called from the session's read goroutine and WriteLine from its writer
// goroutine only. Close may be called from any goroutine and unblocks both.
type LineConn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

// Pinger is implemented by transports needing keep-alive frames from the writer.
type Pinger interface {
	Ping() error
}

// tcpConn frames a net.Conn as newline-delimited text.
type tcpConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// NewTCPConn wraps conn. Lines longer than maxLineBytes fail with bufio.ErrTooLong.
func NewTCPConn(conn net.Conn, maxLineBytes int) LineConn {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(4096, maxLineBytes)), maxLineBytes)

	return &tcpConn{conn: conn, scanner: scanner}
}

func (c *tcpConn) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.scanner.Text(), nil
}

func (c *tcpConn) WriteLine(line string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// wsConn treats every WebSocket text frame as one or more lines.
type wsConn struct {
	conn    *websocket.Conn
	pending []string
}

// NewWSConn wraps an upgraded WebSocket connection.
func NewWSConn(conn *websocket.Conn, maxLineBytes int) LineConn {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}

	conn.SetReadLimit(int64(maxLineBytes))
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	return &wsConn{conn: conn}
}

func (c *wsConn) ReadLine() (string, error) {
	for len(c.pending) == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		text := strings.TrimRight(string(data), "\r\n")
		for _, line := range strings.Split(text, "\n") {
			c.pending = append(c.pending, strings.TrimSuffix(line, "\r"))
		}
	}

	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, nil
}

func (c *wsConn) WriteLine(line string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsConn) Close() error {
	closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// isClosedConnError reports errors that only mean the peer or we closed the transport.
func isClosedConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return false
}
