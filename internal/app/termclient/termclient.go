/*
Package termclient is a minimal terminal client for the line chat protocol.

It pumps stdin lines to the server and server lines to stdout, highlighting system
notices and sender names with gookit/color when the terminal supports it.
*/
package termclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/gookit/color"

	"relaychat/internal/app/chat"
)

var (
	systemStyle = color.New(color.FgYellow, color.OpBold)
	senderStyle = color.New(color.FgCyan)
)

// Render formats one server line for display.
func Render(line string, colored bool) string {
	if !colored {
		return line
	}

	if strings.HasPrefix(line, chat.SystemPrefix) {
		return systemStyle.Render(line)
	}

	if sender, text, ok := strings.Cut(line, " : "); ok {
		return senderStyle.Render(sender) + " : " + text
	}
	return line
}

// Run relays lines between conn and the in/out pair until the server closes the
// connection or ctx is cancelled. When in is exhausted the client sends /quit.
func Run(ctx context.Context, conn net.Conn, in io.Reader, out io.Writer, colored bool) error {
	serverDone := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			fmt.Fprintln(out, Render(scanner.Text(), colored))
		}
		serverDone <- scanner.Err()
	}()

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if _, err := io.WriteString(conn, scanner.Text()+"\n"); err != nil {
				return
			}
		}
		_, _ = io.WriteString(conn, "/quit\n")
	}()

	select {
	case err := <-serverDone:
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		_ = conn.Close()
		<-serverDone
		return nil
	}
}
