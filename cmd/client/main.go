/*
Package main is a terminal client for the RelayChat server.

Usage: client [-addr host:port] [-no-color]
*/
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"relaychat/internal/app/termclient"
	"relaychat/internal/pkg/logx"
)

func main() {
	addr := flag.String("addr", "localhost:5000", "chat server address")
	noColor := flag.Bool("no-color", false, "disable colored output")
	flag.Parse()

	logx.InitGlobalLogger(logx.Options{Development: true, Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		logx.Fatal(err, "Failed to connect", "addr", *addr)
	}
	defer conn.Close()

	if err := termclient.Run(ctx, conn, os.Stdin, os.Stdout, !*noColor); err != nil {
		logx.Fatal(err, "Connection lost")
	}
}
