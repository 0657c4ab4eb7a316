/*
Package main is the entry point for the RelayChat server.

It is responsible for loading configuration, initializing the global logging system,
building the shared chat room, starting the TCP chat acceptor and the admin HTTP server,
and gracefully handling operating system interrupt signals (SIGINT, SIGTERM). Shutdown
is ordered: the acceptor stops first so sessions get their notice, then the admin server.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"relaychat/internal/app/chat"
	"relaychat/internal/app/stats"
	"relaychat/internal/configs"
	"relaychat/internal/handler"
	"relaychat/internal/pkg/logx"
)

const adminShutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		logx.Fatal(err, "RelayChat server stopped with an error")
	}
}

func run() error {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logx.InitGlobalLogger(logx.Options{
		Development: cfg.IsDevelopment(),
		Verbose:     cfg.Verbose,
	})
	logx.Logger().Info().
		Str("app", cfg.AppName).
		Str("version", cfg.AppVersion).
		Str("environment", cfg.Environment).
		Str("chat_addr", cfg.ChatAddr()).
		Str("admin_addr", cfg.AdminAddr()).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded successfully")

	policy, err := chat.ParseUnknownCommandPolicy(cfg.UnknownCommandPolicy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	counter := stats.NewCounter()
	room := chat.NewRoom(
		chat.WithMaxNameLength(cfg.MaxNameLength),
		chat.WithObservers(counter),
	)
	if cfg.Verbose {
		room.AddObserver(chat.NewLogObserver(*logx.Logger()))
	}

	acceptor := chat.NewAcceptor(room, chat.AcceptorConfig{
		Addr:         cfg.ChatAddr(),
		MaxLineBytes: cfg.MaxLineBytes,
		Session: chat.SessionConfig{
			SendQueueSize:   cfg.SendQueueSize,
			UnknownCommands: policy,
			MessageRate:     rate.Limit(cfg.MessageRate),
			MessageBurst:    cfg.MessageBurst,
		},
		ShutdownGrace:  cfg.ShutdownGrace,
		ForceCloseWait: cfg.ForceCloseWait,
		ConnectRate:    rate.Limit(cfg.ConnectRate),
		ConnectBurst:   cfg.ConnectBurst,
	})

	sampler, err := stats.NewProcessSampler()
	if err != nil {
		logx.Warn("Process sampler unavailable. Status will omit process stats.", "error", err.Error())
	}

	statusLimiter := handler.NewStatusLimiter()
	defer statusLimiter.Close()

	server := &http.Server{
		Addr: cfg.AdminAddr(),
		Handler: handler.Router(&handler.AppDeps{
			Room:          room,
			Acceptor:      acceptor,
			Counter:       counter,
			Sampler:       sampler,
			StatusLimiter: statusLimiter,
			Config:        cfg,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		if err := acceptor.Start(); err != nil {
			errCh <- fmt.Errorf("chat acceptor: %w", err)
		}
	}()

	go func() {
		logx.Info("Admin server starting", "addr", cfg.AdminAddr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logx.Info("Received shutdown signal. Starting graceful shutdown...")
	case runErr = <-errCh:
		logx.Error(runErr, "Server component failed. Shutting down.")
	}

	if err := acceptor.Stop(); err != nil {
		logx.Error(err, "Chat acceptor did not stop cleanly")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), adminShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Admin server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
	return runErr
}
