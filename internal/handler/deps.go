/*
Package handler provides the admin HTTP handlers and routing for the RelayChat server.

This file defines AppDeps, the collaborators shared by every handler. They are built once
in main and passed in explicitly.
*/
package handler

import (
	"relaychat/internal/app/chat"
	"relaychat/internal/app/stats"
	"relaychat/internal/configs"
	"relaychat/internal/pkg/limiter"
)

type AppDeps struct {
	Room     *chat.Room
	Acceptor *chat.Acceptor
	Counter  *stats.Counter

	// Sampler is optional. Without it the process block is left out of /api/status.
	Sampler *stats.ProcessSampler

	// StatusLimiter throttles the reporting endpoints per client IP. The owner of AppDeps
	// closes it after the admin server has shut down.
	StatusLimiter *limiter.IPRateLimiter

	Config *configs.AppConfig
}
