/*
Package handler provides the admin HTTP handlers and routing for the RelayChat server.

This file contains HandleWebSocket, the gateway that lets browser clients join the same
room as TCP clients. Every text frame is one chat line.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"relaychat/internal/app/chat"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/resp"
)

// HandleWebSocket upgrades the request and runs a chat session on it until it ends.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := logx.AnonymizeIP(r.RemoteAddr)

		if deps.Acceptor.State() == chat.StateStopped {
			resp.RespondError(w, r, errs.NewError(errs.ErrServerShuttingDown))
			return
		}

		if !deps.Acceptor.AllowConnection(r.RemoteAddr) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		logx.Debug("WebSocket connection established", "ip", ip)

		if err := deps.Acceptor.Handle(chat.NewWSConn(conn, deps.Config.MaxLineBytes)); err != nil {
			logx.Info("WebSocket session refused", "ip", ip, "error", err.Error())
		}
	}
}
