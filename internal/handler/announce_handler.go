/*
Package handler provides the admin HTTP handlers and routing for the RelayChat server.

This file contains HandleAnnounce, which lets an operator broadcast a system line to
every joined user.
*/
package handler

import (
	"net/http"
	"strings"

	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/req"
	"relaychat/internal/pkg/resp"
)

// AnnounceRequest is the body of POST /api/announce.
type AnnounceRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// AnnounceResponse reports how many members were online when the line went out.
type AnnounceResponse struct {
	Recipients int `json:"recipients"`
}

// HandleAnnounce broadcasts the request text as a system line.
func HandleAnnounce(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body AnnounceRequest
		if customErr := req.BindJSON(w, r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		text := strings.TrimSpace(body.Text)
		if text == "" || strings.ContainsAny(text, "\r\n") {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		recipients := deps.Room.Count()
		deps.Room.Announce(text)

		logx.Info("Admin announcement broadcast", "recipients", recipients)
		resp.RespondSuccess(w, r, AnnounceResponse{Recipients: recipients})
	}
}
