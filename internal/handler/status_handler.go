/*
Package handler provides the admin HTTP handlers and routing for the RelayChat server.

This file contains the reporting handlers: a plain-text dashboard rendered with
tablewriter and a JSON status document for tooling.
*/
package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"relaychat/internal/app/stats"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/resp"
)

// StatusPayload is the data document of GET /api/status.
type StatusPayload struct {
	UserCount        int                 `json:"userCount"`
	Users            []string            `json:"users"`
	MessageCount     int64               `json:"messageCount"`
	UserMessageCount int64               `json:"userMessageCount"`
	JoinCount        int64               `json:"joinCount"`
	LeaveCount       int64               `json:"leaveCount"`
	ActiveSessions   int                 `json:"activeSessions"`
	AcceptorState    string              `json:"acceptorState"`
	UptimeSeconds    int64               `json:"uptimeSeconds"`
	Process          *stats.ProcessStats `json:"process,omitempty"`
}

// HandleStatusText renders the dashboard as text/plain.
func HandleStatusText(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users := deps.Room.Roster()
		snap := deps.Counter.Snapshot()

		var b strings.Builder
		b.WriteString("--- Chat Admin Dashboard ---\n")
		fmt.Fprintf(&b, "Online users : %d\n", len(users))
		fmt.Fprintf(&b, "Total messages since start : %d\n", snap.Messages)
		fmt.Fprintf(&b, "List : %s\n", strings.Join(users, ", "))

		if len(users) > 0 {
			b.WriteString("\n")

			table := tablewriter.NewWriter(&b)
			table.SetHeader([]string{"#", "Nickname"})
			table.SetAutoFormatHeaders(false)
			table.AppendBulk(lo.Map(users, func(name string, i int) []string {
				return []string{strconv.Itoa(i + 1), name}
			}))
			table.Render()
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(b.String()))
	}
}

// HandleStatusJSON returns StatusPayload inside the standard envelope.
func HandleStatusJSON(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users := deps.Room.Roster()
		snap := deps.Counter.Snapshot()

		payload := StatusPayload{
			UserCount:        len(users),
			Users:            users,
			MessageCount:     snap.Messages,
			UserMessageCount: snap.UserMessages,
			JoinCount:        snap.Joins,
			LeaveCount:       snap.Leaves,
			UptimeSeconds:    int64(snap.Uptime.Seconds()),
		}

		if deps.Acceptor != nil {
			payload.ActiveSessions = deps.Acceptor.ActiveSessions()
			payload.AcceptorState = deps.Acceptor.State().String()
		}

		if deps.Sampler != nil {
			proc, err := deps.Sampler.Sample(r.Context())
			if err != nil {
				logx.Warn("Process sampling failed. Omitting process stats.", "error", err.Error())
			} else {
				payload.Process = &proc
			}
		}

		resp.RespondSuccess(w, r, payload)
	}
}
