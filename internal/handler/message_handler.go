/*
Package handler provides HTTP handler functions for chat messages and the transcript.
*/
package handler

import (
	"net/http"

	"wschat/internal/pkg/errs"
	"wschat/internal/pkg/req"
	"wschat/internal/pkg/resp"
)

type MessageInput struct {
	Text string `json:"text"`
}

// HandleGetTranscript returns transcript entries, skipping the first ?since=n.
func HandleGetTranscript(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, customErr := req.QueryInt(r, "since", 0)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"total":   deps.Transcript.Len(),
			"entries": deps.Transcript.Since(since),
		})
	}
}

// HandleSendMessage sends one chat message.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input MessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := deps.Session.Send(r.Context(), input.Text); err != nil {
			resp.RespondError(w, r, errs.From(err))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}
