/*
Package handler provides HTTP handler functions for the session operations of the control API.
*/
package handler

import (
	"context"
	"net/http"

	"wschat/internal/app/protocol"
	"wschat/internal/pkg/errs"
	"wschat/internal/pkg/req"
	"wschat/internal/pkg/resp"
)

type CredentialsInput struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// HandleGetSession returns the current session snapshot.
func HandleGetSession(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Session.Snapshot())
	}
}

// HandleRegister submits register:<login>:<password>.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return handleCredentials(deps, deps.Session.Register)
}

// HandleLogin submits login:<login>:<password>.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return handleCredentials(deps, deps.Session.Login)
}

func handleCredentials(deps *AppDeps, submit func(ctx context.Context, c protocol.Credentials) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CredentialsInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		creds := protocol.Credentials{Login: input.Login, Password: input.Password}
		if err := submit(r.Context(), creds); err != nil {
			resp.RespondError(w, r, errs.From(err))
			return
		}

		resp.RespondSuccess(w, r, deps.Session.Snapshot())
	}
}

// HandleLogout submits logout:<login> for the logged-in user.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Session.Logout(r.Context()); err != nil {
			resp.RespondError(w, r, errs.From(err))
			return
		}

		resp.RespondSuccess(w, r, deps.Session.Snapshot())
	}
}
