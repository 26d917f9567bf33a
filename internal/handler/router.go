/*
Package handler provides the local HTTP control API of the chat client.

This file defines the Router, applying CORS, request IDs, logging, panic recovery, and
per-IP rate limiting of write operations before delegating to the session handlers.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"wschat/internal/pkg/errs"
	"wschat/internal/pkg/limiter"
	"wschat/internal/pkg/logx"
	"wschat/internal/pkg/resp"
)

const (
	WriteRate  = 5
	WriteBurst = 10
)

// NewWriteLimiter returns the limiter applied to control API write routes.
func NewWriteLimiter() *limiter.IPRateLimiter {
	return limiter.NewIPRateLimiter(rate.Limit(WriteRate), WriteBurst)
}

// Router sets up the control API routing table.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	originAllowed := allowedOrigins(deps.Config.AllowedOrigins)

	// Only origins listed in ALLOWED_ORIGINS get CORS headers. The list is empty by default.
	c := cors.New(cors.Options{
		AllowOriginFunc: originAllowed,
		AllowedMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:  []string{"Accept", "Content-Type"},
		MaxAge:          300,
	})
	r.Use(c.Handler)
	r.Use(rejectForeignOrigin(originAllowed))

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "wschat",
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/session", HandleGetSession(deps))
		api.Get("/transcript", HandleGetTranscript(deps))

		api.Group(func(write chi.Router) {
			if deps.WriteLimiter != nil {
				write.Use(deps.WriteLimiter.Middleware)
			}

			write.Post("/session/register", HandleRegister(deps))
			write.Post("/session/login", HandleLogin(deps))
			write.Post("/session/logout", HandleLogout(deps))
			write.Post("/messages", HandleSendMessage(deps))
		})
	})

	return r
}

// allowedOrigins returns a matcher for the configured origin list. "*" matches any origin.
func allowedOrigins(origins []string) func(origin string) bool {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		set[o] = struct{}{}
	}

	return func(origin string) bool {
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// rejectForeignOrigin refuses browser requests from origins that are not allowed,
// including simple POSTs sent without a preflight. Requests without an Origin header pass.
func rejectForeignOrigin(allowed func(string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && !allowed(origin) {
				logx.Warn("Control request rejected: origin not allowed.", "origin", origin)
				resp.RespondError(w, r, errs.NewError(errs.ErrOriginNotAllowed))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
