package handler

import (
	"context"

	"wschat/internal/app/chat"
	"wschat/internal/app/protocol"
	"wschat/internal/app/transcript"
	"wschat/internal/configs"
	"wschat/internal/pkg/limiter"
)

// Controller is the session surface driven by the control API. *chat.Manager implements it.
type Controller interface {
	Register(ctx context.Context, creds protocol.Credentials) error
	Login(ctx context.Context, creds protocol.Credentials) error
	Logout(ctx context.Context) error
	Send(ctx context.Context, text string) error
	Snapshot() chat.Snapshot
}

type AppDeps struct {
	Session      Controller
	Transcript   *transcript.Transcript
	Config       *configs.AppConfig
	WriteLimiter *limiter.IPRateLimiter
}
