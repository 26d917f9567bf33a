package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/time/rate"

	"wschat/internal/app/chat"
	"wschat/internal/app/protocol"
	"wschat/internal/app/transcript"
	"wschat/internal/configs"
	"wschat/internal/pkg/errs"
	"wschat/internal/pkg/limiter"
)

type fakeController struct {
	mu    sync.Mutex
	calls []string
	err   error
	snap  chat.Snapshot
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeController) Register(_ context.Context, c protocol.Credentials) error {
	return f.record("register " + c.Login + " " + c.Password)
}

func (f *fakeController) Login(_ context.Context, c protocol.Credentials) error {
	return f.record("login " + c.Login + " " + c.Password)
}

func (f *fakeController) Logout(context.Context) error {
	return f.record("logout")
}

func (f *fakeController) Send(_ context.Context, text string) error {
	return f.record("send " + text)
}

func (f *fakeController) Snapshot() chat.Snapshot {
	return f.snap
}

func (f *fakeController) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestDeps(ctrl *fakeController) *AppDeps {
	return &AppDeps{
		Session:    ctrl,
		Transcript: transcript.New(),
		Config:     configs.DefaultConfig(),
	}
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: response is not JSON: %v (%q)", method, target, err, rec.Body.String())
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	h := Router(newTestDeps(&fakeController{}))

	rec, env := do(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || env.Code != 0 {
		t.Fatalf("expected 200/0, got %d/%d", rec.Code, env.Code)
	}
}

func TestGetSession_ReturnsSnapshot(t *testing.T) {
	ctrl := &fakeController{snap: chat.Snapshot{
		ServerURL: "ws://chat.test",
		Phase:     "connected_authenticated",
		Connected: true,
		LoggedIn:  true,
		Username:  "alice",
	}}
	h := Router(newTestDeps(ctrl))

	rec, env := do(t, h, http.MethodGet, "/api/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snap chat.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Username != "alice" || !snap.LoggedIn {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestLogin_ForwardsCredentials(t *testing.T) {
	ctrl := &fakeController{}
	h := Router(newTestDeps(ctrl))

	rec, _ := do(t, h, http.MethodPost, "/api/session/login", `{"login":"alice","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	calls := ctrl.Calls()
	if len(calls) != 1 || calls[0] != "login alice pw" {
		t.Errorf("unexpected calls: %v", calls)
	}
}

func TestRegister_ForwardsCredentials(t *testing.T) {
	ctrl := &fakeController{}
	h := Router(newTestDeps(ctrl))

	rec, _ := do(t, h, http.MethodPost, "/api/session/register", `{"login":"bob","password":"secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	calls := ctrl.Calls()
	if len(calls) != 1 || calls[0] != "register bob secret" {
		t.Errorf("unexpected calls: %v", calls)
	}
}

func TestLogin_RejectsBadBodies(t *testing.T) {
	tests := []struct {
		name   string
		ctype  string
		body   string
		status int
		code   int
	}{
		{"wrong media type", "text/plain", `{"login":"a","password":"b"}`, http.StatusUnsupportedMediaType, errs.ErrUnsupportedMediaType},
		{"malformed json", "application/json", `{"login":`, http.StatusBadRequest, errs.ErrInvalidJSONFormat},
		{"unknown field", "application/json", `{"login":"a","password":"b","admin":true}`, http.StatusBadRequest, errs.ErrInvalidJSONFormat},
		{"trailing content", "application/json", `{"login":"a","password":"b"}{}`, http.StatusBadRequest, errs.ErrExtraContentInBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{}
			h := Router(newTestDeps(ctrl))

			r := httptest.NewRequest(http.MethodPost, "/api/session/login", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.ctype)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			var env envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if rec.Code != tt.status || env.Code != tt.code {
				t.Errorf("expected %d/%d, got %d/%d", tt.status, tt.code, rec.Code, env.Code)
			}
			if len(ctrl.Calls()) != 0 {
				t.Errorf("controller should not be called, got %v", ctrl.Calls())
			}
		})
	}
}

func TestSessionErrors_MapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not connected", errs.NewError(errs.ErrNotConnected), http.StatusConflict},
		{"not logged in", errs.NewError(errs.ErrNotLoggedIn), http.StatusForbidden},
		{"closed", errs.NewError(errs.ErrClientClosed), http.StatusServiceUnavailable},
		{"empty", errs.NewError(errs.ErrEmptyMessage), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{err: tt.err}
			h := Router(newTestDeps(ctrl))

			rec, env := do(t, h, http.MethodPost, "/api/messages", `{"text":"hello"}`)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if env.Code != errs.From(tt.err).Code {
				t.Errorf("expected code %d, got %d", errs.From(tt.err).Code, env.Code)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	ctrl := &fakeController{}
	h := Router(newTestDeps(ctrl))

	rec, _ := do(t, h, http.MethodPost, "/api/session/logout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if calls := ctrl.Calls(); len(calls) != 1 || calls[0] != "logout" {
		t.Errorf("unexpected calls: %v", calls)
	}
}

func TestGetTranscript_Since(t *testing.T) {
	deps := newTestDeps(&fakeController{})
	deps.Transcript.Append("System: Connected to server")
	deps.Transcript.Append("alice: hi")
	deps.Transcript.Append("bob: hello")
	h := Router(deps)

	rec, env := do(t, h, http.MethodGet, "/api/transcript?since=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var data struct {
		Total   int                `json:"total"`
		Entries []transcript.Entry `json:"entries"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if data.Total != 3 || len(data.Entries) != 2 {
		t.Fatalf("expected total 3 and 2 entries, got %d and %d", data.Total, len(data.Entries))
	}
	if data.Entries[0].Text != "alice: hi" {
		t.Errorf("unexpected first entry %q", data.Entries[0].Text)
	}

	rec, env = do(t, h, http.MethodGet, "/api/transcript?since=-1", "")
	if rec.Code != http.StatusBadRequest || env.Code != errs.ErrInvalidParams {
		t.Errorf("expected 400/%d for a negative offset, got %d/%d", errs.ErrInvalidParams, rec.Code, env.Code)
	}
}

func TestWriteRoutes_RateLimited(t *testing.T) {
	ctrl := &fakeController{}
	deps := newTestDeps(ctrl)
	deps.WriteLimiter = limiter.NewIPRateLimiter(rate.Limit(0.001), 1)
	defer deps.WriteLimiter.Stop()
	h := Router(deps)

	rec, _ := do(t, h, http.MethodPost, "/api/messages", `{"text":"one"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first write to pass, got %d", rec.Code)
	}

	rec, env := do(t, h, http.MethodPost, "/api/messages", `{"text":"two"}`)
	if rec.Code != http.StatusTooManyRequests || env.Code != errs.ErrRateLimitExceeded {
		t.Errorf("expected 429/%d, got %d/%d", errs.ErrRateLimitExceeded, rec.Code, env.Code)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/session", "")
	if rec.Code != http.StatusOK {
		t.Errorf("reads should not be limited, got %d", rec.Code)
	}

	if calls := ctrl.Calls(); len(calls) != 1 {
		t.Errorf("expected one forwarded send, got %v", calls)
	}
}

func preflight(h http.Handler, origin string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodOptions, "/api/messages", nil)
	r.Header.Set("Origin", origin)
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	r.Header.Set("Access-Control-Request-Headers", "Content-Type")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestCORS_NoOriginAllowedByDefault(t *testing.T) {
	ctrl := &fakeController{}
	deps := newTestDeps(ctrl)
	if !deps.Config.IsDevelopment() {
		t.Fatal("default config should be development")
	}
	h := Router(deps)

	rec := preflight(h, "https://evil.example")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("preflight from an unlisted origin got Access-Control-Allow-Origin %q", got)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/session/logout", nil)
	r.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if rec.Code != http.StatusForbidden || env.Code != errs.ErrOriginNotAllowed {
		t.Errorf("expected 403/%d, got %d/%d", errs.ErrOriginNotAllowed, rec.Code, env.Code)
	}
	if calls := ctrl.Calls(); len(calls) != 0 {
		t.Errorf("cross-origin request reached the session: %v", calls)
	}
}

func TestCORS_ConfiguredOriginAllowed(t *testing.T) {
	ctrl := &fakeController{}
	deps := newTestDeps(ctrl)
	deps.Config.AllowedOrigins = []string{"http://localhost:3000"}
	h := Router(deps)

	rec := preflight(h, "http://localhost:3000")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected the configured origin to be allowed, got %q", got)
	}

	rec = preflight(h, "https://evil.example")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin got Access-Control-Allow-Origin %q", got)
	}

	r := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader(`{"text":"hi"}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from the configured origin, got %d", rec.Code)
	}
	if calls := ctrl.Calls(); len(calls) != 1 || calls[0] != "send hi" {
		t.Errorf("unexpected calls: %v", calls)
	}
}
