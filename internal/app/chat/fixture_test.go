package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"wschat/internal/app/transcript"
	"wschat/internal/configs"
)

// fixtureServer is an in-process chat server speaking the text convention.
type fixtureServer struct {
	*httptest.Server

	mu         sync.Mutex
	received   []string
	handshakes int
	upgrades   int
	open       int

	// reject, when set, refuses the n-th handshake (1-based) with 503.
	reject func(n int) bool

	// closeAfterUpgrade makes the server close every socket right after accepting it.
	closeAfterUpgrade bool
}

func newFixtureServer(t *testing.T, configure func(*fixtureServer)) *fixtureServer {
	t.Helper()

	f := &fixtureServer{}
	if configure != nil {
		configure(f)
	}

	upgrader := websocket.Upgrader{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.handshakes++
		n := f.handshakes
		f.mu.Unlock()

		if f.reject != nil && f.reject(n) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		f.mu.Lock()
		f.upgrades++
		f.open++
		f.mu.Unlock()

		defer func() {
			conn.Close()
			f.mu.Lock()
			f.open--
			f.mu.Unlock()
		}()

		if f.closeAfterUpgrade {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return
		}

		f.serve(conn)
	}))
	t.Cleanup(f.Close)

	return f
}

// serve answers commands and echoes chat lines prefixed with the logged-in user.
func (f *fixtureServer) serve(conn *websocket.Conn) {
	user := ""
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		text := string(payload)

		f.mu.Lock()
		f.received = append(f.received, text)
		f.mu.Unlock()

		var reply string
		switch {
		case strings.HasPrefix(text, "register:"):
			reply = "System: Registration successful"
		case strings.HasPrefix(text, "login:"):
			parts := strings.SplitN(text, ":", 3)
			if len(parts) == 3 && parts[2] != "wrong" {
				user = parts[1]
				reply = "System: Login successful"
			} else {
				reply = "System: Login failed"
			}
		case strings.HasPrefix(text, "logout:"):
			user = ""
			reply = "System: Logout successful"
		default:
			reply = user + ": " + text
		}

		if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			return
		}
	}
}

func (f *fixtureServer) WSURL() string {
	return "ws" + strings.TrimPrefix(f.Server.URL, "http")
}

func (f *fixtureServer) Received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]string, len(f.received))
	copy(result, f.received)
	return result
}

func (f *fixtureServer) Handshakes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handshakes
}

func (f *fixtureServer) Upgrades() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upgrades
}

// Open returns the number of server-side sockets not yet closed.
func (f *fixtureServer) Open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func testConfig(url string) *configs.AppConfig {
	cfg := configs.DefaultConfig()
	cfg.ServerURL = url
	cfg.ReconnectDelay = 20 * time.Millisecond
	cfg.DialTimeout = time.Second
	return cfg
}

// startManager runs a Manager against url and stops it when the test ends.
func startManager(t *testing.T, cfg *configs.AppConfig) *Manager {
	t.Helper()

	m := NewManager(cfg, transcript.New())
	m.Start(context.Background())
	t.Cleanup(m.Close)

	return m
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// countText returns how many transcript entries equal text exactly.
func countText(tr *transcript.Transcript, text string) int {
	n := 0
	for _, e := range tr.Entries() {
		if e.Text == text {
			n++
		}
	}
	return n
}

func hasText(tr *transcript.Transcript, text string) bool {
	return countText(tr, text) > 0
}

func containsFrame(frames []string, frame string) bool {
	for _, f := range frames {
		if f == frame {
			return true
		}
	}
	return false
}
