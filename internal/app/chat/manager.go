/*
Package chat contains the connection manager of the chat client.

This file defines the Manager struct. It owns the session state, the current socket, the
transcript, and a single retry timer. All of them are mutated only by the Run loop, which
serializes socket lifecycle events, inbound frames, retry timer fires, and user intents.
*/
package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"wschat/internal/app/protocol"
	"wschat/internal/app/session"
	"wschat/internal/app/transcript"
	"wschat/internal/configs"
	"wschat/internal/pkg/errs"
	"wschat/internal/pkg/logx"
	"wschat/internal/pkg/randx"
)

// System messages appended by the client itself.
const (
	MsgConnecting    = "System: Connecting to server..."
	MsgConnected     = "System: Connected to server"
	MsgDisconnected  = "System: Disconnected from server"
	MsgConnectError  = "System: Error connecting to server"
	MsgNotConnected  = "System: Not connected to server"
	MsgReconnecting  = "System: Not connected to server. Reconnecting..."
	MsgEmptyMessage  = "System: Message is empty"
	MsgNotLoggedIn   = "System: Please log in first"
	MsgAlreadyLogged = "System: You are already logged in"
)

const eventBuffer = 256

type eventKind int

const (
	evOpened eventKind = iota
	evMessage
	evTerminated
)

// event is posted to the Run loop by dial goroutines and connection pumps.
type event struct {
	kind   eventKind
	connID string

	// conn is set on evOpened.
	conn *conn

	// text is set on evMessage.
	text string

	// err and clean are set on evTerminated. clean distinguishes a close handshake from a failure.
	err   error
	clean bool
}

type intentKind int

const (
	intentRegister intentKind = iota
	intentLogin
	intentLogout
	intentSend
)

// intent is a user action waiting for the Run loop.
type intent struct {
	kind  intentKind
	creds protocol.Credentials
	text  string
	reply chan error
}

// Snapshot is a read-only copy of the session as seen by the host surfaces.
type Snapshot struct {
	ServerURL   string           `json:"serverUrl"`
	Phase       string           `json:"phase"`
	Connected   bool             `json:"connected"`
	LoggedIn    bool             `json:"loggedIn"`
	Username    string           `json:"username,omitempty"`
	Attempts    int              `json:"attempts"`
	MaxAttempts int              `json:"maxAttempts"`
	Exhausted   bool             `json:"exhausted"`
	Retrying    bool             `json:"retrying"`
	Controls    session.Controls `json:"controls"`
}

// Manager coordinates a single chat connection and its session.
type Manager struct {
	config *configs.AppConfig

	dialer *websocket.Dialer

	transcript *transcript.Transcript

	// state, current, dialing and retry are owned by the Run loop.
	state *session.State

	// current is the open connection, nil when none.
	current *conn

	// dialing is the id of the connection being dialed, empty when none.
	dialing string

	// retry is the single owned reconnect timer, nil when no retry is pending.
	retry *time.Timer

	events  chan event
	intents chan intent

	// ctx is cancelled when the Run loop exits, aborting in-flight dials.
	ctx    context.Context
	cancel context.CancelFunc

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  atomic.Bool

	// mu protects snapshot and observers.
	mu        sync.RWMutex
	snapshot  Snapshot
	observers []func(Snapshot)

	// structured logger with Manager context.
	logger zerolog.Logger
}

// NewManager constructs a Manager that appends to tr. Call Run (or Start) to connect.
func NewManager(cfg *configs.AppConfig, tr *transcript.Transcript) *Manager {
	m := &Manager{
		config: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		transcript: tr,
		state:      session.New(cfg.MaxReconnectAttempts),
		events:     make(chan event, eventBuffer),
		intents:    make(chan intent),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		logger: logx.Component("manager").With().
			Str("server_url", cfg.ServerURL).
			Logger(),
	}
	m.snapshot = m.buildSnapshot()

	return m
}

// Observe registers fn to be called from the Run loop after every state change.
// fn must not call back into the Manager's blocking operations.
func (m *Manager) Observe(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Snapshot returns the latest published session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Transcript returns the transcript the Manager appends to.
func (m *Manager) Transcript() *transcript.Transcript {
	return m.transcript
}

// Done is closed once the Run loop has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Start runs the event loop in a new goroutine.
func (m *Manager) Start(ctx context.Context) {
	go m.Run(ctx)
}

// Run dials the server and processes events until ctx is cancelled or Close is called.
// Only the first call has any effect.
func (m *Manager) Run(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	defer m.shutdown()

	select {
	case <-m.stop:
		return
	default:
	}

	m.logger.Info().Int("max_attempts", m.config.MaxReconnectAttempts).Msg("Manager loop started.")

	m.connect()
	m.publish()

	for {
		select {
		case ev := <-m.events:
			m.handleEvent(ev)

		case in := <-m.intents:
			in.reply <- m.handleIntent(in)

		case <-m.retryC():
			m.retry = nil
			m.connect()

		case <-m.ctx.Done():
			m.logger.Info().Msg("Context cancelled. Stopping manager loop.")
			return

		case <-m.stop:
			m.logger.Info().Msg("Received stop signal. Stopping manager loop.")
			return
		}

		m.publish()
	}
}

// Close stops the loop, cancels any pending retry, and closes the socket. It is idempotent.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})

	if m.started.Load() {
		<-m.done
	}
}

// shutdown releases everything owned by the loop.
func (m *Manager) shutdown() {
	m.stopRetry()

	if m.current != nil {
		m.current.close()
		m.current = nil
	}
	m.dialing = ""
	m.state.Disconnected()
	m.publish()

	m.cancel()
	m.drainEvents()
	close(m.done)

	m.logger.Info().Msg("Manager shutdown complete.")
}

// drainEvents closes sockets whose open event was queued but never handled.
// It runs after cancel, so a dial that posts later sees the cancelled context.
func (m *Manager) drainEvents() {
	for {
		select {
		case ev := <-m.events:
			if ev.kind == evOpened {
				m.logger.Debug().Str("conn_id", ev.connID).Msg("Closing socket opened during shutdown.")
				ev.conn.close()
			}
		default:
			return
		}
	}
}

// retryC returns the retry timer channel, or nil (blocks forever) when no retry is pending.
func (m *Manager) retryC() <-chan time.Time {
	if m.retry == nil {
		return nil
	}
	return m.retry.C
}

// post delivers ev to the loop. It returns false once the loop has exited.
func (m *Manager) post(ev event) bool {
	select {
	case <-m.done:
		return false
	default:
	}

	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

// connect starts a connection attempt unless one is already open or in flight.
func (m *Manager) connect() {
	if m.current != nil || m.dialing != "" {
		return
	}

	if !m.state.BeginAttempt() {
		m.exhaust()
		return
	}

	id := randx.ConnectionID()
	m.dialing = id

	m.logger.Info().
		Str("conn_id", id).
		Int("attempt", m.state.Attempts).
		Msg("Dialing server.")
	m.transcript.Append(MsgConnecting)

	go m.dial(id)
}

// dial opens the socket in the background and hands it to the loop.
func (m *Manager) dial(id string) {
	logger := m.logger.With().Str("conn_id", id).Logger()

	dialCtx, cancel := context.WithTimeout(m.ctx, m.config.DialTimeout)
	ws, _, err := m.dialer.DialContext(dialCtx, m.config.ServerURL, nil)
	cancel()

	if err != nil {
		logger.Warn().Err(err).Msg("Dial failed.")
		m.post(event{kind: evTerminated, connID: id, err: err})
		return
	}

	c := newConn(id, ws, m.post, logger)

	if !m.post(event{kind: evOpened, connID: id, conn: c}) {
		ws.Close()
		return
	}

	// The loop may have stopped without handling the open event.
	if m.ctx.Err() != nil {
		c.close()
	}

	go c.writePump()
	c.readPump()
}

// handleEvent applies one socket event. Events from a connection that is no longer
// current are dropped, so a socket can end the session at most once.
func (m *Manager) handleEvent(ev event) {
	switch ev.kind {
	case evOpened:
		if ev.connID != m.dialing {
			m.logger.Debug().Str("conn_id", ev.connID).Msg("Closing stale connection.")
			ev.conn.close()
			return
		}

		m.dialing = ""
		m.current = ev.conn
		m.state.Opened()

		m.logger.Info().Str("conn_id", ev.connID).Msg("Connected to server.")
		m.transcript.Append(MsgConnected)

	case evMessage:
		if m.current == nil || ev.connID != m.current.id {
			m.logger.Debug().Str("conn_id", ev.connID).Msg("Dropping frame from stale connection.")
			return
		}

		m.dispatch(ev.text)

	case evTerminated:
		switch {
		case ev.connID == m.dialing:
			m.dialing = ""
		case m.current != nil && ev.connID == m.current.id:
			m.current = nil
		default:
			m.logger.Debug().Str("conn_id", ev.connID).Msg("Ignoring terminal event for stale connection.")
			return
		}

		if ev.clean {
			m.logger.Info().Str("conn_id", ev.connID).Err(ev.err).Msg("Connection closed.")
			m.transcript.Append(MsgDisconnected)
		} else {
			m.logger.Warn().Str("conn_id", ev.connID).Err(ev.err).Msg("Connection error.")
			m.transcript.Append(MsgConnectError)
		}

		m.state.Disconnected()
		m.scheduleReconnect()
	}
}

// dispatch handles one inbound frame from the current connection.
func (m *Manager) dispatch(text string) {
	switch protocol.Classify(text) {
	case protocol.AckLoginSuccessful:
		m.state.Authenticated()
		m.logger.Info().Str("username", m.state.Username).Msg("Login acknowledged.")
		m.transcript.Append(text)

	case protocol.AckLogoutSuccessful:
		m.logger.Info().Str("username", m.state.Username).Msg("Logout acknowledged. Reconnecting with a fresh socket.")
		m.state.LoggedOut()
		m.transcript.Append(text)

		// The socket is retired before closing so its terminal event is ignored
		// and only the retry below is scheduled.
		m.current.close()
		m.current = nil
		m.state.Disconnected()
		m.scheduleReconnect()

	case protocol.AckRegistrationSuccessful:
		m.transcript.Append(text)

		if creds, ok := m.state.TakePending(); ok {
			m.logger.Info().Str("username", creds.Login).Msg("Registration acknowledged. Logging in.")
			if err := m.current.enqueue(protocol.EncodeLogin(creds)); err != nil {
				m.logger.Error().Err(err).Msg("Failed to queue login after registration.")
			}
		}

	default:
		m.transcript.Append(text)
	}
}

// scheduleReconnect arms the retry timer, replacing any pending one, or gives up
// when the attempt budget is spent.
func (m *Manager) scheduleReconnect() {
	if !m.state.CanRetry() {
		m.exhaust()
		return
	}

	m.stopRetry()
	m.retry = time.NewTimer(m.config.ReconnectDelay)

	m.logger.Info().
		Dur("delay", m.config.ReconnectDelay).
		Int("attempts", m.state.Attempts).
		Msg("Reconnect scheduled.")
}

// stopRetry cancels the pending retry, if any.
func (m *Manager) stopRetry() {
	if m.retry == nil {
		return
	}
	if !m.retry.Stop() {
		select {
		case <-m.retry.C:
		default:
		}
	}
	m.retry = nil
}

// exhaust marks the budget as spent and surfaces the terminal message once.
func (m *Manager) exhaust() {
	if !m.state.GiveUp() {
		return
	}

	err := errs.NewError(errs.ErrReconnectExhausted, m.state.MaxAttempts)
	m.logger.Error().Err(err).Msg("Giving up on reconnecting.")
	m.transcript.Append(exhaustedMessage(m.state.MaxAttempts))
}

func exhaustedMessage(attempts int) string {
	return fmt.Sprintf("System: Unable to reconnect after %d attempts. Please restart the client.", attempts)
}

// kick starts a connection attempt on behalf of a user action without waiting for a
// pending retry. It does nothing while a socket is open or dialing, or once the budget is spent.
func (m *Manager) kick() {
	if m.current != nil || m.dialing != "" || m.state.Exhausted {
		return
	}
	m.stopRetry()
	m.connect()
}

// handleIntent applies one user action and returns its outcome.
func (m *Manager) handleIntent(in intent) error {
	switch in.kind {
	case intentRegister, intentLogin:
		return m.submitCredentials(in.kind, in.creds)
	case intentLogout:
		return m.logout()
	case intentSend:
		return m.send(in.text)
	default:
		return errs.NewError(errs.ErrUnknown)
	}
}

func (m *Manager) submitCredentials(kind intentKind, creds protocol.Credentials) error {
	if err := creds.Validate(); err != nil {
		m.transcript.Append("System: " + errs.From(err).Message)
		m.kick()
		return err
	}

	if m.current == nil {
		m.transcript.Append(MsgReconnecting)
		m.kick()
		return errs.NewError(errs.ErrNotConnected)
	}

	if m.state.LoggedIn {
		m.transcript.Append(MsgAlreadyLogged)
		return errs.NewError(errs.ErrAlreadyLoggedIn)
	}

	frame := protocol.EncodeLogin(creds)
	if kind == intentRegister {
		frame = protocol.EncodeRegister(creds)
	}

	if err := m.current.enqueue(frame); err != nil {
		return err
	}

	m.state.SetUsername(creds.Login)
	if kind == intentRegister && m.config.AutoLoginAfterRegister {
		m.state.ExpectLoginAfterRegister(creds)
	}

	m.logger.Info().
		Str("username", creds.Login).
		Bool("register", kind == intentRegister).
		Msg("Credentials submitted.")

	return nil
}

func (m *Manager) logout() error {
	if m.current == nil {
		m.transcript.Append(MsgNotConnected)
		return errs.NewError(errs.ErrNotConnected)
	}
	if !m.state.LoggedIn {
		m.transcript.Append(MsgNotLoggedIn)
		return errs.NewError(errs.ErrNotLoggedIn)
	}

	m.logger.Info().Str("username", m.state.Username).Msg("Logout requested.")
	return m.current.enqueue(protocol.EncodeLogout(m.state.Username))
}

func (m *Manager) send(text string) error {
	if strings.TrimSpace(text) == "" {
		m.transcript.Append(MsgEmptyMessage)
		return errs.NewError(errs.ErrEmptyMessage)
	}
	if m.current == nil {
		m.transcript.Append(MsgNotConnected)
		return errs.NewError(errs.ErrNotConnected)
	}
	if !m.state.LoggedIn {
		m.transcript.Append(MsgNotLoggedIn)
		return errs.NewError(errs.ErrNotLoggedIn)
	}

	if err := m.current.enqueue(text); err != nil {
		return err
	}

	if m.config.EchoOutgoing {
		m.transcript.Append("You: " + text)
	}
	return nil
}

// do hands in to the loop and waits for its outcome.
func (m *Manager) do(ctx context.Context, in intent) error {
	in.reply = make(chan error, 1)

	select {
	case m.intents <- in:
	case <-m.done:
		return errs.NewError(errs.ErrClientClosed)
	case <-m.stop:
		return errs.NewError(errs.ErrClientClosed)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-in.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register sends register:<login>:<password>. When auto-login is enabled, the
// registration acknowledgment is followed by a login with the same credentials.
func (m *Manager) Register(ctx context.Context, creds protocol.Credentials) error {
	return m.do(ctx, intent{kind: intentRegister, creds: creds})
}

// Login sends login:<login>:<password>.
func (m *Manager) Login(ctx context.Context, creds protocol.Credentials) error {
	return m.do(ctx, intent{kind: intentLogin, creds: creds})
}

// Logout sends logout:<login> for the logged-in user.
func (m *Manager) Logout(ctx context.Context) error {
	return m.do(ctx, intent{kind: intentLogout})
}

// Send sends a chat message. It requires an open socket, a completed login, and non-empty text.
func (m *Manager) Send(ctx context.Context, text string) error {
	return m.do(ctx, intent{kind: intentSend, text: text})
}

func (m *Manager) buildSnapshot() Snapshot {
	return Snapshot{
		ServerURL:   m.config.ServerURL,
		Phase:       m.state.Phase.String(),
		Connected:   m.state.Connected(),
		LoggedIn:    m.state.LoggedIn,
		Username:    m.state.Username,
		Attempts:    m.state.Attempts,
		MaxAttempts: m.state.MaxAttempts,
		Exhausted:   m.state.Exhausted,
		Retrying:    m.retry != nil,
		Controls:    m.state.Controls(),
	}
}

// publish stores a fresh snapshot and notifies observers when it changed.
func (m *Manager) publish() {
	snap := m.buildSnapshot()

	m.mu.Lock()
	changed := snap != m.snapshot
	m.snapshot = snap
	observers := m.observers
	m.mu.Unlock()

	if !changed {
		return
	}

	for _, fn := range observers {
		fn(snap)
	}
}
