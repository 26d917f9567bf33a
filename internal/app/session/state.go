/*
Package session holds the client-side state of a chat session.

State is owned by a single goroutine (the connection manager's event loop) and is
therefore not synchronized. Every mutation goes through a named transition.
*/
package session

import (
	"wschat/internal/app/protocol"
)

// Phase is the connection phase of the session.
type Phase int

const (
	// PhaseDisconnected means no socket is open and none is being dialed.
	PhaseDisconnected Phase = iota

	// PhaseConnecting means a dial is in flight.
	PhaseConnecting

	// PhaseConnectedAnonymous means the socket is open but no login has been acknowledged.
	PhaseConnectedAnonymous

	// PhaseConnectedAuthenticated means the server acknowledged a login on the open socket.
	PhaseConnectedAuthenticated
)

// String returns the string representation of a Phase.
func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnectedAnonymous:
		return "connected_anonymous"
	case PhaseConnectedAuthenticated:
		return "connected_authenticated"
	default:
		return "unknown"
	}
}

// Controls describes which user actions are currently available.
type Controls struct {
	Login    bool `json:"login"`
	Register bool `json:"register"`
	Send     bool `json:"send"`
	Logout   bool `json:"logout"`
}

// State is the mutable session record.
type State struct {
	// MaxAttempts bounds Attempts.
	MaxAttempts int

	Phase    Phase
	LoggedIn bool

	// Username is the login most recently submitted; empty means absent.
	Username string

	// Attempts counts dials since the last successful open.
	Attempts int

	// Exhausted is set once a dial is refused because the budget is spent.
	Exhausted bool

	// announced is set once the exhausted budget has been reported.
	announced bool

	// pending is the credentials to log in with once registration is acknowledged.
	pending *protocol.Credentials
}

// New returns a disconnected State with the given attempt budget.
func New(maxAttempts int) *State {
	return &State{MaxAttempts: maxAttempts}
}

// Connected reports whether the socket is open.
func (s *State) Connected() bool {
	return s.Phase == PhaseConnectedAnonymous || s.Phase == PhaseConnectedAuthenticated
}

// BeginAttempt starts a connection attempt. It returns false, and marks the session
// exhausted, when the attempt budget is already spent.
func (s *State) BeginAttempt() bool {
	if s.Attempts >= s.MaxAttempts {
		s.Exhausted = true
		return false
	}
	s.Attempts++
	s.Phase = PhaseConnecting
	return true
}

// GiveUp marks the budget as spent. It returns true only on the first call,
// so the caller reports exhaustion once.
func (s *State) GiveUp() bool {
	s.Exhausted = true
	if s.announced {
		return false
	}
	s.announced = true
	return true
}

// CanRetry reports whether another attempt is available.
func (s *State) CanRetry() bool {
	return s.Attempts < s.MaxAttempts
}

// Opened records a successful open and resets the attempt counter.
func (s *State) Opened() {
	s.Attempts = 0
	s.Exhausted = false
	s.announced = false
	s.Phase = PhaseConnectedAnonymous
}

// Authenticated records an acknowledged login.
func (s *State) Authenticated() {
	s.LoggedIn = true
	if s.Connected() {
		s.Phase = PhaseConnectedAuthenticated
	}
}

// LoggedOut records an acknowledged logout.
func (s *State) LoggedOut() {
	s.clearIdentity()
	if s.Connected() {
		s.Phase = PhaseConnectedAnonymous
	}
}

// Disconnected records the loss of the socket.
func (s *State) Disconnected() {
	s.clearIdentity()
	s.Phase = PhaseDisconnected
}

// SetUsername records the login of a submitted login or register form.
func (s *State) SetUsername(login string) {
	s.Username = login
}

// ExpectLoginAfterRegister arms the one-shot login that follows a registration acknowledgment.
func (s *State) ExpectLoginAfterRegister(c protocol.Credentials) {
	s.pending = &c
}

// TakePending returns and clears the pending credentials.
func (s *State) TakePending() (protocol.Credentials, bool) {
	if s.pending == nil {
		return protocol.Credentials{}, false
	}
	c := *s.pending
	s.pending = nil
	return c, true
}

// HasPending reports whether a login after registration is armed.
func (s *State) HasPending() bool {
	return s.pending != nil
}

// CanSend reports whether chat messages may be sent.
func (s *State) CanSend() bool {
	return s.Connected() && s.LoggedIn
}

// Controls derives the enabled state of every user control.
func (s *State) Controls() Controls {
	anonymous := s.Connected() && !s.LoggedIn
	return Controls{
		Login:    anonymous,
		Register: anonymous,
		Send:     s.CanSend(),
		Logout:   s.LoggedIn,
	}
}

func (s *State) clearIdentity() {
	s.LoggedIn = false
	s.Username = ""
	s.pending = nil
}
