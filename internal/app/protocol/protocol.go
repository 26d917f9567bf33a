/*
Package protocol implements the colon-delimited text convention spoken with the chat server.

Outbound, the client encodes three intents as single text frames:

	register:<login>:<password>
	login:<login>:<password>
	logout:<login>

Inbound, a few fixed acknowledgment strings are recognized by prefix. Every other
frame is an opaque chat line.
*/
package protocol

import (
	"strings"

	"wschat/internal/pkg/errs"
)

// Acknowledgment prefixes sent by the server.
const (
	LoginSuccessful        = "System: Login successful"
	LogoutSuccessful       = "System: Logout successful"
	RegistrationSuccessful = "System: Registration successful"
)

// SystemPrefix marks lines produced by the server or by the client itself rather than a user.
const SystemPrefix = "System:"

const (
	cmdRegister = "register"
	cmdLogin    = "login"
	cmdLogout   = "logout"
	separator   = ":"
)

// Ack classifies an inbound frame.
type Ack int

const (
	// AckNone means the frame is a plain chat line.
	AckNone Ack = iota
	AckLoginSuccessful
	AckLogoutSuccessful
	AckRegistrationSuccessful
)

// String returns the string representation of an Ack.
func (a Ack) String() string {
	switch a {
	case AckNone:
		return "none"
	case AckLoginSuccessful:
		return "login_successful"
	case AckLogoutSuccessful:
		return "logout_successful"
	case AckRegistrationSuccessful:
		return "registration_successful"
	default:
		return "unknown"
	}
}

// Credentials holds the login and password submitted by the user.
type Credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Validate checks that the credentials can be carried by a single command frame.
// The login is a middle field and must not contain the separator. The password is
// the last field, so a colon inside it survives a split with a limit of three.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Login) == "" || strings.TrimSpace(c.Password) == "" {
		return errs.NewError(errs.ErrInvalidCredentials, "both fields are required")
	}
	if strings.Contains(c.Login, separator) {
		return errs.NewError(errs.ErrInvalidCredentials, "login must not contain ':'")
	}
	if strings.ContainsAny(c.Login, "\r\n") || strings.ContainsAny(c.Password, "\r\n") {
		return errs.NewError(errs.ErrInvalidCredentials, "line breaks are not allowed")
	}
	return nil
}

// EncodeRegister returns the register command frame.
func EncodeRegister(c Credentials) string {
	return cmdRegister + separator + c.Login + separator + c.Password
}

// EncodeLogin returns the login command frame.
func EncodeLogin(c Credentials) string {
	return cmdLogin + separator + c.Login + separator + c.Password
}

// EncodeLogout returns the logout command frame.
func EncodeLogout(login string) string {
	return cmdLogout + separator + login
}

// Classify matches frame against the known acknowledgment prefixes.
func Classify(frame string) Ack {
	switch {
	case strings.HasPrefix(frame, LoginSuccessful):
		return AckLoginSuccessful
	case strings.HasPrefix(frame, LogoutSuccessful):
		return AckLogoutSuccessful
	case strings.HasPrefix(frame, RegistrationSuccessful):
		return AckRegistrationSuccessful
	default:
		return AckNone
	}
}

// IsSystem reports whether text is a system line.
func IsSystem(text string) bool {
	return strings.HasPrefix(text, SystemPrefix)
}
