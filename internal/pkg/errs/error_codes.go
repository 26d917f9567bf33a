/*
Package errs provides custom error types and application-level error code constants.

These error codes identify why a client operation was refused, both inside the
client and in responses returned by the local control API.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrOriginNotAllowed indicates a browser request from an origin outside ALLOWED_ORIGINS.
	ErrOriginNotAllowed = 1008
)

// 2xxx: Session Errors
const (
	// ErrNotConnected indicates that the socket is not open.
	ErrNotConnected = 2001

	// ErrNotLoggedIn indicates that the operation requires a completed login handshake.
	ErrNotLoggedIn = 2002

	// ErrEmptyMessage indicates that a chat message had no content.
	ErrEmptyMessage = 2003

	// ErrInvalidCredentials indicates that a login or password cannot be encoded as a command.
	ErrInvalidCredentials = 2004

	// ErrAlreadyLoggedIn indicates a login or register attempt while already authenticated.
	ErrAlreadyLoggedIn = 2005
)

// 3xxx: Connection Errors
const (
	// ErrReconnectExhausted indicates that the reconnect budget has been used up.
	ErrReconnectExhausted = 3001

	// ErrClientClosed indicates that the connection manager has been shut down.
	ErrClientClosed = 3002

	// ErrSendQueueFull indicates that the outbound queue of the socket is full.
	ErrSendQueueFull = 3003
)

// 5xxx: Internal Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000
)
