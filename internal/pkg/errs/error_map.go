/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
control API responses and system messages shown in the transcript.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrOriginNotAllowed:     {Code: ErrOriginNotAllowed, Message: "Origin not allowed.", Status: http.StatusForbidden},

	// 2xxx: Session Errors
	ErrNotConnected:       {Code: ErrNotConnected, Message: "Not connected to server.", Status: http.StatusConflict},
	ErrNotLoggedIn:        {Code: ErrNotLoggedIn, Message: "Please log in first.", Status: http.StatusForbidden},
	ErrEmptyMessage:       {Code: ErrEmptyMessage, Message: "Message is empty.", Status: http.StatusBadRequest},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Invalid login or password: %s", Status: http.StatusBadRequest},
	ErrAlreadyLoggedIn:    {Code: ErrAlreadyLoggedIn, Message: "You are already logged in.", Status: http.StatusConflict},

	// 3xxx: Connection Errors
	ErrReconnectExhausted: {Code: ErrReconnectExhausted, Message: "Unable to reconnect after %d attempts.", Status: http.StatusServiceUnavailable},
	ErrClientClosed:       {Code: ErrClientClosed, Message: "Client is shutting down.", Status: http.StatusServiceUnavailable},
	ErrSendQueueFull:      {Code: ErrSendQueueFull, Message: "Outgoing queue is full.", Status: http.StatusServiceUnavailable},

	// 5xxx: Internal Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
