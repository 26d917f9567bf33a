/*
Package chat contains the connection manager of the chat client.

This file defines the conn struct, representing one dialed WebSocket connection. It runs
the read and write pumps and reports the connection's lifecycle to the manager's event loop.
*/
package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"wschat/internal/pkg/errs"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed between two frames (or pongs) from the server.
	pongWait = 60 * time.Second

	// frequency at which the client sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the server.
	maxMessageSize = 64 * 1024

	// capacity of the outbound queue.
	sendQueueSize = 64
)

// conn wraps one dialed socket. Its id is the generation tag attached to every event it posts.
type conn struct {
	id string

	// underlying WebSocket connection object.
	ws *websocket.Conn

	// a buffered channel of text frames waiting to be written.
	send chan string

	// closed to make the write pump send a close frame and exit.
	quit chan struct{}

	closeOnce sync.Once

	// post delivers an event to the manager loop. It returns false once the loop has exited.
	post func(event) bool

	// structured logger with connection context.
	logger zerolog.Logger
}

func newConn(id string, ws *websocket.Conn, post func(event) bool, logger zerolog.Logger) *conn {
	return &conn{
		id:     id,
		ws:     ws,
		send:   make(chan string, sendQueueSize),
		quit:   make(chan struct{}),
		post:   post,
		logger: logger,
	}
}

// readPump reads frames until the socket fails, posting each one as a message event.
// It posts exactly one terminated event when it exits.
func (c *conn) readPump() {
	var cause error

	defer func() {
		c.close()
		c.post(event{kind: evTerminated, connID: c.id, err: cause, clean: isCleanClose(cause)})
	}()

	c.ws.SetReadLimit(maxMessageSize)

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		cause = err
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("Connection closed unexpectedly")
			} else {
				c.logger.Debug().Err(err).Msg("Read loop finished")
			}
			cause = err
			return
		}

		if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			cause = err
			return
		}

		if messageType != websocket.TextMessage {
			c.logger.Warn().Int("message_type", messageType).Msg("Ignoring non-text frame")
			continue
		}

		if !c.post(event{kind: evMessage, connID: c.id, text: string(payload)}) {
			return
		}
	}
}

// writePump writes queued frames and periodic pings until the connection is closed.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in writePump")
		}
	}()

	for {
		select {
		case text := <-c.send:
			if !c.writeFrame(websocket.TextMessage, []byte(text)) {
				return
			}

		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}

		case <-c.quit:
			closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			c.writeFrame(websocket.CloseMessage, closeMessage)
			return
		}
	}
}

// writeFrame writes a single frame under the write deadline.
// Returns false if the write pump should terminate.
func (c *conn) writeFrame(messageType int, data []byte) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.ws.WriteMessage(messageType, data); err != nil {
		c.logger.Error().Err(err).Int("message_type", messageType).Msg("Error writing frame")
		return false
	}

	return true
}

// enqueue queues text for the write pump without blocking.
func (c *conn) enqueue(text string) error {
	select {
	case <-c.quit:
		return errs.NewError(errs.ErrNotConnected)
	default:
	}

	select {
	case c.send <- text:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Send queue full, dropping frame")
		return errs.NewError(errs.ErrSendQueueFull)
	}
}

// close asks the write pump to send a close frame and shut the socket. Safe to call repeatedly.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.quit)
	})
}

// isCleanClose reports whether err is a close handshake initiated by either side,
// as opposed to a transport failure.
func isCleanClose(err error) bool {
	var closeErr *websocket.CloseError
	return errors.As(err, &closeErr)
}
