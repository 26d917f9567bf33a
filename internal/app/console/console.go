/*
Package console is the interactive terminal surface of the client.

It reads one line at a time, turns slash commands into session operations, and sends
every other line as a chat message. Transcript lines are printed by a transcript
renderer; the console itself only prints help, status, and control changes.
*/
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"wschat/internal/app/chat"
	"wschat/internal/app/protocol"
	"wschat/internal/pkg/errs"
	"wschat/internal/pkg/logx"
)

const helpText = `Commands:
  /register <login> <password>  create an account (logs in when the server confirms)
  /login <login> <password>     log in
  /logout                       log out
  /status                       show connection state
  /help                         show this help
  /quit                         exit
Anything else is sent as a chat message.`

// Session is the set of operations the console drives.
type Session interface {
	Register(ctx context.Context, creds protocol.Credentials) error
	Login(ctx context.Context, creds protocol.Credentials) error
	Logout(ctx context.Context) error
	Send(ctx context.Context, text string) error
	Snapshot() chat.Snapshot
}

// Console binds a Session to a line-oriented input and an output.
type Console struct {
	session Session
	in      io.Reader

	mu  sync.Mutex
	out io.Writer

	lastControls string

	logger zerolog.Logger
}

// New returns a Console reading commands from in and printing to out.
func New(s Session, in io.Reader, out io.Writer) *Console {
	return &Console{
		session: s,
		in:      in,
		out:     out,
		logger:  logx.Component("console"),
	}
}

// Run processes input lines until the input ends, /quit is entered, the session
// shuts down, or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.println("Type /help for commands.")

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil

		case line := <-lines:
			quit, err := c.Handle(ctx, line)
			if errs.Is(err, errs.ErrClientClosed) {
				return nil
			}
			if quit {
				return nil
			}
		}
	}
}

// Handle executes one input line. It reports whether the user asked to quit.
// Refused operations already surface a system message in the transcript, so their
// errors are only logged here.
func (c *Console) Handle(ctx context.Context, line string) (bool, error) {
	var err error

	fields := strings.Fields(line)
	if len(fields) > 0 && strings.HasPrefix(fields[0], "/") {
		switch strings.ToLower(fields[0]) {
		case "/quit", "/exit":
			return true, nil
		case "/help":
			c.println(helpText)
		case "/status":
			c.println(StatusLine(c.session.Snapshot()))
		case "/register":
			err = c.session.Register(ctx, credentialsFrom(fields[1:]))
		case "/login":
			err = c.session.Login(ctx, credentialsFrom(fields[1:]))
		case "/logout":
			err = c.session.Logout(ctx)
		default:
			c.println(fmt.Sprintf("Unknown command %s. Type /help for commands.", fields[0]))
		}
	} else {
		err = c.session.Send(ctx, line)
	}

	if err != nil {
		c.logger.Debug().Err(err).Msg("Operation refused")
	}
	return false, err
}

// ShowControls prints the controls line when it differs from the last one printed.
// It is meant to be registered as a chat.Manager observer.
func (c *Console) ShowControls(s chat.Snapshot) {
	line := ControlsLine(s)

	c.mu.Lock()
	if line == c.lastControls {
		c.mu.Unlock()
		return
	}
	c.lastControls = line
	c.mu.Unlock()

	c.println(line)
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// credentialsFrom takes the login from the first argument and joins the rest into
// the password.
func credentialsFrom(args []string) protocol.Credentials {
	var creds protocol.Credentials
	if len(args) > 0 {
		creds.Login = args[0]
	}
	if len(args) > 1 {
		creds.Password = strings.Join(args[1:], " ")
	}
	return creds
}

// ControlsLine renders which controls are enabled.
func ControlsLine(s chat.Snapshot) string {
	return fmt.Sprintf("[controls] login=%s register=%s send=%s logout=%s",
		onOff(s.Controls.Login), onOff(s.Controls.Register), onOff(s.Controls.Send), onOff(s.Controls.Logout))
}

// StatusLine renders a one-line summary of the session.
func StatusLine(s chat.Snapshot) string {
	user := s.Username
	if user == "" {
		user = "-"
	}
	line := fmt.Sprintf("[status] %s server=%s user=%s attempts=%d/%d", s.Phase, s.ServerURL, user, s.Attempts, s.MaxAttempts)
	if s.Exhausted {
		line += " (gave up)"
	}
	return line
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
