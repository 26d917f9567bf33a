/*
Package transcript keeps the visible, append-only list of chat lines.

Each inbound frame and each client-generated system message becomes one Entry.
Entries are handed to registered renderers as they are appended. The list grows
for the lifetime of the process.
*/
package transcript

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"wschat/internal/app/protocol"
	"wschat/internal/pkg/randx"
)

// Entry is one line of the transcript.
type Entry struct {
	ID     string    `json:"id"`
	Text   string    `json:"text"`
	System bool      `json:"system"`
	At     time.Time `json:"at"`
}

// Renderer displays appended entries.
type Renderer interface {
	Render(Entry)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(Entry)

// Render calls f(e).
func (f RendererFunc) Render(e Entry) { f(e) }

// Transcript is safe for concurrent use.
type Transcript struct {
	mu        sync.RWMutex
	entries   []Entry
	renderers []Renderer
}

// New returns an empty Transcript rendering to rs.
func New(rs ...Renderer) *Transcript {
	return &Transcript{renderers: rs}
}

// AddRenderer registers r for entries appended from now on.
func (t *Transcript) AddRenderer(r Renderer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.renderers = append(t.renderers, r)
}

// Append records text as a new entry and renders it.
func (t *Transcript) Append(text string) Entry {
	e := Entry{
		ID:     randx.EntryID(),
		Text:   text,
		System: protocol.IsSystem(text),
		At:     time.Now(),
	}

	t.mu.Lock()
	t.entries = append(t.entries, e)
	renderers := t.renderers
	t.mu.Unlock()

	// Rendering happens outside the lock so a renderer may read the transcript.
	for _, r := range renderers {
		r.Render(e)
	}

	return e
}

// Entries returns a copy of every entry.
func (t *Transcript) Entries() []Entry {
	return t.Since(0)
}

// Since returns a copy of the entries after the first n.
func (t *Transcript) Since(n int) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if n < 0 {
		n = 0
	}
	if n >= len(t.entries) {
		return []Entry{}
	}

	result := make([]Entry, len(t.entries)-n)
	copy(result, t.entries[n:])
	return result
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Last returns the most recent entry.
func (t *Transcript) Last() (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.entries) == 0 {
		return Entry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// WriterRenderer prints one line per entry and flushes after each, so the newest
// line is always the last one visible on the terminal.
type WriterRenderer struct {
	mu         sync.Mutex
	w          *bufio.Writer
	timestamps bool
}

// NewWriterRenderer returns a renderer writing to w. With timestamps set, each
// line is prefixed with the local clock time.
func NewWriterRenderer(w io.Writer, timestamps bool) *WriterRenderer {
	return &WriterRenderer{w: bufio.NewWriter(w), timestamps: timestamps}
}

// Render writes e as a single line.
func (r *WriterRenderer) Render(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timestamps {
		fmt.Fprintf(r.w, "[%s] %s\n", e.At.Format("15:04:05"), e.Text)
	} else {
		fmt.Fprintln(r.w, e.Text)
	}
	r.w.Flush()
}
