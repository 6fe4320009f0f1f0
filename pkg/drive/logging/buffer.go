package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultBufferSize is the number of entries kept for the TUI log panel.
const DefaultBufferSize = 200

// Entry is one log line held in a Buffer.
type Entry struct {
	Time      time.Time
	Level     log.Level
	Component string
	Message   string
	Fields    string
}

// String renders the entry on one line.
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Time.Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(e.Level.String()))
	if e.Component != "" {
		b.WriteString(" [")
		b.WriteString(e.Component)
		b.WriteByte(']')
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)
	if e.Fields != "" {
		b.WriteByte(' ')
		b.WriteString(e.Fields)
	}
	return b.String()
}

// Buffer is a fixed-size ring of recent entries. It is safe for concurrent use.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	start   int // oldest
	count   int
}

// NewBuffer returns a buffer holding at most size entries.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffer{entries: make([]Entry, size)}
}

// Add appends an entry, overwriting the oldest once the buffer is full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.entries)
	b.entries[(b.start+b.count)%size] = e
	if b.count < size {
		b.count++
	} else {
		b.start = (b.start + 1) % size
	}
}

// Entries returns a copy of every entry, oldest first.
func (b *Buffer) Entries() []Entry {
	return b.Last(b.Len())
}

// Last returns the newest n entries, oldest first.
func (b *Buffer) Last(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.count {
		n = b.count
	}
	if n < 0 {
		n = 0
	}
	out := make([]Entry, n)
	skip := b.count - n
	for i := range out {
		out[i] = b.entries[(b.start+skip+i)%len(b.entries)]
	}
	return out
}

// Len returns the number of entries held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Clear drops every entry.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.start, b.count = 0, 0
}

// formatFields renders keyvals as "k=v" pairs.
func formatFields(keyvals []interface{}) string {
	if len(keyvals) == 0 {
		return ""
	}
	parts := make([]string, 0, (len(keyvals)+1)/2)
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) {
			parts = append(parts, fmt.Sprintf("%v=%v", keyvals[i], keyvals[i+1]))
		} else {
			parts = append(parts, fmt.Sprint(keyvals[i]))
		}
	}
	return strings.Join(parts, " ")
}
