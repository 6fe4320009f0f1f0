// Package blob holds transient references to large in-memory objects.
//
// A reference is valid until the component that registered it calls
// Release. Nothing is released automatically. In this module the offline
// backend is the only creator: it releases a reference when the file is
// deleted and releases all of them on Close. Readers never release.
package blob

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Scheme prefixes every reference.
const Scheme = "blob:"

// ErrUnknownRef is returned by Open for a released or foreign reference.
var ErrUnknownRef = errors.New("unknown blob reference")

type entry struct {
	data []byte
	mime string
}

// Registry maps references to content. The zero value is not usable; use New.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	bytes   int64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register stores data and returns its reference.
func (r *Registry) Register(data []byte, mime string) string {
	ref := Scheme + uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[ref] = entry{data: data, mime: mime}
	r.bytes += int64(len(data))
	return ref
}

// Open returns a reader over the content of ref.
func (r *Registry) Open(ref string) (io.ReadCloser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRef, ref)
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

// MIMEType returns the media type ref was registered with.
func (r *Registry) MIMEType(ref string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[ref]
	return e.mime, ok
}

// Release drops ref. Unknown references are ignored.
func (r *Registry) Release(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[ref]; ok {
		r.bytes -= int64(len(e.data))
		delete(r.entries, ref)
	}
}

// Len returns the number of live references.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Bytes returns the total size of live content.
func (r *Registry) Bytes() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bytes
}

// IsRef reports whether s looks like a blob reference.
func IsRef(s string) bool {
	return strings.HasPrefix(s, Scheme)
}
