// Package upload holds the files a signed-in user has picked but not yet
// submitted to storage.
package upload

import (
	"context"
	"encoding/base64"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/juststore/internal/domain"
)

type StagedFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Type        string `json:"type"`
	Extension   string `json:"extension"`
	PreviewURL  string `json:"previewUrl,omitempty"`
	Content     []byte `json:"-"`
}

// NewStagedFile sniffs the content type of content and, for images, builds a
// data: URL the client can render as a thumbnail.
func NewStagedFile(name string, content []byte) StagedFile {
	typ, ext := FileType(name)
	mime := mimetype.Detect(content)
	f := StagedFile{
		Name:        name,
		Size:        int64(len(content)),
		ContentType: mime.String(),
		Type:        typ,
		Extension:   ext,
		Content:     content,
	}
	if typ == domain.FileTypeImage {
		f.PreviewURL = "data:" + mime.String() + ";base64," + base64.StdEncoding.EncodeToString(content)
	}
	return f
}

// Staging is an ordered list of staged files. It is safe for concurrent use.
type Staging struct {
	mu    sync.Mutex
	files []StagedFile
}

// Add appends files after the ones already staged.
func (s *Staging) Add(files ...StagedFile) {
	s.mu.Lock()
	s.files = append(s.files, files...)
	s.mu.Unlock()
}

// Replace discards the current list and stages files in its place, the way a
// fresh drop onto the uploader does.
func (s *Staging) Replace(files ...StagedFile) {
	s.mu.Lock()
	s.files = slices.Clone(files)
	s.mu.Unlock()
}

// Remove drops every staged file called name and reports how many went.
func (s *Staging) Remove(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.files)
	s.files = slices.DeleteFunc(s.files, func(f StagedFile) bool { return f.Name == name })
	return before - len(s.files)
}

// Files returns a copy of the staged list in order.
func (s *Staging) Files() []StagedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.files)
}

func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func (s *Staging) Clear() {
	s.mu.Lock()
	s.files = nil
	s.mu.Unlock()
}

type registryEntry struct {
	staging   *Staging
	expiresAt time.Time
	lastSeen  time.Time
}

// Registry maps a session id to its staging list. A list is dropped once its
// session expires or after it has gone unused for the idle TTL.
type Registry struct {
	mu      sync.Mutex
	lists   map[string]*registryEntry
	idleTTL time.Duration
	now     func() time.Time
}

// NewRegistry returns an empty registry. An idleTTL of zero keeps lists until
// their session expires or is discarded.
func NewRegistry(idleTTL time.Duration) *Registry {
	return &Registry{
		lists:   make(map[string]*registryEntry),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// For returns the staging list of sessionID, creating an empty one on first
// use or when the previous one has lapsed. expiresAt is the session's expiry;
// the zero time means none.
func (r *Registry) For(sessionID string, expiresAt time.Time) *Staging {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	e, ok := r.lists[sessionID]
	if !ok || r.stale(e, now) {
		e = &registryEntry{staging: &Staging{}}
		r.lists[sessionID] = e
	}
	e.expiresAt = expiresAt
	e.lastSeen = now
	return e.staging
}

// Discard forgets the staging list of sessionID.
func (r *Registry) Discard(sessionID string) {
	r.mu.Lock()
	delete(r.lists, sessionID)
	r.mu.Unlock()
}

// Prune drops every lapsed list and reports how many went.
func (r *Registry) Prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.lists {
		if r.stale(e, now) {
			delete(r.lists, id)
			n++
		}
	}
	return n
}

// Run prunes the registry every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Prune(now); n > 0 {
				slog.Debug("pruned staging lists", "count", n)
			}
		}
	}
}

func (r *Registry) stale(e *registryEntry, now time.Time) bool {
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		return true
	}
	return r.idleTTL > 0 && now.Sub(e.lastSeen) > r.idleTTL
}
