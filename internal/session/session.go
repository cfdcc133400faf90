// Package session keeps per-client analysis state for the dashboard API.
package session

import (
	"errors"
	"sync"
	"time"

	"stock-movement-lab/internal/idhash"
	"stock-movement-lab/internal/pipeline"
	"stock-movement-lab/internal/table"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Kind names an uploaded table slot.
type Kind string

// Table slots.
const (
	KindMovements Kind = "movements"
	KindEntries   Kind = "entries"
	KindExits     Kind = "exits"
	KindCoverage  Kind = "coverage"
)

// ParseKind maps a path segment to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindMovements, KindEntries, KindExits, KindCoverage:
		return k, true
	}
	return "", false
}

// Upload is a table loaded into a session.
type Upload struct {
	Table     *table.Table
	DatasetID string
	Filename  string
	LoadedAt  time.Time
}

// Session holds the tables and last results of one dashboard client.
// All access goes through its methods.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	lastAccess   time.Time
	uploads      map[Kind]*Upload
	lastAnalysis *pipeline.Analysis
	lastCoverage *pipeline.CoverageAnalysis
}

// Put stores an upload. Loading movements clears entries/exits and vice versa.
func (s *Session) Put(kind Kind, u *Upload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case KindMovements:
		delete(s.uploads, KindEntries)
		delete(s.uploads, KindExits)
	case KindEntries, KindExits:
		delete(s.uploads, KindMovements)
	}
	s.uploads[kind] = u
	if kind == KindCoverage {
		s.lastCoverage = nil
	} else {
		s.lastAnalysis = nil
	}
}

// Get returns the upload of a slot, or nil.
func (s *Session) Get(kind Kind) *Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads[kind]
}

// Kinds returns the loaded slots.
func (s *Session) Kinds() []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Kind
	for _, k := range []Kind{KindMovements, KindEntries, KindExits, KindCoverage} {
		if _, ok := s.uploads[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Request builds an analysis request from the loaded movement tables.
func (s *Session) Request() pipeline.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var req pipeline.Request
	if u := s.uploads[KindMovements]; u != nil {
		req.Movements = u.Table
	}
	if u := s.uploads[KindEntries]; u != nil {
		req.Entries = u.Table
	}
	if u := s.uploads[KindExits]; u != nil {
		req.Exits = u.Table
	}
	return req
}

// SetAnalysis stores the last analysis.
func (s *Session) SetAnalysis(a *pipeline.Analysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAnalysis = a
}

// Analysis returns the last analysis, or nil.
func (s *Session) Analysis() *pipeline.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAnalysis
}

// SetCoverage stores the last coverage analysis.
func (s *Session) SetCoverage(c *pipeline.CoverageAnalysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCoverage = c
}

// Coverage returns the last coverage analysis, or nil.
func (s *Session) Coverage() *pipeline.CoverageAnalysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCoverage
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess)
}

// Registry holds live sessions and expires idle ones.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idle     time.Duration
	now      func() time.Time
	onChange func(n int)
}

// NewRegistry creates a registry expiring sessions idle longer than idle.
func NewRegistry(idle time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		idle:     idle,
		now:      time.Now,
	}
}

// WithClock sets a custom clock function.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// OnChange registers a callback receiving the session count after every change.
func (r *Registry) OnChange(fn func(n int)) *Registry {
	r.onChange = fn
	return r
}

// Create starts a new session.
func (r *Registry) Create() (*Session, error) {
	id, err := idhash.NewSessionID()
	if err != nil {
		return nil, err
	}
	now := r.now()
	s := &Session{
		ID:         id,
		CreatedAt:  now,
		lastAccess: now,
		uploads:    make(map[Kind]*Upload),
	}

	r.mu.Lock()
	r.sessions[id] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.changed(n)
	return s, nil
}

// Get returns a live session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	now := r.now()
	if r.idle > 0 && s.idleSince(now) > r.idle {
		r.Delete(id)
		return nil, ErrNotFound
	}
	s.touch(now)
	return s, nil
}

// Delete removes a session.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	r.changed(n)
}

// Len returns the number of sessions held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes every session idle longer than the idle limit and returns how many.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	now := r.now()
	r.mu.Lock()
	removed := 0
	for id, s := range r.sessions {
		if s.idleSince(now) > r.idle {
			delete(r.sessions, id)
			removed++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if removed > 0 {
		r.changed(n)
	}
	return removed
}

func (r *Registry) changed(n int) {
	if r.onChange != nil {
		r.onChange(n)
	}
}
