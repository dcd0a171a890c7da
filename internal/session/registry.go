package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned by registry lookups that miss.
var ErrNotFound = errors.New("session: not found")

// Registry owns the set of live sessions, indexed by session id and by
// user id. Modeled on the teacher's Room.clients map guarded by its own
// RWMutex, with per-session state left to Session's own mutex.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*Session
	byUserID map[int32]*Session
	onEvict  func(*Session)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]*Session),
		byUserID: make(map[int32]*Session),
	}
}

// SetEvictionHandler installs the callback Create invokes for a session it
// displaces (see Create). Must be called before any login that could evict,
// since main.go wires it in only after the router (whose Disconnect is the
// callback) exists.
func (r *Registry) SetEvictionHandler(fn func(*Session)) {
	r.mu.Lock()
	r.onEvict = fn
	r.mu.Unlock()
}

// Create generates a fresh session id and installs a new session in the
// registry, evicting any pre-existing non-tournament session for the
// same user per spec.md's "at most one non-tournament session" invariant.
// The evicted session is handed to the registered eviction handler outside
// the registry's own lock, so it can run a full disconnect teardown
// (stream/channel/match leave, logout broadcast) without deadlocking
// against that teardown's own call back into this registry.
func (r *Registry) Create(userID int32, username string, privileges uint32, tournament bool) *Session {
	id := uuid.NewString()
	s := New(id, userID, username, privileges)
	s.Tournament = tournament

	r.mu.Lock()
	var evicted *Session
	if !tournament {
		if old, ok := r.byUserID[userID]; ok && !old.Tournament {
			delete(r.byID, old.ID)
			delete(r.byUserID, userID)
			evicted = old
		}
	}
	r.byID[id] = s
	if !tournament {
		r.byUserID[userID] = s
	}
	onEvict := r.onEvict
	r.mu.Unlock()

	if evicted != nil && onEvict != nil {
		onEvict(evicted)
	}
	return s
}

// ByID looks up a session by its token.
func (r *Registry) ByID(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// ByUserID looks up a user's current non-tournament session.
func (r *Registry) ByUserID(userID int32) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUserID[userID]
	return s, ok
}

// ByUsername looks up a session by its exact username. Used for
// routing private messages, whose wire payload carries a username
// rather than a user id.
func (r *Registry) ByUsername(username string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byID {
		if s.Username == username {
			return s, true
		}
	}
	return nil, false
}

// Delete removes a session from the registry.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	if cur, ok := r.byUserID[s.UserID]; ok && cur.ID == id {
		delete(r.byUserID, s.UserID)
	}
}

// All returns a snapshot slice of every live session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// EvictIdle destroys every session idle for longer than maxIdle, invoking
// onEvict for each right after removing it from the registry so callers can broadcast logout
// packets and tear down streams/channels/match membership.
func (r *Registry) EvictIdle(maxIdle func(*Session) bool, onEvict func(*Session)) {
	for _, s := range r.All() {
		if maxIdle(s) {
			r.Delete(s.ID)
			if onEvict != nil {
				onEvict(s)
			}
		}
	}
}
