package stream

import (
	"fmt"
	"sync"
)

// Reserved stream name helpers, per spec.md §4.3's naming conventions.
const (
	Main  = "main"
	Lobby = "lobby"
)

func ChatName(channel string) string       { return "chat/" + channel }
func SpectatorName(hostUserID int32) string { return fmt.Sprintf("spect/%d", hostUserID) }
func MatchName(matchID int32) string        { return fmt.Sprintf("multi/%d", matchID) }
func MatchPlayingName(matchID int32) string { return fmt.Sprintf("multi/%d/playing", matchID) }

// Registry owns all named streams, creating them on first use.
type Registry struct {
	mu      sync.Mutex
	streams map[string]*Stream
}

// NewRegistry returns an empty stream registry.
func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]*Stream)}
}

// Get returns the named stream, creating it if it does not yet exist.
func (r *Registry) Get(name string) *Stream {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[name]
	if !ok {
		s = newStream(name)
		r.streams[name] = s
	}
	return s
}

// Destroy removes a named stream entirely (used when a match or
// spectator session tears down).
func (r *Registry) Destroy(name string) {
	r.mu.Lock()
	delete(r.streams, name)
	r.mu.Unlock()
}

// Join adds sessionID to the named stream, creating it if necessary.
func (r *Registry) Join(name, sessionID string) {
	r.Get(name).Join(sessionID)
}

// Leave removes sessionID from the named stream if it exists.
func (r *Registry) Leave(name, sessionID string) {
	r.mu.Lock()
	s, ok := r.streams[name]
	r.mu.Unlock()
	if ok {
		s.Leave(sessionID)
	}
}

// Broadcast delivers b to every member of the named stream, if it exists.
func (r *Registry) Broadcast(sender Sender, name string, b []byte, exclude map[string]struct{}) {
	r.mu.Lock()
	s, ok := r.streams[name]
	r.mu.Unlock()
	if ok {
		s.Broadcast(sender, b, exclude)
	}
}

// Members returns the member snapshot of the named stream, or nil if it
// does not exist.
func (r *Registry) Members(name string) []string {
	r.mu.Lock()
	s, ok := r.streams[name]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Members()
}
