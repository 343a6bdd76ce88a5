package server

import (
	"sort"

	"github.com/samber/lo"
)

// Registry maps a username to the session currently receiving its traffic.
// It is not safe for concurrent use; Engine guards it.
type Registry struct {
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register installs or overwrites the mapping. A replaced session is neither
// closed nor notified.
func (r *Registry) Register(username string, session *Session) {
	r.sessions[username] = session
}

func (r *Registry) Lookup(username string) (*Session, bool) {
	session, ok := r.sessions[username]
	return session, ok
}

func (r *Registry) Remove(username string) {
	delete(r.sessions, username)
}

// Usernames returns the registered names in lexical order.
func (r *Registry) Usernames() []string {
	names := lo.Keys(r.sessions)
	sort.Strings(names)
	return names
}
