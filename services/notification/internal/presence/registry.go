// Package presence tracks which users have live connections on this
// instance and pushes realtime events to them.
package presence

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"opsdash/pkg/logger"
	"opsdash/pkg/realtime"
)

var ErrEmptyUserID = errors.New("presence: identity has no user id")

// Handle is one live connection. Send must not block.
type Handle interface {
	ID() string
	Send(evt realtime.Event) error
	Close() error
}

type entry struct {
	identity realtime.Identity
	handles  map[string]Handle
}

// Registry maps user ids to their live handles. An entry exists only while
// the user has at least one handle.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]*entry
	owners map[string]string
	logger *logger.Logger
}

func NewRegistry(logger *logger.Logger) *Registry {
	return &Registry{
		users:  make(map[string]*entry),
		owners: make(map[string]string),
		logger: logger,
	}
}

// Register adds h to the handle set of identity.UserID. A handle that
// re-registers under another user moves to that user.
func (r *Registry) Register(identity realtime.Identity, h Handle) error {
	identity.UserID = strings.TrimSpace(identity.UserID)
	if identity.UserID == "" {
		return ErrEmptyUserID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.owners[h.ID()]; ok && previous != identity.UserID {
		r.removeLocked(h.ID())
	}

	e, ok := r.users[identity.UserID]
	if !ok {
		e = &entry{handles: make(map[string]Handle)}
		r.users[identity.UserID] = e
	}
	e.identity = identity
	e.handles[h.ID()] = h
	r.owners[h.ID()] = identity.UserID

	r.logger.Info("[PRESENCE] %s registered handle %s (%d open)", identity.UserID, h.ID(), len(e.handles))
	return nil
}

// Unregister removes the handle from whichever user owns it. It reports
// whether the handle was known.
func (r *Registry) Unregister(handleID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(handleID)
}

func (r *Registry) removeLocked(handleID string) bool {
	userID, ok := r.owners[handleID]
	if !ok {
		return false
	}
	delete(r.owners, handleID)

	e := r.users[userID]
	delete(e.handles, handleID)
	if len(e.handles) == 0 {
		delete(r.users, userID)
		r.logger.Info("[PRESENCE] %s went offline", userID)
	}
	return true
}

// Handles returns a snapshot of the user's handles ordered by id.
func (r *Registry) Handles(userID string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.users[userID]
	if !ok {
		return nil
	}
	handles := make([]Handle, 0, len(e.handles))
	for _, h := range e.handles {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].ID() < handles[j].ID() })
	return handles
}

// Users lists present user ids whose role matches. An empty role matches nobody.
func (r *Registry) Users(role string) []string {
	if role == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.users))
	for userID, e := range r.users {
		if e.identity.Role == role {
			users = append(users, userID)
		}
	}
	sort.Strings(users)
	return users
}

// Identity returns the identity most recently registered for userID.
func (r *Registry) Identity(userID string) (realtime.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.users[userID]
	if !ok {
		return realtime.Identity{}, false
	}
	return e.identity, true
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}

type Stats struct {
	Users     int    `json:"users"`
	Handles   int    `json:"handles"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Users: len(r.users), Handles: len(r.owners)}
}
