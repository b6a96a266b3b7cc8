// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package presence

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tomtom215/imconnect/internal/metrics"
)

// MaxIDLength bounds user ids and handles accepted by the Registry.
const MaxIDLength = 256

// Stats is a point-in-time size of the Registry.
type Stats struct {
	Users   int `json:"users"`
	Handles int `json:"handles"`
}

// Registry maps user ids to their live connection handles.
//
// All methods are safe for concurrent use. Mutations hold the write lock for
// the whole operation and never perform I/O, so every invariant holds at each
// point another goroutine can observe the Registry.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]map[string]struct{} // user -> handles
	owners map[string]string              // handle -> user
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]map[string]struct{}),
		owners: make(map[string]string),
	}
}

// Register adds handle to userID's set.
//
// Registering a handle that is already present for the same user is a no-op.
// If the handle is currently owned by a different user it is moved, so it is
// never listed under two users.
func (r *Registry) Register(userID, handle string) error {
	if err := validateID("user id", userID); err != nil {
		return err
	}
	if err := validateID("handle", handle); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[handle]; ok {
		if owner == userID {
			return nil
		}
		r.removeLocked(owner, handle)
	}

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{}, 1)
		r.users[userID] = set
	}
	set[handle] = struct{}{}
	r.owners[handle] = userID

	metrics.SetPresence(len(r.users), len(r.owners))
	return nil
}

// Unregister removes handle from whichever user owns it and reports that user.
// Unknown handles are ignored.
func (r *Registry) Unregister(handle string) (userID string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[handle]
	if !ok {
		return "", false
	}
	r.removeLocked(owner, handle)

	metrics.SetPresence(len(r.users), len(r.owners))
	return owner, true
}

// removeLocked drops handle from owner's set and the user key if the set empties.
func (r *Registry) removeLocked(owner, handle string) {
	delete(r.owners, handle)
	if set, ok := r.users[owner]; ok {
		delete(set, handle)
		if len(set) == 0 {
			delete(r.users, owner)
		}
	}
}

// Lookup returns a sorted copy of userID's live handles. The result is empty,
// never nil, for unknown users.
func (r *Registry) Lookup(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	handles := make([]string, 0, len(set))
	for h := range set {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

// IsOnline reports whether userID has at least one live handle.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Owner returns the user a handle is registered under.
func (r *Registry) Owner(handle string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[handle]
	return owner, ok
}

// Handles returns a sorted copy of every registered handle across all users.
func (r *Registry) Handles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]string, 0, len(r.owners))
	for h := range r.owners {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}

// OnlineUsers returns a sorted copy of every user with a live handle.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.users))
	for u := range r.users {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Stats returns the current number of users and handles.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Users: len(r.users), Handles: len(r.owners)}
}

// validateID rejects empty, oversized and control-character ids.
func validateID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidArgument, kind)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: %s longer than %d bytes", ErrInvalidArgument, kind, MaxIDLength)
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return fmt.Errorf("%w: %s contains control characters", ErrInvalidArgument, kind)
	}
	return nil
}
