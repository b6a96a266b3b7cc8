// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package presence

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"sync"
	"testing"
)

// checkInvariants verifies the structural invariants of the registry.
func checkInvariants(t *testing.T, r *Registry) {
	t.Helper()
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := 0
	for user, set := range r.users {
		if len(set) == 0 {
			t.Errorf("user %q present with empty handle set", user)
		}
		for h := range set {
			handles++
			if owner := r.owners[h]; owner != user {
				t.Errorf("handle %q listed under %q but owned by %q", h, user, owner)
			}
		}
	}
	if handles != len(r.owners) {
		t.Errorf("handle count mismatch: %d in user sets, %d in reverse index", handles, len(r.owners))
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("alice", "h1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("alice", "h2"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("bob", "h3"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if got := r.Lookup("alice"); !reflect.DeepEqual(got, []string{"h1", "h2"}) {
		t.Errorf("Lookup(alice) = %v, want [h1 h2]", got)
	}
	if got := r.Lookup("bob"); !reflect.DeepEqual(got, []string{"h3"}) {
		t.Errorf("Lookup(bob) = %v, want [h3]", got)
	}
	if !r.IsOnline("alice") || !r.IsOnline("bob") {
		t.Error("expected alice and bob online")
	}
	if stats := r.Stats(); stats.Users != 2 || stats.Handles != 3 {
		t.Errorf("Stats() = %+v, want 2 users / 3 handles", stats)
	}
	checkInvariants(t, r)
}

func TestRegistry_RegisterIdempotent(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < 3; i++ {
		if err := r.Register("alice", "h1"); err != nil {
			t.Fatalf("Register #%d failed: %v", i, err)
		}
	}

	if got := len(r.Lookup("alice")); got != 1 {
		t.Errorf("expected 1 handle after repeated register, got %d", got)
	}
	checkInvariants(t, r)
}

func TestRegistry_RegisterInvalidArgument(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		handle string
	}{
		{"empty user", "", "h1"},
		{"blank user", "   ", "h1"},
		{"empty handle", "alice", ""},
		{"control char in user", "ali\nce", "h1"},
		{"oversized user", strings.Repeat("u", MaxIDLength+1), "h1"},
		{"oversized handle", "alice", strings.Repeat("h", MaxIDLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.userID, tt.handle)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Register(%q, %q) error = %v, want ErrInvalidArgument", tt.userID, tt.handle, err)
			}
			if stats := r.Stats(); stats.Users != 0 || stats.Handles != 0 {
				t.Errorf("registry mutated on invalid input: %+v", stats)
			}
		})
	}
}

func TestRegistry_RegisterMovesHandle(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("alice", "h1")

	if err := r.Register("bob", "h1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if r.IsOnline("alice") {
		t.Error("alice should have no handles after h1 moved to bob")
	}
	if owner, _ := r.Owner("h1"); owner != "bob" {
		t.Errorf("Owner(h1) = %q, want bob", owner)
	}
	checkInvariants(t, r)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("alice", "h1")
	_ = r.Register("alice", "h2")

	user, removed := r.Unregister("h1")
	if !removed || user != "alice" {
		t.Errorf("Unregister(h1) = (%q, %v), want (alice, true)", user, removed)
	}
	if got := r.Lookup("alice"); !reflect.DeepEqual(got, []string{"h2"}) {
		t.Errorf("Lookup(alice) = %v, want [h2]", got)
	}

	r.Unregister("h2")
	if r.IsOnline("alice") {
		t.Error("alice should be offline after last handle removed")
	}
	if _, ok := r.users["alice"]; ok {
		t.Error("empty user key leaked")
	}
	checkInvariants(t, r)
}

func TestRegistry_UnregisterUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("alice", "h1")

	before := r.Stats()
	user, removed := r.Unregister("never-registered")
	if removed || user != "" {
		t.Errorf("Unregister(unknown) = (%q, %v), want (\"\", false)", user, removed)
	}

	// Duplicate disconnect notification
	r.Unregister("h1")
	r.Unregister("h1")

	if before.Handles != 1 {
		t.Fatalf("unexpected setup: %+v", before)
	}
	if stats := r.Stats(); stats.Handles != 0 || stats.Users != 0 {
		t.Errorf("Stats() = %+v, want empty", stats)
	}
	checkInvariants(t, r)
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("alice", "h1")

	got := r.Lookup("alice")
	got[0] = "tampered"

	if again := r.Lookup("alice"); again[0] != "h1" {
		t.Errorf("Lookup result aliases registry state: %v", again)
	}

	empty := r.Lookup("nobody")
	if empty == nil || len(empty) != 0 {
		t.Errorf("Lookup(unknown) = %#v, want empty non-nil slice", empty)
	}
}

func TestRegistry_HandlesAndOnlineUsers(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("carol", "h3")
	_ = r.Register("alice", "h1")
	_ = r.Register("alice", "h2")

	if got := r.Handles(); !reflect.DeepEqual(got, []string{"h1", "h2", "h3"}) {
		t.Errorf("Handles() = %v", got)
	}
	if got := r.OnlineUsers(); !reflect.DeepEqual(got, []string{"alice", "carol"}) {
		t.Errorf("OnlineUsers() = %v", got)
	}
}

// TestRegistry_RandomSequencesKeepInvariants applies random register/unregister
// sequences and checks that a user key exists iff its handle set is non-empty.
func TestRegistry_RandomSequencesKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	users := []string{"alice", "bob", "carol", "dave"}

	for run := 0; run < 50; run++ {
		r := NewRegistry()
		model := make(map[string]string) // handle -> user

		for step := 0; step < 200; step++ {
			handle := fmt.Sprintf("h%d", rng.Intn(12))
			if rng.Intn(3) == 0 {
				r.Unregister(handle)
				delete(model, handle)
			} else {
				user := users[rng.Intn(len(users))]
				if err := r.Register(user, handle); err != nil {
					t.Fatalf("Register failed: %v", err)
				}
				model[handle] = user
			}
		}

		checkInvariants(t, r)
		for _, u := range users {
			want := 0
			for _, owner := range model {
				if owner == u {
					want++
				}
			}
			if got := len(r.Lookup(u)); got != want {
				t.Errorf("run %d: Lookup(%s) has %d handles, model has %d", run, u, got, want)
			}
			if r.IsOnline(u) != (want > 0) {
				t.Errorf("run %d: IsOnline(%s) = %v, model says %v", run, u, r.IsOnline(u), want > 0)
			}
		}
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i%5)
			for j := 0; j < 100; j++ {
				handle := fmt.Sprintf("h-%d-%d", i, j)
				_ = r.Register(user, handle)
				_ = r.Lookup(user)
				_ = r.Handles()
				r.Unregister(handle)
			}
		}(i)
	}
	wg.Wait()

	if stats := r.Stats(); stats.Users != 0 || stats.Handles != 0 {
		t.Errorf("expected empty registry after balanced register/unregister, got %+v", stats)
	}
	checkInvariants(t, r)
}
