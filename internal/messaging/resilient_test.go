// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

// failingStore fails every call with err while fail is set.
type failingStore struct {
	mu    sync.Mutex
	fail  bool
	err   error
	calls int
}

func (f *failingStore) result() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return f.err
	}
	return nil
}

func (f *failingStore) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *failingStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *failingStore) SaveMessage(_ context.Context, msg NewMessage) (*Message, error) {
	if err := f.result(); err != nil {
		return nil, err
	}
	return &Message{ID: "m1", SenderID: msg.SenderID, ReceiverID: msg.ReceiverID, Body: msg.Body}, nil
}

func (f *failingStore) GetMessage(context.Context, string) (*Message, error) {
	if err := f.result(); err != nil {
		return nil, err
	}
	return nil, ErrNotFound
}

func (f *failingStore) DeleteMessage(context.Context, string) (bool, error) {
	return true, f.result()
}

func (f *failingStore) Conversation(context.Context, string, string) ([]Message, error) {
	return []Message{}, f.result()
}

func (f *failingStore) MarkAsRead(context.Context, string, string) (int, error) {
	return 1, f.result()
}

func (f *failingStore) Participants(context.Context, string) ([]Participant, error) {
	return []Participant{}, f.result()
}

func (f *failingStore) Close() error { return nil }

func TestResilientStore_PassesThrough(t *testing.T) {
	inner := &failingStore{}
	store := NewResilientStore(inner, BreakerConfig{Name: "test-pass"})
	ctx := context.Background()

	m, err := store.SaveMessage(ctx, NewMessage{SenderID: "alice", ReceiverID: "bob", Body: "hi"})
	if err != nil || m.Body != "hi" {
		t.Fatalf("SaveMessage = (%+v, %v)", m, err)
	}
	if n, err := store.MarkAsRead(ctx, "alice", "bob"); err != nil || n != 1 {
		t.Errorf("MarkAsRead = (%d, %v), want (1, nil)", n, err)
	}
	if ok, err := store.DeleteMessage(ctx, "m1"); err != nil || !ok {
		t.Errorf("DeleteMessage = (%v, %v), want (true, nil)", ok, err)
	}
	if store.State() != "closed" {
		t.Errorf("State() = %q, want closed", store.State())
	}
}

func TestResilientStore_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingStore{fail: true, err: errBackend}
	store := NewResilientStore(inner, BreakerConfig{
		Name:             "test-open",
		FailureThreshold: 3,
		Timeout:          50 * time.Millisecond,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.Conversation(ctx, "a", "b"); !errors.Is(err, errBackend) {
			t.Fatalf("call %d error = %v, want backend error", i, err)
		}
	}
	if store.State() != "open" {
		t.Fatalf("State() = %q, want open", store.State())
	}

	calls := inner.callCount()
	_, err := store.Conversation(ctx, "a", "b")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("error while open = %v, want ErrStoreUnavailable", err)
	}
	if inner.callCount() != calls {
		t.Error("open breaker reached the inner store")
	}

	// After the timeout one trial request is let through; success closes the breaker.
	inner.setFail(false)
	time.Sleep(80 * time.Millisecond)
	if _, err := store.Conversation(ctx, "a", "b"); err != nil {
		t.Fatalf("trial request after timeout failed: %v", err)
	}
	if store.State() != "closed" {
		t.Errorf("State() = %q, want closed after a successful trial request", store.State())
	}
}

func TestResilientStore_NotFoundDoesNotTrip(t *testing.T) {
	inner := &failingStore{}
	store := NewResilientStore(inner, BreakerConfig{Name: "test-notfound", FailureThreshold: 2})

	for i := 0; i < 5; i++ {
		if _, err := store.GetMessage(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetMessage error = %v, want ErrNotFound", err)
		}
	}
	if store.State() != "closed" {
		t.Errorf("State() = %q, want closed", store.State())
	}
}

func TestResilientStore_CancellationDoesNotTrip(t *testing.T) {
	inner := &failingStore{fail: true, err: context.Canceled}
	store := NewResilientStore(inner, BreakerConfig{Name: "test-cancel", FailureThreshold: 2})

	for i := 0; i < 5; i++ {
		_, _ = store.Participants(context.Background(), "alice")
	}
	if store.State() != "closed" {
		t.Errorf("State() = %q, want closed", store.State())
	}
}

func TestResilientStore_LargeMarkAsReadKeepsBreakerClosed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large conversation test in short mode")
	}

	store := NewResilientStore(setupStore(t), BreakerConfig{
		Name:             "test-large-mark",
		FailureThreshold: 5,
		Timeout:          time.Minute,
	})
	ctx := context.Background()
	saveLongConversation(t, store, 4000, 4096)

	for i := 0; i < 5; i++ {
		if _, err := store.MarkAsRead(ctx, "alice", "bob"); err != nil {
			t.Fatalf("MarkAsRead #%d failed: %v", i, err)
		}
	}
	if store.State() != "closed" {
		t.Fatalf("State() = %q, want closed", store.State())
	}

	if _, err := store.SaveMessage(ctx, NewMessage{SenderID: "carol", ReceiverID: "dave", Body: "hi"}); err != nil {
		t.Errorf("unrelated SaveMessage failed: %v", err)
	}
}
