// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package messaging

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/imconnect/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func setupStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadgerStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustSave(t *testing.T, s Store, from, to, body string) *Message {
	t.Helper()
	m, err := s.SaveMessage(context.Background(), NewMessage{SenderID: from, ReceiverID: to, Body: body})
	if err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}
	return m
}

func TestBadgerStore_SaveAndGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	saved, err := s.SaveMessage(ctx, NewMessage{SenderID: "alice", ReceiverID: "bob", Body: "hi", Image: true})
	if err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}
	if saved.ID == "" || saved.Timestamp.IsZero() {
		t.Fatalf("saved message missing id or timestamp: %+v", saved)
	}
	if saved.ReadBy == nil || len(saved.ReadBy) != 0 {
		t.Errorf("ReadBy = %#v, want empty non-nil", saved.ReadBy)
	}

	got, err := s.GetMessage(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if got.Body != "hi" || !got.Image || got.SenderID != "alice" || got.ReceiverID != "bob" {
		t.Errorf("GetMessage = %+v", got)
	}
	if !got.Timestamp.Equal(saved.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, saved.Timestamp)
	}
}

func TestBadgerStore_GetUnknown(t *testing.T) {
	s := setupStore(t)
	if _, err := s.GetMessage(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMessage(missing) error = %v, want ErrNotFound", err)
	}
}

func TestBadgerStore_ConversationNewestFirst(t *testing.T) {
	s := setupStore(t)

	m1 := mustSave(t, s, "alice", "bob", "one")
	m2 := mustSave(t, s, "bob", "alice", "two")
	m3 := mustSave(t, s, "alice", "bob", "three")
	mustSave(t, s, "alice", "carol", "elsewhere")

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		msgs, err := s.Conversation(context.Background(), pair[0], pair[1])
		if err != nil {
			t.Fatalf("Conversation failed: %v", err)
		}
		if len(msgs) != 3 {
			t.Fatalf("Conversation(%s, %s) returned %d messages, want 3", pair[0], pair[1], len(msgs))
		}
		want := []string{m3.ID, m2.ID, m1.ID}
		for i, m := range msgs {
			if m.ID != want[i] {
				t.Errorf("message %d = %s, want %s", i, m.ID, want[i])
			}
		}
	}
}

func TestBadgerStore_ConversationEmpty(t *testing.T) {
	s := setupStore(t)
	msgs, err := s.Conversation(context.Background(), "alice", "nobody")
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Errorf("Conversation = %#v, want empty non-nil", msgs)
	}
}

func TestBadgerStore_ConversationPrefixIsolation(t *testing.T) {
	s := setupStore(t)
	mustSave(t, s, "al", "bob", "short")
	mustSave(t, s, "alice", "bob", "long")

	msgs, err := s.Conversation(context.Background(), "al", "bob")
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "short" {
		t.Errorf("Conversation(al, bob) = %+v", msgs)
	}
}

func TestBadgerStore_Delete(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	m := mustSave(t, s, "alice", "bob", "hi")

	deleted, err := s.DeleteMessage(ctx, m.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteMessage = (%v, %v), want (true, nil)", deleted, err)
	}
	if _, err := s.GetMessage(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMessage after delete error = %v, want ErrNotFound", err)
	}

	deleted, err = s.DeleteMessage(ctx, m.ID)
	if err != nil || deleted {
		t.Errorf("second DeleteMessage = (%v, %v), want (false, nil)", deleted, err)
	}

	// Last message gone: the conversation partner disappears.
	participants, err := s.Participants(ctx, "alice")
	if err != nil {
		t.Fatalf("Participants failed: %v", err)
	}
	if len(participants) != 0 {
		t.Errorf("Participants after delete = %+v, want none", participants)
	}
}

func TestBadgerStore_MarkAsRead(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	mustSave(t, s, "alice", "bob", "one")
	mustSave(t, s, "bob", "alice", "two")
	mustSave(t, s, "alice", "carol", "other")

	n, err := s.MarkAsRead(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("MarkAsRead failed: %v", err)
	}
	if n != 2 {
		t.Errorf("MarkAsRead modified %d, want 2", n)
	}

	msgs, _ := s.Conversation(ctx, "alice", "bob")
	for _, m := range msgs {
		if !m.IsReadBy("bob") {
			t.Errorf("message %s not read by bob", m.ID)
		}
	}

	n, err = s.MarkAsRead(ctx, "bob", "alice")
	if err != nil || n != 0 {
		t.Errorf("repeated MarkAsRead = (%d, %v), want (0, nil)", n, err)
	}

	other, _ := s.Conversation(ctx, "alice", "carol")
	if other[0].IsReadBy("bob") {
		t.Error("unrelated conversation was marked")
	}
}

// saveLongConversation stores n messages of size bytes from bob to alice,
// together larger than a single badger transaction accepts.
func saveLongConversation(t *testing.T, s Store, n, size int) {
	t.Helper()
	body := strings.Repeat("x", size)
	for i := 0; i < n; i++ {
		mustSave(t, s, "bob", "alice", body)
	}
}

func TestBadgerStore_MarkAsReadLargeConversation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large conversation test in short mode")
	}

	s := setupStore(t)
	ctx := context.Background()
	const total = 4000
	saveLongConversation(t, s, total, 4096)

	n, err := s.MarkAsRead(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("MarkAsRead on large conversation failed: %v", err)
	}
	if n != total {
		t.Errorf("MarkAsRead modified %d, want %d", n, total)
	}

	msgs, err := s.Conversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	unread := 0
	for _, m := range msgs {
		if !m.IsReadBy("alice") {
			unread++
		}
	}
	if unread != 0 {
		t.Errorf("%d of %d messages still unread by alice", unread, len(msgs))
	}

	if n, err := s.MarkAsRead(ctx, "alice", "bob"); err != nil || n != 0 {
		t.Errorf("repeated MarkAsRead = (%d, %v), want (0, nil)", n, err)
	}
}

func TestBadgerStore_MarkAsReadSkipsDeleted(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	kept := mustSave(t, s, "bob", "alice", "kept")
	gone := mustSave(t, s, "bob", "alice", "gone")

	keys, err := s.unreadKeys("alice", "bob")
	if err != nil {
		t.Fatalf("unreadKeys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("unreadKeys returned %d keys, want 2", len(keys))
	}

	// Deleted between the scan and the rewrite.
	if _, err := s.DeleteMessage(ctx, gone.ID); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}

	n, consumed, err := s.markReadBatch("alice", keys)
	if err != nil {
		t.Fatalf("markReadBatch failed: %v", err)
	}
	if n != 1 || consumed != 2 {
		t.Errorf("markReadBatch = (%d, %d), want (1, 2)", n, consumed)
	}
	if _, err := s.GetMessage(ctx, gone.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted message came back: %v", err)
	}
	got, err := s.GetMessage(ctx, kept.ID)
	if err != nil || !got.IsReadBy("alice") {
		t.Errorf("kept message = (%+v, %v), want read by alice", got, err)
	}
}

func TestBadgerStore_MarkAsReadConcurrent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		mustSave(t, s, "bob", "alice", "hi")
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.MarkAsRead(ctx, "alice", "bob")
			if err != nil {
				t.Errorf("MarkAsRead failed: %v", err)
				return
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if total != 50 {
		t.Errorf("modified %d messages in total, want 50", total)
	}
}

func TestBadgerStore_Participants(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	mustSave(t, s, "carol", "alice", "first from carol")
	mustSave(t, s, "alice", "bob", "hello bob")
	mustSave(t, s, "bob", "alice", strings.Repeat("é", SnippetLength+5))
	mustSave(t, s, "alice", "carol", "")

	participants, err := s.Participants(ctx, "alice")
	if err != nil {
		t.Fatalf("Participants failed: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("Participants returned %d, want 2: %+v", len(participants), participants)
	}

	carol, bob := participants[0], participants[1]
	if carol.UserID != "carol" || bob.UserID != "bob" {
		t.Fatalf("order = [%s %s], want [carol bob]", carol.UserID, bob.UserID)
	}
	if !carol.EarliestMessageTime.Before(bob.EarliestMessageTime) {
		t.Error("participants not ordered by earliest message")
	}
	if carol.Snippet != noMessageSnippet {
		t.Errorf("carol snippet = %q, want %q", carol.Snippet, noMessageSnippet)
	}
	if want := strings.Repeat("é", SnippetLength); bob.Snippet != want {
		t.Errorf("bob snippet = %q, want %d runes", bob.Snippet, SnippetLength)
	}
	if !carol.ChatNotRead || !bob.ChatNotRead {
		t.Errorf("expected unread chats, got carol=%v bob=%v", carol.ChatNotRead, bob.ChatNotRead)
	}
	if bob.LastMessageTime.Before(bob.EarliestMessageTime) {
		t.Error("LastMessageTime before EarliestMessageTime")
	}

	if _, err := s.MarkAsRead(ctx, "alice", "bob"); err != nil {
		t.Fatalf("MarkAsRead failed: %v", err)
	}
	participants, _ = s.Participants(ctx, "alice")
	if participants[1].ChatNotRead {
		t.Error("bob chat still unread after MarkAsRead")
	}
}

func TestBadgerStore_ParticipantsOwnMessagesAreRead(t *testing.T) {
	s := setupStore(t)
	mustSave(t, s, "alice", "bob", "hi")

	participants, err := s.Participants(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Participants failed: %v", err)
	}
	if len(participants) != 1 || participants[0].ChatNotRead {
		t.Errorf("Participants = %+v, want bob with nothing unread", participants)
	}
}

func TestBadgerStore_CanceledContext(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.SaveMessage(ctx, NewMessage{SenderID: "a", ReceiverID: "b"}); !errors.Is(err, context.Canceled) {
		t.Errorf("SaveMessage error = %v, want context.Canceled", err)
	}
	if _, err := s.Conversation(ctx, "a", "b"); !errors.Is(err, context.Canceled) {
		t.Errorf("Conversation error = %v, want context.Canceled", err)
	}
}

func TestBadgerStore_TimestampsStrictlyIncrease(t *testing.T) {
	s := setupStore(t)
	prev := time.Time{}
	for i := 0; i < 100; i++ {
		ts := s.nextTimestamp()
		if !ts.After(prev) {
			t.Fatalf("timestamp %d (%v) not after %v", i, ts, prev)
		}
		prev = ts
	}
}

func TestBadgerStore_RunGCStopsOnCancel(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.RunGC(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunGC error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunGC did not stop")
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"", noMessageSnippet},
		{"short", "short"},
		{strings.Repeat("a", SnippetLength), strings.Repeat("a", SnippetLength)},
		{strings.Repeat("a", SnippetLength+1), strings.Repeat("a", SnippetLength)},
	}
	for _, tt := range tests {
		if got := snippet(tt.body); got != tt.want {
			t.Errorf("snippet(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
