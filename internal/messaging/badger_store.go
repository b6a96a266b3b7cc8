// IMConnect - Presence and Real-Time Messaging Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/imconnect

package messaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/imconnect/internal/logging"
	"github.com/tomtom215/imconnect/internal/metrics"
)

// Key layout. Parts are joined with NUL, which ids cannot contain.
//
//	msg   <id>                         -> conversation key of the message
//	conv  <a> <b> <unix-nanos> <id>    -> message document (a <= b)
//	peer  <user> <other>               -> empty, one per direction
const (
	keySep     = "\x00"
	prefixMsg  = "msg" + keySep
	prefixConv = "conv" + keySep
	prefixPeer = "peer" + keySep
)

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	Path     string
	InMemory bool
}

// BadgerStore is a Store backed by BadgerDB.
//
// Messages of one conversation are stored under a shared prefix ordered by
// timestamp, so conversation reads are a single prefix scan.
type BadgerStore struct {
	db *badger.DB

	mu     sync.Mutex
	lastTS int64
}

// OpenBadgerStore opens (or creates) the store described by cfg.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("Message store opened")
	return &BadgerStore{db: db}, nil
}

func msgKey(id string) []byte {
	return []byte(prefixMsg + id)
}

func convPrefix(a, b string) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte(prefixConv + a + keySep + b + keySep)
}

func convKey(a, b string, ts time.Time, id string) []byte {
	return append(convPrefix(a, b), []byte(fmt.Sprintf("%020d", ts.UnixNano())+keySep+id)...)
}

func peerPrefix(user string) []byte {
	return []byte(prefixPeer + user + keySep)
}

func peerKey(user, other string) []byte {
	return append(peerPrefix(user), other...)
}

// nextTimestamp returns a strictly increasing timestamp so conversation order
// is total even for messages saved within the same nanosecond.
func (s *BadgerStore) nextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().UnixNano()
	if now <= s.lastTS {
		now = s.lastTS + 1
	}
	s.lastTS = now
	return time.Unix(0, now).UTC()
}

// SaveMessage stores msg and indexes it for both participants.
func (s *BadgerStore) SaveMessage(ctx context.Context, msg NewMessage) (_ *Message, err error) {
	defer observe("save", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := &Message{
		ID:         uuid.NewString(),
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Body:       msg.Body,
		Image:      msg.Image,
		Timestamp:  s.nextTimestamp(),
		ReadBy:     []string{},
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	ck := convKey(m.SenderID, m.ReceiverID, m.Timestamp, m.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(ck, data); err != nil {
			return fmt.Errorf("set message: %w", err)
		}
		if err := txn.Set(msgKey(m.ID), ck); err != nil {
			return fmt.Errorf("set message index: %w", err)
		}
		if err := txn.Set(peerKey(m.SenderID, m.ReceiverID), nil); err != nil {
			return fmt.Errorf("set peer index: %w", err)
		}
		return txn.Set(peerKey(m.ReceiverID, m.SenderID), nil)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMessage returns the message with the given id.
func (s *BadgerStore) GetMessage(ctx context.Context, id string) (_ *Message, err error) {
	defer observe("get", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var m *Message
	err = s.db.View(func(txn *badger.Txn) error {
		_, found, err := getByID(txn, id)
		if err != nil {
			return err
		}
		if found == nil {
			return ErrNotFound
		}
		m = found
		return nil
	})
	return m, err
}

// getByID resolves id through the message index. A nil message means not found.
func getByID(txn *badger.Txn, id string) ([]byte, *Message, error) {
	item, err := txn.Get(msgKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get message index: %w", err)
	}
	ck, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("read message index: %w", err)
	}

	item, err = txn.Get(ck)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get message: %w", err)
	}

	var m Message
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &m)
	}); err != nil {
		return nil, nil, fmt.Errorf("decode message: %w", err)
	}
	return ck, &m, nil
}

// DeleteMessage removes a message. When it was the last message between two
// users their peer entries are removed too.
func (s *BadgerStore) DeleteMessage(ctx context.Context, id string) (deleted bool, err error) {
	defer observe("delete", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		ck, m, err := getByID(txn, id)
		if err != nil || m == nil {
			return err
		}

		if err := txn.Delete(ck); err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		if err := txn.Delete(msgKey(id)); err != nil {
			return fmt.Errorf("delete message index: %w", err)
		}
		deleted = true

		if hasPrefix(txn, convPrefix(m.SenderID, m.ReceiverID)) {
			return nil
		}
		if err := txn.Delete(peerKey(m.SenderID, m.ReceiverID)); err != nil {
			return fmt.Errorf("delete peer index: %w", err)
		}
		return txn.Delete(peerKey(m.ReceiverID, m.SenderID))
	})
	return deleted, err
}

func hasPrefix(txn *badger.Txn, prefix []byte) bool {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(prefix)
	return it.ValidForPrefix(prefix)
}

// Conversation returns the messages between a and b, newest first.
func (s *BadgerStore) Conversation(ctx context.Context, a, b string) (_ []Message, err error) {
	defer observe("conversation", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := make([]Message, 0)
	err = s.db.View(func(txn *badger.Txn) error {
		prefix := convPrefix(a, b)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var m Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// maxMarkReadConflicts bounds how often one MarkAsRead batch is retried after
// a transaction conflict.
const maxMarkReadConflicts = 3

// MarkAsRead adds reader to ReadBy of every message between reader and other,
// in both directions, and returns how many messages changed.
//
// The rewrites are committed in as many transactions as badger needs, so a
// long conversation never fails with ErrTxnTooBig. Each message is re-read in
// the transaction that rewrites it; one deleted after the scan is skipped.
func (s *BadgerStore) MarkAsRead(ctx context.Context, reader, other string) (modified int, err error) {
	defer observe("mark_read", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	keys, err := s.unreadKeys(reader, other)
	if err != nil {
		return 0, err
	}

	conflicts := 0
	for len(keys) > 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, consumed, err := s.markReadBatch(reader, keys)
		if errors.Is(err, badger.ErrConflict) && conflicts < maxMarkReadConflicts {
			// A concurrent writer touched the batch; re-reading skips what it marked.
			conflicts++
			continue
		}
		if err != nil {
			return 0, err
		}
		modified += n
		keys = keys[consumed:]
	}
	return modified, nil
}

// unreadKeys returns the conversation keys of messages not yet read by reader.
func (s *BadgerStore) unreadKeys(reader, other string) ([][]byte, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := convPrefix(reader, other)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			if !m.IsReadBy(reader) {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	return keys, err
}

// markReadBatch rewrites keys in one transaction until badger reports it is
// full, and returns how many messages changed and how many keys it consumed.
func (s *BadgerStore) markReadBatch(reader string, keys [][]byte) (modified, consumed int, err error) {
	err = s.db.Update(func(txn *badger.Txn) error {
		modified, consumed = 0, 0
		for _, key := range keys {
			item, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				consumed++
				continue
			}
			if err != nil {
				return fmt.Errorf("get message: %w", err)
			}

			var m Message
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			if !m.markRead(reader) {
				consumed++
				continue
			}

			data, err := json.Marshal(&m)
			if err != nil {
				return fmt.Errorf("marshal message: %w", err)
			}
			if err := txn.Set(key, data); err != nil {
				if errors.Is(err, badger.ErrTxnTooBig) && consumed > 0 {
					// Commit what fits; the caller continues from here.
					return nil
				}
				return fmt.Errorf("set message: %w", err)
			}
			modified++
			consumed++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return modified, consumed, nil
}

// Participants returns a summary per conversation partner of userID.
func (s *BadgerStore) Participants(ctx context.Context, userID string) (_ []Participant, err error) {
	defer observe("participants", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	participants := make([]Participant, 0)
	err = s.db.View(func(txn *badger.Txn) error {
		for _, other := range peers(txn, userID) {
			p, ok, err := summarize(txn, userID, other)
			if err != nil {
				return err
			}
			if ok {
				participants = append(participants, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(participants, func(i, j int) bool {
		if participants[i].EarliestMessageTime.Equal(participants[j].EarliestMessageTime) {
			return participants[i].UserID < participants[j].UserID
		}
		return participants[i].EarliestMessageTime.Before(participants[j].EarliestMessageTime)
	})
	return participants, nil
}

func peers(txn *badger.Txn, userID string) []string {
	prefix := peerPrefix(userID)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var others []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		others = append(others, string(bytes.TrimPrefix(it.Item().Key(), prefix)))
	}
	return others
}

func summarize(txn *badger.Txn, userID, other string) (Participant, bool, error) {
	prefix := convPrefix(userID, other)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	p := Participant{UserID: other}
	count := 0
	var last Message
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var m Message
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		}); err != nil {
			return Participant{}, false, fmt.Errorf("decode message: %w", err)
		}
		if count == 0 {
			p.EarliestMessageTime = m.Timestamp
		}
		if m.SenderID != userID && !m.IsReadBy(userID) {
			p.ChatNotRead = true
		}
		last = m
		count++
	}
	if count == 0 {
		return Participant{}, false, nil
	}

	p.LastMessageTime = last.Timestamp
	p.Snippet = snippet(last.Body)
	return p, true, nil
}

// RunGC runs BadgerDB value log garbage collection every interval until ctx is done.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
					logging.Warn().Err(err).Msg("Message store GC failed")
				}
				break
			}
		}
	}
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordStoreOperation(op, time.Since(start), *err)
}
