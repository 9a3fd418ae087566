// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
)

const notifPrefix = "notif:"

// notifListLimit caps a single listing at the 50 most recent, matching
// the list endpoint contract. Older notifications are retained, just not
// listed.
const notifListLimit = 50

// NotificationStore persists per-user notifications.
//
// Keys embed an inverted creation timestamp so a forward prefix scan over
// "notif:<uid>:" yields newest first without sorting:
//
//	notif:<uid>:<maxint64 - unixnano, zero padded>:<id>
type NotificationStore struct {
	db *badger.DB
}

func notifUserPrefix(userID string) []byte {
	return []byte(notifPrefix + userID + ":")
}

func notifKey(n *datatypes.Notification) []byte {
	seq := fmt.Sprintf("%020d", uint64(math.MaxInt64)-uint64(n.CreatedAt.UnixNano()))
	return []byte(notifPrefix + n.UserID + ":" + seq + ":" + n.ID)
}

// Create persists a notification.
func (s *NotificationStore) Create(ctx context.Context, n *datatypes.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(notifKey(n), payload)
	})
}

// ListByUser returns the user's latest 50 notifications, newest first.
func (s *NotificationStore) ListByUser(ctx context.Context, userID string) ([]*datatypes.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	notes := []*datatypes.Notification{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := notifUserPrefix(userID)
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(notes) < notifListLimit; it.Next() {
			var n datatypes.Notification
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return err
			}
			notes = append(notes, &n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// MarkRead flips the read flag on one notification owned by userID.
// Returns ErrNotFound if no such notification exists for that user.
func (s *NotificationStore) MarkRead(ctx context.Context, userID, id string) (*datatypes.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var updated *datatypes.Notification
	err := s.db.Update(func(txn *badger.Txn) error {
		key, n, err := s.find(txn, userID, id)
		if err != nil {
			return err
		}
		n.Read = true
		payload, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		if err := txn.Set(key, payload); err != nil {
			return err
		}
		updated = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkAllRead flips the read flag on every notification owned by userID.
func (s *NotificationStore) MarkAllRead(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := notifUserPrefix(userID)

		type pending struct {
			key     []byte
			payload []byte
		}
		var writes []pending
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var n datatypes.Notification
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return err
			}
			if n.Read {
				continue
			}
			n.Read = true
			payload, err := json.Marshal(&n)
			if err != nil {
				return fmt.Errorf("marshal notification: %w", err)
			}
			writes = append(writes, pending{key: it.Item().KeyCopy(nil), payload: payload})
		}
		for _, w := range writes {
			if err := txn.Set(w.key, w.payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// find scans the user's prefix for a notification id and returns its key
// and decoded value.
func (s *NotificationStore) find(txn *badger.Txn, userID, id string) ([]byte, *datatypes.Notification, error) {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	prefix := notifUserPrefix(userID)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Item().Key()
		if !strings.HasSuffix(string(key), ":"+id) {
			continue
		}
		var n datatypes.Notification
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &n)
		}); err != nil {
			return nil, nil, err
		}
		return it.Item().KeyCopy(nil), &n, nil
	}
	return nil, nil, ErrNotFound
}
