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
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianTasks/pkg/validation"
	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
)

const (
	userPrefix      = "user:"
	userEmailPrefix = "user_email:"
)

// userSearchLimit caps search results for the assignee picker.
const userSearchLimit = 50

// UserStore persists User records with a unique-email constraint.
//
// The email index key is written in the same transaction as the record,
// so uniqueness holds under concurrent registration: badger's SSI aborts
// one of two conflicting transactions.
type UserStore struct {
	db *badger.DB
}

func userKey(id string) []byte { return []byte(userPrefix + id) }

func emailKey(email string) []byte {
	return []byte(userEmailPrefix + validation.NormalizeEmail(email))
}

// Create inserts a user. Returns ErrEmailTaken if the normalized email is
// already indexed.
func (s *UserStore) Create(ctx context.Context, user *datatypes.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	user.Email = validation.NormalizeEmail(user.Email)
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(user.Email)); err == nil {
			return ErrEmailTaken
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		if err := txn.Set(userKey(user.ID), payload); err != nil {
			return err
		}
		return txn.Set(emailKey(user.Email), []byte(user.ID))
	})
}

// GetByID loads a user or returns ErrNotFound.
func (s *UserStore) GetByID(ctx context.Context, id string) (*datatypes.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user datatypes.User
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail resolves the email index and loads the user.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*datatypes.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// List returns all users, newest first.
func (s *UserStore) List(ctx context.Context) ([]*datatypes.User, error) {
	users, err := s.scan(ctx, func(*datatypes.User) bool { return true }, 0)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Search returns users whose name or email contains q (case-insensitive),
// newest first, capped at 50. An empty q returns no results.
func (s *UserStore) Search(ctx context.Context, q string) ([]*datatypes.User, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []*datatypes.User{}, nil
	}
	return s.scan(ctx, func(u *datatypes.User) bool {
		return strings.Contains(strings.ToLower(u.Name), q) ||
			strings.Contains(strings.ToLower(u.Email), q)
	}, userSearchLimit)
}

// Update persists a modified user, maintaining the email index when the
// email changed. Returns ErrEmailTaken if the new email belongs to a
// different user.
func (s *UserStore) Update(ctx context.Context, user *datatypes.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	user.Email = validation.NormalizeEmail(user.Email)
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(user.ID))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		var prev datatypes.User
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &prev)
		}); err != nil {
			return err
		}
		if prev.Email != user.Email {
			if existing, err := txn.Get(emailKey(user.Email)); err == nil {
				var ownerID string
				if err := existing.Value(func(val []byte) error {
					ownerID = string(val)
					return nil
				}); err != nil {
					return err
				}
				if ownerID != user.ID {
					return ErrEmailTaken
				}
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			if err := txn.Delete(emailKey(prev.Email)); err != nil {
				return err
			}
			if err := txn.Set(emailKey(user.Email), []byte(user.ID)); err != nil {
				return err
			}
		}
		return txn.Set(userKey(user.ID), payload)
	})
}

// Delete removes a user and its email index entry. Tasks referencing the
// user are left untouched; their expanded views render a nil reference.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		var user datatypes.User
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		}); err != nil {
			return err
		}
		if err := txn.Delete(emailKey(user.Email)); err != nil {
			return err
		}
		return txn.Delete(userKey(id))
	})
}

func (s *UserStore) scan(ctx context.Context, match func(*datatypes.User) bool, limit int) ([]*datatypes.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	users := []*datatypes.User{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(userPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user datatypes.User
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			}); err != nil {
				return err
			}
			if match(&user) {
				users = append(users, &user)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
