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

	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
)

const taskPrefix = "task:"

// TaskStore persists Task records. Updates are whole-record writes with
// last-write-wins semantics; there is no compare-and-swap. Two concurrent
// updates of the same task race exactly as the API contract allows.
type TaskStore struct {
	db *badger.DB
}

func taskKey(id string) []byte { return []byte(taskPrefix + id) }

// Create inserts a task.
func (s *TaskStore) Create(ctx context.Context, task *datatypes.Task) error {
	return s.put(ctx, task)
}

// Put writes a task record, replacing any existing value.
func (s *TaskStore) Put(ctx context.Context, task *datatypes.Task) error {
	return s.put(ctx, task)
}

func (s *TaskStore) put(ctx context.Context, task *datatypes.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(taskKey(task.ID), payload)
	})
}

// Get loads a task or returns ErrNotFound.
func (s *TaskStore) Get(ctx context.Context, id string) (*datatypes.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var task datatypes.Task
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(taskKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &task)
		})
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns all tasks, newest first.
func (s *TaskStore) List(ctx context.Context) ([]*datatypes.Task, error) {
	return s.scan(ctx, func(*datatypes.Task) bool { return true })
}

// Search returns tasks whose title or description contains q
// (case-insensitive), newest first. An empty q returns the full set.
func (s *TaskStore) Search(ctx context.Context, q string) ([]*datatypes.Task, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return s.List(ctx)
	}
	return s.scan(ctx, func(t *datatypes.Task) bool {
		return strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Description), q)
	})
}

// Delete hard-deletes a task. Notifications referencing the task are NOT
// cleaned up; data.taskId may dangle afterward.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(taskKey(id)); err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(taskKey(id))
	})
}

func (s *TaskStore) scan(ctx context.Context, match func(*datatypes.Task) bool) ([]*datatypes.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tasks := []*datatypes.Task{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(taskPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var task datatypes.Task
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &task)
			}); err != nil {
				return err
			}
			if match(&task) {
				tasks = append(tasks, &task)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}
