// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
)

type fakeWriter struct {
	created []*datatypes.Notification
	err     error
}

func (w *fakeWriter) Create(_ context.Context, n *datatypes.Notification) error {
	if w.err != nil {
		return w.err
	}
	w.created = append(w.created, n)
	return nil
}

type fakePublisher struct {
	published []*datatypes.Notification
}

func (p *fakePublisher) Publish(_ string, n *datatypes.Notification) {
	p.published = append(p.published, n)
}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelWarn, Quiet: true})
}

func TestNotifyOnNewAssignee(t *testing.T) {
	writer := &fakeWriter{}
	svc := New(writer, quietLogger(), nil)
	task := &datatypes.Task{ID: "t1", Title: "Write spec"}

	svc.NotifyAssignment(context.Background(), "Alice", "", "u1", task)

	require.Len(t, writer.created, 1)
	n := writer.created[0]
	assert.Equal(t, "u1", n.UserID)
	assert.Equal(t, datatypes.NotificationTypeTaskAssigned, n.Type)
	assert.Equal(t, "Alice assigned you a task: Write spec", n.Message)
	assert.Equal(t, "t1", n.Data.TaskID)
	assert.False(t, n.Read)
}

func TestNoNotifyDecisions(t *testing.T) {
	tests := []struct {
		name string
		prev string
		next string
	}{
		{"unassign", "u1", ""},
		{"same assignee", "u1", "u1"},
		{"no assignee at all", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &fakeWriter{}
			svc := New(writer, quietLogger(), nil)
			svc.NotifyAssignment(context.Background(), "Alice", tt.prev, tt.next,
				&datatypes.Task{ID: "t1", Title: "x"})
			assert.Empty(t, writer.created)
		})
	}
}

func TestReassignmentScenario(t *testing.T) {
	// The full lifecycle: create unassigned, assign U1, reassign U1
	// (no-op), reassign U2.
	writer := &fakeWriter{}
	svc := New(writer, quietLogger(), nil)
	task := &datatypes.Task{ID: "t1", Title: "Write spec"}
	ctx := context.Background()

	svc.NotifyAssignment(ctx, "Alice", "", "", task)
	assert.Empty(t, writer.created, "creation without assignee")

	svc.NotifyAssignment(ctx, "Alice", "", "U1", task)
	require.Len(t, writer.created, 1)
	assert.Equal(t, "U1", writer.created[0].UserID)
	assert.Contains(t, writer.created[0].Message, "assigned you a task: Write spec")

	svc.NotifyAssignment(ctx, "Alice", "U1", "U1", task)
	assert.Len(t, writer.created, 1, "idempotent reassignment creates nothing")

	svc.NotifyAssignment(ctx, "Alice", "U1", "U2", task)
	require.Len(t, writer.created, 2)
	assert.Equal(t, "U2", writer.created[1].UserID)
}

func TestAnonymousActorFallsBackToSomeone(t *testing.T) {
	writer := &fakeWriter{}
	svc := New(writer, quietLogger(), nil)

	svc.NotifyAssignment(context.Background(), "", "", "u1",
		&datatypes.Task{ID: "t1", Title: "Write spec"})

	require.Len(t, writer.created, 1)
	assert.Equal(t, "Someone assigned you a task: Write spec", writer.created[0].Message)
}

func TestStoreFailureIsSwallowedAndLogged(t *testing.T) {
	exporter := logging.NewBufferedExporter()
	logger := logging.New(logging.Config{
		Level:    logging.LevelWarn,
		Quiet:    true,
		Exporter: exporter,
	})
	writer := &fakeWriter{err: errors.New("disk full")}
	publisher := &fakePublisher{}
	svc := New(writer, logger, publisher)

	// Must not panic or propagate anything.
	svc.NotifyAssignment(context.Background(), "Alice", "", "u1",
		&datatypes.Task{ID: "t1", Title: "Write spec"})

	require.Eventually(t, func() bool {
		return len(exporter.Entries()) == 1
	}, time.Second, 10*time.Millisecond, "failure is logged")
	entry := exporter.Entries()[0]
	assert.Equal(t, logging.LevelWarn, entry.Level)
	assert.Equal(t, "notification creation failed", entry.Message)
	assert.Equal(t, "t1", entry.Attrs["task_id"])

	assert.Empty(t, publisher.published, "nothing published on store failure")
}

func TestPublishOnSuccess(t *testing.T) {
	writer := &fakeWriter{}
	publisher := &fakePublisher{}
	svc := New(writer, quietLogger(), publisher)

	svc.NotifyAssignment(context.Background(), "Alice", "", "u1",
		&datatypes.Task{ID: "t1", Title: "Write spec"})

	require.Len(t, publisher.published, 1)
	assert.Equal(t, "u1", publisher.published[0].UserID)
}
