// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package notify implements the assignment notification workflow.
//
// Every task mutation path that can set an assignee (create, update,
// explicit assign) calls the one Notifier instead of repeating the
// decision inline. The workflow is best-effort and at-most-once: a store
// failure is logged and dropped, never surfaced to the caller, never
// retried. The task write has already committed by the time this runs, so
// nothing here may block or fail the task response.
//
// There is no ordering guarantee across rapid reassignments of one task;
// each mutation evaluates independently against the assignee it read
// before its own write.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
	"github.com/AleutianAI/AleutianTasks/services/taskd/observability"
)

// Notifier decides whether a task mutation warrants an assignment
// notification and, if so, persists and publishes it.
type Notifier interface {
	// NotifyAssignment runs the decision rule: notify iff newAssignee is
	// non-empty and differs from prevAssignee. Empty string means "no
	// assignee". Never returns an error; failures are swallowed.
	NotifyAssignment(ctx context.Context, actorName, prevAssignee, newAssignee string, task *datatypes.Task)
}

// Writer is the slice of the notification store the workflow needs.
type Writer interface {
	Create(ctx context.Context, n *datatypes.Notification) error
}

// Publisher pushes a created notification to live subscribers (the
// WebSocket hub). Implementations must not block.
type Publisher interface {
	Publish(userID string, n *datatypes.Notification)
}

// Service is the production Notifier.
type Service struct {
	store     Writer
	logger    *logging.Logger
	publisher Publisher // may be nil
}

// New builds a Notifier over the given store. publisher may be nil when
// no live push channel is configured.
func New(store Writer, logger *logging.Logger, publisher Publisher) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, logger: logger, publisher: publisher}
}

// NotifyAssignment implements Notifier.
func (s *Service) NotifyAssignment(ctx context.Context, actorName, prevAssignee, newAssignee string, task *datatypes.Task) {
	if newAssignee == "" || newAssignee == prevAssignee {
		observability.NotificationsSuppressed.Inc()
		return
	}

	if actorName == "" {
		actorName = "Someone"
	}
	n := &datatypes.Notification{
		ID:        uuid.NewString(),
		UserID:    newAssignee,
		Type:      datatypes.NotificationTypeTaskAssigned,
		Message:   fmt.Sprintf("%s assigned you a task: %s", actorName, task.Title),
		Data:      datatypes.NotificationData{TaskID: task.ID},
		CreatedAt: time.Now(),
	}

	if err := s.store.Create(ctx, n); err != nil {
		// Swallowed on purpose: the task mutation already committed and
		// must not be failed or rolled back for a lost notification.
		s.logger.Warn("notification creation failed",
			"task_id", task.ID,
			"assignee", newAssignee,
			"error", err.Error(),
		)
		observability.NotificationsDropped.Inc()
		return
	}
	observability.NotificationsCreated.Inc()

	if s.publisher != nil {
		s.publisher.Publish(newAssignee, n)
	}
}

var _ Notifier = (*Service)(nil)
