// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP handlers for the taskd REST API.
//
// Handlers are constructed as closures over their dependencies and map
// store sentinel errors to HTTP statuses: ErrNotFound -> 404,
// ErrEmailTaken -> 400, anything else -> 500 with a generic body.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
	storage "github.com/AleutianAI/AleutianTasks/services/taskd/storage/badger"
)

// UserStore is the user persistence surface the handlers need.
type UserStore interface {
	Create(ctx context.Context, user *datatypes.User) error
	GetByID(ctx context.Context, id string) (*datatypes.User, error)
	GetByEmail(ctx context.Context, email string) (*datatypes.User, error)
	List(ctx context.Context) ([]*datatypes.User, error)
	Search(ctx context.Context, q string) ([]*datatypes.User, error)
	Update(ctx context.Context, user *datatypes.User) error
	Delete(ctx context.Context, id string) error
}

// TaskStore is the task persistence surface the handlers need.
type TaskStore interface {
	Create(ctx context.Context, task *datatypes.Task) error
	Get(ctx context.Context, id string) (*datatypes.Task, error)
	List(ctx context.Context) ([]*datatypes.Task, error)
	Search(ctx context.Context, q string) ([]*datatypes.Task, error)
	Put(ctx context.Context, task *datatypes.Task) error
	Delete(ctx context.Context, id string) error
}

// NotificationStore is the notification persistence surface the handlers
// need.
type NotificationStore interface {
	ListByUser(ctx context.Context, userID string) ([]*datatypes.Notification, error)
	MarkRead(ctx context.Context, userID, id string) (*datatypes.Notification, error)
	MarkAllRead(ctx context.Context, userID string) error
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// serverError logs the cause and returns the generic 500 body. Callers
// never see internal error strings.
func serverError(c *gin.Context, logger *logging.Logger, op string, err error) {
	logger.Error(op+" failed", "error", err.Error())
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
}

// notFoundOrServerError maps ErrNotFound to 404, everything else to 500.
func notFoundOrServerError(c *gin.Context, logger *logging.Logger, op, what string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
		return
	}
	serverError(c, logger, op, err)
}
