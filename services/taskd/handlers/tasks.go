// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/pkg/validation"
	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
	"github.com/AleutianAI/AleutianTasks/services/taskd/middleware"
	"github.com/AleutianAI/AleutianTasks/services/taskd/notify"
	"github.com/AleutianAI/AleutianTasks/services/taskd/query"
)

// expander resolves user references on tasks, caching per request so a
// page of tasks assigned to the same user costs one lookup.
type expander struct {
	users UserStore
	cache map[string]*datatypes.UserRef
}

func newExpander(users UserStore) *expander {
	return &expander{users: users, cache: make(map[string]*datatypes.UserRef)}
}

// ref resolves a user id to its embedded reference form. A dangling id
// (user deleted) resolves to nil, matching a failed populate.
func (e *expander) ref(ctx context.Context, id string) *datatypes.UserRef {
	if id == "" {
		return nil
	}
	if ref, ok := e.cache[id]; ok {
		return ref
	}
	user, err := e.users.GetByID(ctx, id)
	if err != nil {
		e.cache[id] = nil
		return nil
	}
	e.cache[id] = user.Ref()
	return e.cache[id]
}

func (e *expander) view(ctx context.Context, t *datatypes.Task) datatypes.TaskView {
	return datatypes.TaskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		CreatedBy:   e.ref(ctx, t.CreatedBy),
		Assignee:    e.ref(ctx, t.AssigneeID()),
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (e *expander) views(ctx context.Context, tasks []*datatypes.Task) []datatypes.TaskView {
	out := make([]datatypes.TaskView, len(tasks))
	for i, t := range tasks {
		out[i] = e.view(ctx, t)
	}
	return out
}

// ListTasks returns tasks with creator and assignee expanded.
//
// With no query parameters it returns the full list, newest first, as a
// bare array (what the SPA consumes). Filter, sort, and search
// parameters are evaluated by the query engine. When `page` or
// `page_size` is present the response switches to a page envelope
// {tasks, total, totalPages, page, pageSize}.
func ListTasks(tasks TaskStore, users UserStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		all, err := tasks.List(ctx)
		if err != nil {
			serverError(c, logger, "list tasks", err)
			return
		}

		params := query.Params{
			Status:   c.Query("status"),
			Priority: c.Query("priority"),
			Search:   c.Query("q"),
			Sort:     c.Query("sort"),
		}
		paged := c.Query("page") != "" || c.Query("page_size") != ""
		if paged {
			params.Page, _ = strconv.Atoi(c.Query("page"))
			params.PageSize, _ = strconv.Atoi(c.Query("page_size"))
		} else {
			// Unpaged requests still run through the engine for filter
			// and sort; use one page large enough to hold everything.
			params.Page = 1
			params.PageSize = len(all) + 1
		}
		page := query.Apply(all, params)

		ex := newExpander(users)
		if paged {
			c.JSON(http.StatusOK, gin.H{
				"tasks":      ex.views(ctx, page.Tasks),
				"total":      page.Total,
				"totalPages": page.TotalPages,
				"page":       page.Page,
				"pageSize":   page.PageSize,
			})
			return
		}
		c.JSON(http.StatusOK, ex.views(ctx, page.Tasks))
	}
}

// GetTask returns one task with references expanded.
func GetTask(tasks TaskStore, users UserStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		task, err := tasks.Get(ctx, c.Param("id"))
		if err != nil {
			notFoundOrServerError(c, logger, "get task", "task", err)
			return
		}
		c.JSON(http.StatusOK, newExpander(users).view(ctx, task))
	}
}

// CreateTask creates a task owned by the caller. An assignee set at
// creation triggers the assignment workflow after the write commits.
func CreateTask(tasks TaskStore, users UserStore, notifier notify.Notifier, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
			return
		}
		status := req.Status
		if status == "" {
			status = datatypes.StatusPending
		}
		if err := validation.ValidateStatus(status); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		priority := req.Priority
		if priority == "" {
			priority = datatypes.PriorityMedium
		}
		if err := validation.ValidatePriority(priority); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		identity := middleware.GetIdentity(c)
		now := time.Now()
		task := &datatypes.Task{
			ID:          uuid.NewString(),
			Title:       title,
			Description: req.Description,
			Status:      status,
			Priority:    priority,
			CreatedBy:   identity.UserID,
			Assignee:    req.Assignee,
			DueDate:     req.DueDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		ctx := c.Request.Context()
		if err := tasks.Create(ctx, task); err != nil {
			serverError(c, logger, "create task", err)
			return
		}

		notifier.NotifyAssignment(ctx, identity.Name, "", task.AssigneeID(), task)

		logger.Info("task created", "task_id", task.ID, "creator", identity.UserID)
		c.JSON(http.StatusCreated, newExpander(users).view(ctx, task))
	}
}

// UpdateTask applies a partial update. The assignee it read immediately
// before its own write feeds the notification decision; concurrent
// updates race with last-write-wins semantics, exactly as the store
// behaves.
func UpdateTask(tasks TaskStore, users UserStore, notifier notify.Notifier, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.UpdateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		ctx := c.Request.Context()
		task, err := tasks.Get(ctx, c.Param("id"))
		if err != nil {
			notFoundOrServerError(c, logger, "update task", "task", err)
			return
		}
		prevAssignee := task.AssigneeID()

		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
				return
			}
			task.Title = title
		}
		if req.Description != nil {
			task.Description = *req.Description
		}
		if req.Status != nil {
			if err := validation.ValidateStatus(*req.Status); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			task.Status = *req.Status
		}
		if req.Priority != nil {
			if err := validation.ValidatePriority(*req.Priority); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			task.Priority = *req.Priority
		}
		if req.AssigneeSet {
			task.Assignee = req.Assignee
		}
		if req.DueDateSet {
			task.DueDate = req.DueDate
		}
		task.UpdatedAt = time.Now()

		if err := tasks.Put(ctx, task); err != nil {
			serverError(c, logger, "update task", err)
			return
		}

		identity := middleware.GetIdentity(c)
		notifier.NotifyAssignment(ctx, identity.Name, prevAssignee, task.AssigneeID(), task)

		c.JSON(http.StatusOK, newExpander(users).view(ctx, task))
	}
}

// AssignTask sets or clears the assignee explicitly. A null assigneeId
// unassigns.
func AssignTask(tasks TaskStore, users UserStore, notifier notify.Notifier, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AssignRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		ctx := c.Request.Context()
		task, err := tasks.Get(ctx, c.Param("id"))
		if err != nil {
			notFoundOrServerError(c, logger, "assign task", "task", err)
			return
		}
		prevAssignee := task.AssigneeID()
		task.Assignee = req.AssigneeID
		task.UpdatedAt = time.Now()

		if err := tasks.Put(ctx, task); err != nil {
			serverError(c, logger, "assign task", err)
			return
		}

		identity := middleware.GetIdentity(c)
		notifier.NotifyAssignment(ctx, identity.Name, prevAssignee, task.AssigneeID(), task)

		c.JSON(http.StatusOK, newExpander(users).view(ctx, task))
	}
}

// DeleteTask hard-deletes a task. Notifications that reference it are
// left in place (no cascade), so their taskId may dangle.
func DeleteTask(tasks TaskStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
			notFoundOrServerError(c, logger, "delete task", "task", err)
			return
		}
		logger.Info("task deleted", "task_id", c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
	}
}

// SearchTasks returns tasks matching q in title or description. An empty
// q returns the full set.
func SearchTasks(tasks TaskStore, users UserStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		matched, err := tasks.Search(ctx, c.Query("q"))
		if err != nil {
			serverError(c, logger, "search tasks", err)
			return
		}
		c.JSON(http.StatusOK, newExpander(users).views(ctx, matched))
	}
}
