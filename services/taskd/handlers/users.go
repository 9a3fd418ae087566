// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/pkg/validation"
	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
	"github.com/AleutianAI/AleutianTasks/services/taskd/middleware"
	storage "github.com/AleutianAI/AleutianTasks/services/taskd/storage/badger"
)

// Me returns the authenticated user's own record.
func Me(users UserStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.GetIdentity(c)
		user, err := users.GetByID(c.Request.Context(), identity.UserID)
		if err != nil {
			notFoundOrServerError(c, logger, "get current user", "user", err)
			return
		}
		c.JSON(http.StatusOK, user.View())
	}
}

// SearchUsers finds users by name or email substring, capped at 50
// results. An empty q returns an empty list rather than everyone; the
// assignee picker always sends a term.
func SearchUsers(users UserStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		matched, err := users.Search(c.Request.Context(), c.Query("q"))
		if err != nil {
			serverError(c, logger, "search users", err)
			return
		}
		views := make([]datatypes.UserView, len(matched))
		for i, u := range matched {
			views[i] = u.View()
		}
		c.JSON(http.StatusOK, views)
	}
}

// ListUsers returns every user, newest first. Admin only; the route
// layer enforces that.
func ListUsers(users UserStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := users.List(c.Request.Context())
		if err != nil {
			serverError(c, logger, "list users", err)
			return
		}
		views := make([]datatypes.UserView, len(all))
		for i, u := range all {
			views[i] = u.View()
		}
		c.JSON(http.StatusOK, views)
	}
}

// GetUser returns one user by id.
func GetUser(users UserStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			notFoundOrServerError(c, logger, "get user", "user", err)
			return
		}
		c.JSON(http.StatusOK, user.View())
	}
}

// UpdateUser applies a partial update to a user record. Any caller may
// update their own name and email; role and state changes require admin.
// Admins may update anyone.
func UpdateUser(users UserStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		identity := middleware.GetIdentity(c)
		targetID := c.Param("id")
		if targetID != identity.UserID && !identity.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		if (req.Role != nil || req.State != nil) && !identity.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		ctx := c.Request.Context()
		user, err := users.GetByID(ctx, targetID)
		if err != nil {
			notFoundOrServerError(c, logger, "update user", "user", err)
			return
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
				return
			}
			user.Name = name
		}
		if req.Email != nil {
			email := validation.NormalizeEmail(*req.Email)
			if err := validation.ValidateEmail(email); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email format"})
				return
			}
			user.Email = email
		}
		if req.Role != nil {
			if err := validation.ValidateRole(*req.Role); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			user.Role = *req.Role
		}
		if req.State != nil {
			if err := validation.ValidateState(*req.State); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			user.State = *req.State
		}
		user.UpdatedAt = time.Now()

		if err := users.Update(ctx, user); err != nil {
			if errors.Is(err, storage.ErrEmailTaken) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
				return
			}
			serverError(c, logger, "update user", err)
			return
		}
		c.JSON(http.StatusOK, user.View())
	}
}

// DeleteUser removes a user. Admin only. Tasks referencing the user keep
// their dangling id and expand to null.
func DeleteUser(users UserStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := users.Delete(c.Request.Context(), c.Param("id")); err != nil {
			notFoundOrServerError(c, logger, "delete user", "user", err)
			return
		}
		logger.Info("user deleted", "user_id", c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
