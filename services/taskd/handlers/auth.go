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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/pkg/validation"
	"github.com/AleutianAI/AleutianTasks/services/taskd/auth"
	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
	storage "github.com/AleutianAI/AleutianTasks/services/taskd/storage/badger"
)

// Register creates a new user account. Accepts name or username for the
// display name. New accounts always get the user role; roles are only
// changed later by an admin.
func Register(users UserStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "all fields are required (name/email/password)"})
			return
		}
		name := req.DisplayName()
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "all fields are required (name/email/password)"})
			return
		}
		if err := validation.ValidateEmail(req.Email); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email format"})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			serverError(c, logger, "register", err)
			return
		}

		now := time.Now()
		user := &datatypes.User{
			ID:           uuid.NewString(),
			Name:         name,
			Email:        validation.NormalizeEmail(req.Email),
			PasswordHash: hash,
			Role:         datatypes.RoleUser,
			State:        datatypes.StateActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.Create(c.Request.Context(), user); err != nil {
			if errors.Is(err, storage.ErrEmailTaken) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
				return
			}
			serverError(c, logger, "register", err)
			return
		}

		logger.Info("user registered", "user_id", user.ID)
		c.JSON(http.StatusCreated, gin.H{"user": user.View()})
	}
}

// Login verifies credentials and issues a bearer token. Unknown email and
// wrong password are indistinguishable to the caller.
func Login(users UserStore, keeper *auth.TokenKeeper, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
			return
		}

		user, err := users.GetByEmail(c.Request.Context(), req.Email)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credentials"})
				return
			}
			serverError(c, logger, "login", err)
			return
		}
		if !auth.CheckPassword(user.PasswordHash, req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credentials"})
			return
		}

		token, err := keeper.Issue(user.ID)
		if err != nil {
			serverError(c, logger, "login", err)
			return
		}

		logger.Info("user logged in", "user_id", user.ID)
		c.JSON(http.StatusOK, datatypes.AuthResponse{Token: token, User: user.View()})
	}
}
