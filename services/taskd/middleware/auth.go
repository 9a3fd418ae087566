// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the taskd service.
//
// The auth middleware extracts a bearer token from the Authorization
// header, verifies it, resolves the user record, and stores the resulting
// Identity in the Gin context for downstream handlers:
//
//	Request
//	   │
//	   ▼
//	Auth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   ├─► keeper.Verify(token) -> user id
//	   ├─► users.GetByID(id)
//	   └─► Store Identity in context
//	           │
//	           ▼
//	       Handler (retrieves via GetIdentity)
package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
)

// identityKey is the context key for the authenticated Identity.
const identityKey = "taskd_identity"

// Identity is the authenticated caller attached to each request.
type Identity struct {
	UserID string
	Name   string
	Role   string
}

// IsAdmin reports whether the caller holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == datatypes.RoleAdmin
}

// TokenVerifier verifies a bearer token and returns the user id subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserResolver resolves a verified user id to its record.
type UserResolver interface {
	GetByID(ctx context.Context, id string) (*datatypes.User, error)
}

// SetIdentity stores the authenticated identity in the Gin context.
func SetIdentity(c *gin.Context, id *Identity) {
	c.Set(identityKey, id)
}

// GetIdentity retrieves the authenticated identity, or nil when the
// request was not authenticated.
func GetIdentity(c *gin.Context) *Identity {
	if v, exists := c.Get(identityKey); exists {
		if id, ok := v.(*Identity); ok {
			return id
		}
	}
	return nil
}

// Auth authenticates requests with a bearer token. Missing, malformed,
// or unresolvable tokens abort with 401.
func Auth(keeper TokenVerifier, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no token provided"})
			return
		}

		userID, err := keeper.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			// Token subject no longer resolves to a user (deleted account).
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		SetIdentity(c, &Identity{UserID: user.ID, Name: user.Name, Role: user.Role})
		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the authenticated caller is an
// admin. Must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetIdentity(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

// extractBearerToken parses "Authorization: Bearer <token>". The prefix
// is case-insensitive per RFC 7235. Returns "" when missing or malformed.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RateLimit applies a per-client-IP token bucket. Used on the
// register/login endpoints to slow credential stuffing. Limiters are kept
// per IP for the process lifetime; fine for the deployment sizes this
// serves.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if l, ok := limiters[ip]; ok {
			return l
		}
		l := rate.NewLimiter(rate.Limit(rps), burst)
		limiters[ip] = l
		return l
	}
	return func(c *gin.Context) {
		if !limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
