// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockVerifier struct {
	userID string
	err    error
}

func (m *mockVerifier) Verify(_ string) (string, error) {
	return m.userID, m.err
}

type mockResolver struct {
	user *datatypes.User
	err  error
}

func (m *mockResolver) GetByID(_ context.Context, _ string) (*datatypes.User, error) {
	return m.user, m.err
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"valid", "Bearer abc123", "abc123"},
		{"case insensitive", "bearer ABC123", "ABC123"},
		{"missing", "", ""},
		{"no prefix", "abc123", ""},
		{"basic auth", "Basic abc123", ""},
		{"only bearer", "Bearer", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractBearerToken(c))
		})
	}
}

func runAuth(t *testing.T, verifier TokenVerifier, resolver UserResolver, header string) (*httptest.ResponseRecorder, *Identity) {
	t.Helper()
	var identity *Identity
	router := gin.New()
	router.GET("/protected", Auth(verifier, resolver), func(c *gin.Context) {
		identity = GetIdentity(c)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	router.ServeHTTP(w, req)
	return w, identity
}

func TestAuth_ValidToken(t *testing.T) {
	user := &datatypes.User{ID: "u1", Name: "Alice", Role: datatypes.RoleManager}
	w, identity := runAuth(t, &mockVerifier{userID: "u1"}, &mockResolver{user: user}, "Bearer good")

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, identity)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, "Alice", identity.Name)
	assert.False(t, identity.IsAdmin())
}

func TestAuth_MissingToken(t *testing.T) {
	w, _ := runAuth(t, &mockVerifier{userID: "u1"}, &mockResolver{}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	w, _ := runAuth(t, &mockVerifier{err: errors.New("bad")}, &mockResolver{}, "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_DeletedUser(t *testing.T) {
	w, _ := runAuth(t, &mockVerifier{userID: "u1"},
		&mockResolver{err: errors.New("not found")}, "Bearer good")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	router := gin.New()
	router.GET("/admin", func(c *gin.Context) {
		SetIdentity(c, &Identity{UserID: "u1", Role: datatypes.RoleUser})
	}, RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/admin", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	router = gin.New()
	router.GET("/admin", func(c *gin.Context) {
		SetIdentity(c, &Identity{UserID: "u1", Role: datatypes.RoleAdmin})
	}, RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/admin", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	router := gin.New()
	router.POST("/login", RateLimit(1, 2), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes,
		"burst of 2 then limited")

	// A different client IP has its own bucket.
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
