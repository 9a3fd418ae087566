// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package taskd

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
)

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(Config{InMemory: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret")
}

func TestNewServesHealth(t *testing.T) {
	svc, err := New(Config{
		InMemory:  true,
		JWTSecret: "test-secret",
		GinMode:   gin.TestMode,
		Logger:    logging.New(logging.Config{Quiet: true}),
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// Metrics are exposed without auth.
	w = httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoadConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL)

	// First load materialized the file; a second load reads it back.
	_, err = os.Stat(path)
	require.NoError(t, err)
	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("TASKD_LISTEN_ADDR", ":9999")
	t.Setenv("TASKD_LOG_LEVEL", "debug")
	t.Setenv("TASKD_TOKEN_TTL", "1h")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":7070\"\nlog_level: warn\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "warn", cfg.LogLevel)
	// Unset fields keep their defaults.
	assert.Equal(t, "./data/taskd", cfg.DataDir)
}
