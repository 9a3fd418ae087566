// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package taskd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
)

// FileConfig is the on-disk configuration, overridable per field by
// environment variables (TASKD_*). The JWT secret deliberately has no
// yaml field; it comes from TASKD_JWT_SECRET only so it never lands in
// a config file.
type FileConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	DataDir      string        `yaml:"data_dir"`
	LogLevel     string        `yaml:"log_level"`
	LogDir       string        `yaml:"log_dir"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	OTLPEndpoint string        `yaml:"otlp_endpoint"`
	AuthRPS      float64       `yaml:"auth_rps"`
	AuthBurst    int           `yaml:"auth_burst"`
}

// DefaultFileConfig returns the configuration used when no file exists.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		ListenAddr: ":8080",
		DataDir:    "./data/taskd",
		LogLevel:   "info",
		TokenTTL:   7 * 24 * time.Hour,
		AuthRPS:    5,
		AuthBurst:  10,
	}
}

// LoadConfig reads the yaml file at path, creating it with defaults on
// first run, then applies environment overrides. An empty path skips the
// file and uses defaults plus environment.
func LoadConfig(path string) (FileConfig, error) {
	cfg := DefaultFileConfig()
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := writeDefaultConfig(path, cfg); err != nil {
				return cfg, err
			}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse the config file: %w", err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func writeDefaultConfig(path string, cfg FileConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("TASKD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TASKD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TASKD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKD_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("TASKD_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TokenTTL = d
		}
	}
	if v := os.Getenv("TASKD_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("TASKD_AUTH_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.AuthRPS = f
		}
	}
	if v := os.Getenv("TASKD_AUTH_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AuthBurst = n
		}
	}
}

// WatchConfig watches the config file and applies log level changes
// without a restart. Other fields require a restart and are ignored on
// reload. Blocks until the context is cancelled; run in a goroutine.
func WatchConfig(ctx context.Context, path string, logger *logging.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create the config watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save,
	// which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch the config directory: %w", err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := LoadConfig(path)
			if err != nil {
				logger.Warn("config reload failed", "error", err.Error())
				continue
			}
			logger.SetLevel(logging.ParseLevel(cfg.LogLevel))
			logger.Info("log level reloaded", "log_level", cfg.LogLevel)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err.Error())
		}
	}
}
