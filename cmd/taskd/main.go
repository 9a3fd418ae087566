// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/services/taskd"
)

var (
	configPath string
	listenAddr string
	dataDir    string

	rootCmd = &cobra.Command{
		Use:   "taskd",
		Short: "A task management service with assignment notifications",
		Long: `taskd serves the task management REST API: user accounts with
bearer-token auth, task CRUD with an assignment notification workflow,
and per-user notification feeds.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "config.yaml",
		"path to the yaml config file (created with defaults if missing)")
	serveCmd.Flags().StringVar(&listenAddr, "addr", "",
		"listen address, overrides the config file")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "",
		"data directory, overrides the config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := taskd.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "taskd",
	})
	defer logger.Close()

	secret := os.Getenv("TASKD_JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("TASKD_JWT_SECRET is not set")
	}

	svc, err := taskd.New(taskd.Config{
		ListenAddr:   cfg.ListenAddr,
		DataDir:      cfg.DataDir,
		JWTSecret:    secret,
		TokenTTL:     cfg.TokenTTL,
		OTLPEndpoint: cfg.OTLPEndpoint,
		AuthRPS:      cfg.AuthRPS,
		AuthBurst:    cfg.AuthBurst,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		if err := taskd.WatchConfig(watchCtx, configPath, logger); err != nil {
			logger.Warn("config watch unavailable", "error", err.Error())
		}
	}()

	return svc.Run()
}
