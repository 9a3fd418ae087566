// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability holds the Prometheus metrics for taskd.
package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by route, method, and status.
	// Uses the route template (c.FullPath), not the raw URL, to keep
	// cardinality bounded.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskd_http_requests_total",
		Help: "HTTP requests handled, by route, method, and status",
	}, []string{"route", "method", "status"})

	// RequestDuration observes request latency per route.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskd_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"route"})

	// NotificationsCreated counts assignment notifications persisted.
	NotificationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskd_notifications_created_total",
		Help: "Assignment notifications successfully persisted",
	})

	// NotificationsSuppressed counts mutations where the decision rule
	// said not to notify (unassign, unchanged assignee).
	NotificationsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskd_notifications_suppressed_total",
		Help: "Task mutations that did not warrant a notification",
	})

	// NotificationsDropped counts notifications lost to store failures.
	// These are the swallowed best-effort errors.
	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskd_notifications_dropped_total",
		Help: "Assignment notifications dropped due to store errors",
	})
)

// RequestMetrics is a gin middleware recording RequestsTotal and
// RequestDuration for every handled request.
func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestsTotal.WithLabelValues(route, c.Request.Method,
			strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
