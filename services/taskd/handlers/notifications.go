// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/services/taskd/middleware"
)

// ListNotifications returns the caller's latest 50 notifications, newest
// first, read and unread alike.
func ListNotifications(notifs NotificationStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.GetIdentity(c)
		list, err := notifs.ListByUser(c.Request.Context(), identity.UserID)
		if err != nil {
			serverError(c, logger, "list notifications", err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// MarkNotificationRead marks one of the caller's notifications read.
// Marking an already-read notification succeeds and changes nothing.
// A notification id belonging to another user is a 404, not a 403: the
// lookup is scoped to the caller, so foreign ids simply don't exist.
func MarkNotificationRead(notifs NotificationStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.GetIdentity(c)
		n, err := notifs.MarkRead(c.Request.Context(), identity.UserID, c.Param("id"))
		if err != nil {
			notFoundOrServerError(c, logger, "mark notification read", "notification", err)
			return
		}
		c.JSON(http.StatusOK, n)
	}
}

// MarkAllNotificationsRead marks every one of the caller's notifications
// read.
func MarkAllNotificationsRead(notifs NotificationStore, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.GetIdentity(c)
		if err := notifs.MarkAllRead(c.Request.Context(), identity.UserID); err != nil {
			serverError(c, logger, "mark all notifications read", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
