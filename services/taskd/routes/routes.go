// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/services/taskd/auth"
	"github.com/AleutianAI/AleutianTasks/services/taskd/handlers"
	"github.com/AleutianAI/AleutianTasks/services/taskd/middleware"
	"github.com/AleutianAI/AleutianTasks/services/taskd/notify"
	storage "github.com/AleutianAI/AleutianTasks/services/taskd/storage/badger"
)

// SetupRoutes wires the REST API onto the router. authRPS/authBurst
// throttle the credential endpoints per client IP.
func SetupRoutes(router *gin.Engine, stores *storage.Stores, keeper *auth.TokenKeeper,
	notifier notify.Notifier, hub *handlers.Hub, logger *logging.Logger,
	authRPS float64, authBurst int) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit(authRPS, authBurst))
	{
		authGroup.POST("/register", handlers.Register(stores.Users, logger))
		authGroup.POST("/login", handlers.Login(stores.Users, keeper, logger))
	}

	authed := api.Group("")
	authed.Use(middleware.Auth(keeper, stores.Users))
	{
		tasks := authed.Group("/tasks")
		{
			tasks.GET("", handlers.ListTasks(stores.Tasks, stores.Users, logger))
			tasks.POST("", handlers.CreateTask(stores.Tasks, stores.Users, notifier, logger))
			tasks.GET("/search", handlers.SearchTasks(stores.Tasks, stores.Users, logger))
			tasks.GET("/:id", handlers.GetTask(stores.Tasks, stores.Users, logger))
			tasks.PUT("/:id", handlers.UpdateTask(stores.Tasks, stores.Users, notifier, logger))
			tasks.DELETE("/:id", handlers.DeleteTask(stores.Tasks, logger))
			tasks.PUT("/:id/assign", handlers.AssignTask(stores.Tasks, stores.Users, notifier, logger))
		}

		users := authed.Group("/users")
		{
			users.GET("/me", handlers.Me(stores.Users, logger))
			users.GET("/search", handlers.SearchUsers(stores.Users, logger))
			users.GET("", middleware.RequireAdmin(), handlers.ListUsers(stores.Users, logger))
			users.GET("/:id", handlers.GetUser(stores.Users, logger))
			users.PUT("/:id", handlers.UpdateUser(stores.Users, logger))
			users.DELETE("/:id", middleware.RequireAdmin(), handlers.DeleteUser(stores.Users, logger))
		}

		notifications := authed.Group("/notifications")
		{
			notifications.GET("", handlers.ListNotifications(stores.Notifications, logger))
			notifications.GET("/ws", handlers.NotificationStream(hub, logger))
			notifications.PUT("/read-all", handlers.MarkAllNotificationsRead(stores.Notifications, logger))
			notifications.PUT("/:id/read", handlers.MarkNotificationRead(stores.Notifications, logger))
		}
	}
}
