// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianTasks/pkg/logging"
	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
	"github.com/AleutianAI/AleutianTasks/services/taskd/middleware"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	// wsSendBuffer bounds per-subscriber queueing; a slow client loses
	// messages rather than backpressuring the assignment workflow.
	wsSendBuffer = 16
)

// Hub fans created notifications out to connected WebSocket clients. It
// implements notify.Publisher. Delivery is best effort: a user with no
// open socket, or one whose buffer is full, misses the push and catches
// up from the list endpoint.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan *datatypes.Notification]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan *datatypes.Notification]struct{})}
}

// Publish sends to every open socket of userID without blocking.
func (h *Hub) Publish(userID string, n *datatypes.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- n:
		default:
		}
	}
}

func (h *Hub) subscribe(userID string) chan *datatypes.Notification {
	ch := make(chan *datatypes.Notification, wsSendBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan *datatypes.Notification]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	return ch
}

func (h *Hub) unsubscribe(userID string, ch chan *datatypes.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.subs[userID]; set != nil {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, userID)
		}
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is bearer-token authenticated, not cookie authenticated,
	// so cross-origin upgrades carry no ambient credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NotificationStream upgrades the request to a WebSocket and streams the
// caller's notifications as they are created, as JSON text frames.
func NotificationStream(hub *Hub, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.GetIdentity(c)
		conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			logger.Warn("websocket upgrade failed", "error", err.Error())
			return
		}

		ch := hub.subscribe(identity.UserID)
		defer func() {
			hub.unsubscribe(identity.UserID, ch)
			conn.Close()
		}()

		// Reader goroutine: the client sends nothing meaningful, but the
		// read loop is what notices a closed connection.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case n := <-ch:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(n); err != nil {
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}
