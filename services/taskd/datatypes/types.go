// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the persisted records and wire types for the
// taskd service. Stored records and API responses are kept separate:
// User carries the password hash and is never serialized to a client,
// while UserView/TaskView are the response shapes.
package datatypes

import (
	"encoding/json"
	"strings"
	"time"
)

// Role values for User.Role.
const (
	RoleUser    = "user"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// State values for User.State.
const (
	StateActive    = "active"
	StateSuspended = "suspended"
)

// Status values for Task.Status.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
)

// Priority values for Task.Priority.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// NotificationTypeTaskAssigned is currently the only notification type.
const NotificationTypeTaskAssigned = "task_assigned"

// User is the stored user record. Email is stored lowercase and is unique
// across the store. PasswordHash must never reach a client; use View().
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	Role         string    `json:"role"`
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserView is the client-safe projection of a User.
type UserView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}

// View strips the password hash for API responses.
func (u *User) View() UserView {
	return UserView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		State:     u.State,
		CreatedAt: u.CreatedAt,
	}
}

// UserRef is the expanded form of a user reference on a task, matching
// what a client rendering assignee name and email needs, plus the id.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Ref projects a User to its task-embedded reference form.
func (u *User) Ref() *UserRef {
	return &UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
}

// Task is the stored task record. CreatedBy is required and immutable
// after creation; Assignee is optional and mutable.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	CreatedBy   string     `json:"createdBy"`
	Assignee    *string    `json:"assignee"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// AssigneeID returns the assignee id or "" when unassigned. Handlers use
// this for the changed-assignee comparison.
func (t *Task) AssigneeID() string {
	if t.Assignee == nil {
		return ""
	}
	return *t.Assignee
}

// TaskView is a Task with creator and assignee expanded to UserRefs.
// A dangling reference (user deleted after assignment) renders as nil.
type TaskView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	CreatedBy   *UserRef   `json:"createdBy"`
	Assignee    *UserRef   `json:"assignee"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NotificationData is the structured payload of a notification. Only a
// task reference today. The referenced task may no longer exist: task
// deletion does not cascade.
type NotificationData struct {
	TaskID string `json:"taskId"`
}

// Notification is a per-user notification record. Created only by the
// assignment workflow; mutated only by marking read.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Type      string           `json:"type"`
	Message   string           `json:"message"`
	Data      NotificationData `json:"data"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// RegisterRequest accepts name or username for the display name; clients
// in the wild send either.
type RegisterRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// DisplayName resolves the name/username alias, trimmed.
func (r *RegisterRequest) DisplayName() string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	return strings.TrimSpace(r.Username)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by login: a bearer token plus the safe user.
type AuthResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Assignee    *string    `json:"assignee"`
	DueDate     *time.Time `json:"dueDate"`
}

// UpdateTaskRequest carries a partial update; nil fields are untouched.
// Assignee uses a double pointer semantic via Present flags to tell
// "absent" apart from "set to null" (unassign).
type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	Assignee    *string    `json:"assignee"`
	DueDate     *time.Time `json:"dueDate"`

	// AssigneeSet distinguishes {"assignee": null} from a request that
	// omits the field entirely. Populated by custom UnmarshalJSON.
	AssigneeSet bool `json:"-"`
	// DueDateSet likewise for {"dueDate": null}.
	DueDateSet bool `json:"-"`
}

// UnmarshalJSON records which nullable fields were present so handlers
// can honor "unassign" and "clear due date" requests.
func (r *UpdateTaskRequest) UnmarshalJSON(data []byte) error {
	type alias UpdateTaskRequest
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	*r = UpdateTaskRequest(a)
	_, r.AssigneeSet = keys["assignee"]
	_, r.DueDateSet = keys["dueDate"]
	return nil
}

// AssignRequest explicitly assigns or unassigns a task. A null assigneeId
// unassigns.
type AssignRequest struct {
	AssigneeID *string `json:"assigneeId"`
}

// UpdateUserRequest carries a partial user update. Role and State are
// honored only for admin callers.
type UpdateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
	State *string `json:"state"`
}
