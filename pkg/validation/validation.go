// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for user-provided values
// that end up in store keys or persisted records. Keeping the enum
// checks here, next to their normalizers, prevents drift between the
// handlers that accept these values and the stores that index them.
package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. Initialized in init() with
// the enum rules for persisted record fields.
var validate *validator.Validate

// Enum rule names usable in `validate` struct tags.
const (
	RuleRole     = "userrole"
	RuleState    = "userstate"
	RuleStatus   = "taskstatus"
	RulePriority = "taskpriority"
)

// Enum values accepted for persisted records. Handlers reject anything
// else with a 400.
var (
	roles      = []string{"user", "manager", "admin"}
	states     = []string{"active", "suspended"}
	statuses   = []string{"Pending", "In Progress", "Completed"}
	priorities = []string{"Low", "Medium", "High"}
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation(RuleRole, enumRule(roles))
	_ = validate.RegisterValidation(RuleState, enumRule(states))
	_ = validate.RegisterValidation(RuleStatus, enumRule(statuses))
	_ = validate.RegisterValidation(RulePriority, enumRule(priorities))
}

func enumRule(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, v := range allowed {
			if value == v {
				return true
			}
		}
		return false
	}
}

// Struct validates a struct against its `validate` tags, including the
// enum rules registered here.
func Struct(s any) error {
	return validate.Struct(s)
}

// NormalizeEmail lowercases and trims an email address. All email
// comparisons and index keys go through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail applies the registration email check: non-empty and
// containing an @. Deliberately relaxed; real deliverability is the mail
// system's problem, not ours.
func ValidateEmail(email string) error {
	e := NormalizeEmail(email)
	if e == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !strings.Contains(e, "@") {
		return fmt.Errorf("invalid email format: %q", email)
	}
	return nil
}

// ValidateRole checks membership in {user, manager, admin}.
func ValidateRole(role string) error {
	return validateEnum("role", role, RuleRole, roles)
}

// ValidateState checks membership in {active, suspended}.
func ValidateState(state string) error {
	return validateEnum("state", state, RuleState, states)
}

// ValidateStatus checks membership in {Pending, In Progress, Completed}.
func ValidateStatus(status string) error {
	return validateEnum("status", status, RuleStatus, statuses)
}

// ValidatePriority checks membership in {Low, Medium, High}.
func ValidatePriority(priority string) error {
	return validateEnum("priority", priority, RulePriority, priorities)
}

func validateEnum(field, value, rule string, allowed []string) error {
	if err := validate.Var(value, rule); err != nil {
		return fmt.Errorf("invalid %s: %q (must be one of %v)", field, value, allowed)
	}
	return nil
}
