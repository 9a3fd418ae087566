// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package query derives the task list view: filter, search, sort, and
// paginate. Apply is a pure function; the same inputs always produce the
// same page, including tie-break order (all sorts are stable).
package query

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
)

// Sort keys accepted by Params.Sort.
const (
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortTitleAZ  = "az"
	SortTitleZA  = "za"
	SortDueSoon  = "dueSoon"
	SortPrioHigh = "prioHigh"
)

// DefaultPageSize is used when Params.PageSize is not positive. Views
// choose their own sizes (6 dashboard, 8 tasks, 10 users); the API
// default matches the full tasks view.
const DefaultPageSize = 8

// FilterAll disables a status or priority filter. An empty string means
// the same thing.
const FilterAll = "All"

// Params configures one derivation. Zero value: no filters, newest
// first, page 1 of DefaultPageSize.
type Params struct {
	Status   string
	Priority string
	Search   string
	Sort     string
	Page     int
	PageSize int
}

// Page is one derived page of the task view.
type Page struct {
	Tasks      []*datatypes.Task `json:"tasks"`
	Total      int               `json:"total"`
	TotalPages int               `json:"totalPages"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
}

// titleCollator compares titles with locale-aware collation, matching
// what a browser client renders. language.Und keeps it deterministic.
var titleCollator = collate.New(language.Und)

// Apply filters, sorts, and paginates tasks. The input slice is not
// modified.
func Apply(tasks []*datatypes.Task, p Params) Page {
	filtered := make([]*datatypes.Task, 0, len(tasks))
	search := strings.ToLower(strings.TrimSpace(p.Search))
	for _, t := range tasks {
		if !statusMatches(t, p.Status) || !priorityMatches(t, p.Priority) {
			continue
		}
		if search != "" && !textMatches(t, search) {
			continue
		}
		filtered = append(filtered, t)
	}

	sortTasks(filtered, p.Sort)

	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	totalPages := int(math.Ceil(float64(len(filtered)) / float64(pageSize)))
	if totalPages < 1 {
		totalPages = 1
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	return Page{
		Tasks:      filtered[start:end],
		Total:      len(filtered),
		TotalPages: totalPages,
		Page:       page,
		PageSize:   pageSize,
	}
}

func statusMatches(t *datatypes.Task, status string) bool {
	return status == "" || status == FilterAll || t.Status == status
}

func priorityMatches(t *datatypes.Task, priority string) bool {
	return priority == "" || priority == FilterAll || t.Priority == priority
}

func textMatches(t *datatypes.Task, search string) bool {
	return strings.Contains(strings.ToLower(t.Title), search) ||
		strings.Contains(strings.ToLower(t.Description), search)
}

func sortTasks(tasks []*datatypes.Task, key string) {
	switch key {
	case SortOldest:
		sort.SliceStable(tasks, func(i, j int) bool {
			return createdMillis(tasks[i]) < createdMillis(tasks[j])
		})
	case SortTitleAZ:
		sort.SliceStable(tasks, func(i, j int) bool {
			return titleCollator.CompareString(tasks[i].Title, tasks[j].Title) < 0
		})
	case SortTitleZA:
		sort.SliceStable(tasks, func(i, j int) bool {
			return titleCollator.CompareString(tasks[j].Title, tasks[i].Title) < 0
		})
	case SortDueSoon:
		sort.SliceStable(tasks, func(i, j int) bool {
			return dueMillis(tasks[i]) < dueMillis(tasks[j])
		})
	case SortPrioHigh:
		sort.SliceStable(tasks, func(i, j int) bool {
			return priorityRank(tasks[i].Priority) > priorityRank(tasks[j].Priority)
		})
	default: // SortNewest
		sort.SliceStable(tasks, func(i, j int) bool {
			return createdMillis(tasks[i]) > createdMillis(tasks[j])
		})
	}
}

// createdMillis treats a missing creation timestamp as epoch 0.
func createdMillis(t *datatypes.Task) int64 {
	if t.CreatedAt.IsZero() {
		return 0
	}
	return t.CreatedAt.UnixMilli()
}

// dueMillis sorts tasks without a due date last.
func dueMillis(t *datatypes.Task) int64 {
	if t.DueDate == nil || t.DueDate.IsZero() {
		return math.MaxInt64
	}
	return t.DueDate.UnixMilli()
}

// priorityRank: anything that is not High or Medium ranks 1, so Low and
// unrecognized values tie.
func priorityRank(priority string) int {
	switch priority {
	case datatypes.PriorityHigh:
		return 3
	case datatypes.PriorityMedium:
		return 2
	default:
		return 1
	}
}
