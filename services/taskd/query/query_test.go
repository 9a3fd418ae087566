// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTasks/services/taskd/datatypes"
)

func task(title string, mutate ...func(*datatypes.Task)) *datatypes.Task {
	t := &datatypes.Task{
		Title:    title,
		Status:   datatypes.StatusPending,
		Priority: datatypes.PriorityMedium,
	}
	for _, m := range mutate {
		m(t)
	}
	return t
}

func created(at time.Time) func(*datatypes.Task) {
	return func(t *datatypes.Task) { t.CreatedAt = at }
}

func due(at time.Time) func(*datatypes.Task) {
	return func(t *datatypes.Task) { t.DueDate = &at }
}

func prio(p string) func(*datatypes.Task) {
	return func(t *datatypes.Task) { t.Priority = p }
}

func titles(page Page) []string {
	out := make([]string, len(page.Tasks))
	for i, t := range page.Tasks {
		out[i] = t.Title
	}
	return out
}

func TestSortNewestDefault(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)
	tasks := []*datatypes.Task{
		task("a", created(t1)),
		task("b", created(t2)),
		task("c", created(t3)),
	}

	page := Apply(tasks, Params{})
	assert.Equal(t, []string{"c", "b", "a"}, titles(page))

	page = Apply(tasks, Params{Sort: SortOldest})
	assert.Equal(t, []string{"a", "b", "c"}, titles(page))
}

func TestSortNewestMissingTimestampRanksAsEpoch(t *testing.T) {
	tasks := []*datatypes.Task{
		task("no-timestamp"),
		task("dated", created(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))),
	}
	page := Apply(tasks, Params{Sort: SortNewest})
	assert.Equal(t, []string{"dated", "no-timestamp"}, titles(page))
}

func TestSortTitle(t *testing.T) {
	tasks := []*datatypes.Task{
		task("banana"),
		task(""),
		task("apple"),
	}
	page := Apply(tasks, Params{Sort: SortTitleAZ})
	assert.Equal(t, []string{"", "apple", "banana"}, titles(page))

	page = Apply(tasks, Params{Sort: SortTitleZA})
	assert.Equal(t, []string{"banana", "apple", ""}, titles(page))
}

func TestSortDueSoonMissingLast(t *testing.T) {
	// Spec scenario: [null, 2024-01-01, 2023-01-01] -> [2023, 2024, null].
	tasks := []*datatypes.Task{
		task("none"),
		task("later", due(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))),
		task("sooner", due(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))),
	}
	page := Apply(tasks, Params{Sort: SortDueSoon})
	assert.Equal(t, []string{"sooner", "later", "none"}, titles(page))
}

func TestSortPrioHigh(t *testing.T) {
	tasks := []*datatypes.Task{
		task("low", prio(datatypes.PriorityLow)),
		task("high", prio(datatypes.PriorityHigh)),
		task("medium", prio(datatypes.PriorityMedium)),
	}
	page := Apply(tasks, Params{Sort: SortPrioHigh})
	assert.Equal(t, []string{"high", "medium", "low"}, titles(page))
}

func TestPrioHighUnknownTiesWithLow(t *testing.T) {
	// The rank function falls through to 1 for anything that is not High
	// or Medium, so Low and unknown values tie and keep their input order
	// (stable sort).
	tasks := []*datatypes.Task{
		task("mystery", prio("Critical")),
		task("low", prio(datatypes.PriorityLow)),
		task("medium", prio(datatypes.PriorityMedium)),
	}
	page := Apply(tasks, Params{Sort: SortPrioHigh})
	assert.Equal(t, []string{"medium", "mystery", "low"}, titles(page))
}

func TestStatusAndPriorityFilters(t *testing.T) {
	tasks := []*datatypes.Task{
		task("p1", func(t *datatypes.Task) { t.Status = datatypes.StatusPending }),
		task("c1", func(t *datatypes.Task) { t.Status = datatypes.StatusCompleted }),
		task("p2-high", prio(datatypes.PriorityHigh)),
	}

	page := Apply(tasks, Params{Status: datatypes.StatusCompleted})
	assert.Equal(t, []string{"c1"}, titles(page))

	page = Apply(tasks, Params{Status: FilterAll})
	assert.Equal(t, 3, page.Total)

	page = Apply(tasks, Params{Priority: datatypes.PriorityHigh})
	assert.Equal(t, []string{"p2-high"}, titles(page))

	page = Apply(tasks, Params{Status: datatypes.StatusPending, Priority: datatypes.PriorityHigh})
	assert.Equal(t, []string{"p2-high"}, titles(page))
}

func TestSearchMatchesTitleOrDescription(t *testing.T) {
	tasks := []*datatypes.Task{
		task("Write spec"),
		task("Other", func(t *datatypes.Task) { t.Description = "writes a report" }),
		task("Unrelated"),
	}

	page := Apply(tasks, Params{Search: "WRITE"})
	assert.Equal(t, 2, page.Total, "case-insensitive, title or description")

	page = Apply(tasks, Params{Search: ""})
	assert.Equal(t, 3, page.Total, "empty search is a no-op")

	// Re-filtering an already matching set is a no-op (the client applies
	// its local filter on top of server search results).
	first := Apply(tasks, Params{Search: "write"})
	second := Apply(first.Tasks, Params{Search: "write"})
	assert.Equal(t, titles(first), titles(second))
}

func TestPagination(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tasks []*datatypes.Task
	for i := 0; i < 20; i++ {
		tasks = append(tasks, task(string(rune('a'+i)), created(base.Add(time.Duration(i)*time.Minute))))
	}

	page := Apply(tasks, Params{Sort: SortOldest, Page: 1, PageSize: 6})
	require.Len(t, page.Tasks, 6)
	assert.Equal(t, 20, page.Total)
	assert.Equal(t, 4, page.TotalPages, "ceil(20/6)")

	page = Apply(tasks, Params{Sort: SortOldest, Page: 4, PageSize: 6})
	assert.Len(t, page.Tasks, 2, "last page holds the remainder")
}

func TestPaginationClamping(t *testing.T) {
	tasks := []*datatypes.Task{task("only")}

	page := Apply(tasks, Params{Page: 0, PageSize: 8})
	assert.Equal(t, 1, page.Page, "page 0 clamps to 1")

	page = Apply(tasks, Params{Page: 99, PageSize: 8})
	assert.Equal(t, 1, page.Page, "page beyond range clamps to totalPages")
	assert.Len(t, page.Tasks, 1)

	page = Apply(nil, Params{})
	assert.Equal(t, 1, page.TotalPages, "totalPages is at least 1 even when empty")
	assert.Empty(t, page.Tasks)
}

func TestDefaultPageSize(t *testing.T) {
	var tasks []*datatypes.Task
	for i := 0; i < 10; i++ {
		tasks = append(tasks, task("t"))
	}
	page := Apply(tasks, Params{})
	assert.Len(t, page.Tasks, DefaultPageSize)
	assert.Equal(t, 2, page.TotalPages)
}

func TestApplyIsDeterministic(t *testing.T) {
	sameTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []*datatypes.Task{
		task("x", created(sameTime)),
		task("y", created(sameTime)),
		task("z", created(sameTime)),
	}
	first := Apply(tasks, Params{Sort: SortNewest})
	for i := 0; i < 5; i++ {
		assert.Equal(t, titles(first), titles(Apply(tasks, Params{Sort: SortNewest})),
			"ties keep input order on every run")
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	tasks := []*datatypes.Task{
		task("b", created(time.Unix(2, 0))),
		task("a", created(time.Unix(1, 0))),
	}
	_ = Apply(tasks, Params{Sort: SortOldest})
	assert.Equal(t, "b", tasks[0].Title, "input slice order preserved")
}
