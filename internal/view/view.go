// Package view derives read-only projections of a task list: the tag index,
// tag and date filters, and the calendar grouping. Every function preserves
// the input order and never modifies its argument.
package view

import (
	"sort"

	"taskbook/internal/models"
)

// TagSelector chooses which tasks ByTag keeps.
type TagSelector struct {
	any bool
	tag string
}

// AllTags selects every task.
var AllTags = TagSelector{any: true}

// Tag selects tasks whose tag equals name. Tag("") selects untagged tasks.
func Tag(name string) TagSelector {
	return TagSelector{tag: name}
}

// IsAll reports whether the selector matches every task.
func (s TagSelector) IsAll() bool {
	return s.any
}

// Name returns the selected tag. It is empty for AllTags and for untagged.
func (s TagSelector) Name() string {
	return s.tag
}

// Matches reports whether t is selected.
func (s TagSelector) Matches(t models.Task) bool {
	return s.any || t.Tag == s.tag
}

// DistinctTags returns the non-empty tags in use, in order of first appearance.
func DistinctTags(tasks []models.Task) []string {
	seen := make(map[string]struct{})
	tags := []string{}
	for _, t := range tasks {
		if t.Tag == "" {
			continue
		}
		if _, ok := seen[t.Tag]; ok {
			continue
		}
		seen[t.Tag] = struct{}{}
		tags = append(tags, t.Tag)
	}
	return tags
}

// ByTag returns the tasks matched by sel.
func ByTag(tasks []models.Task, sel TagSelector) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if sel.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// ByDate returns the tasks due exactly on date (YYYY-MM-DD).
func ByDate(tasks []models.Task, date string) []models.Task {
	out := []models.Task{}
	for _, t := range tasks {
		if t.Date == date {
			out = append(out, t)
		}
	}
	return out
}

// DateGroup is the set of tasks sharing one due date.
// Date is empty for the group of tasks without a due date.
type DateGroup struct {
	Date  string        `json:"date"`
	Tasks []models.Task `json:"tasks"`
}

// GroupByDate groups tasks by due date, earliest first, with undated tasks last.
func GroupByDate(tasks []models.Task) []DateGroup {
	index := make(map[string]int)
	groups := []DateGroup{}
	for _, t := range tasks {
		i, ok := index[t.Date]
		if !ok {
			i = len(groups)
			index[t.Date] = i
			groups = append(groups, DateGroup{Date: t.Date})
		}
		groups[i].Tasks = append(groups[i].Tasks, t)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		di, dj := groups[i].Date, groups[j].Date
		switch {
		case di == "":
			return false
		case dj == "":
			return true
		default:
			return di < dj
		}
	})

	return groups
}
