package query

import (
	"strings"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

// StatusFilter narrows a task collection by completion state.
type StatusFilter int

const (
	StatusAll StatusFilter = iota
	StatusActive
	StatusCompleted
	StatusOverdue
)

var statusNames = map[StatusFilter]string{
	StatusAll:       "all",
	StatusActive:    "active",
	StatusCompleted: "completed",
	StatusOverdue:   "overdue",
}

// ParseStatusFilter maps unrecognised names to StatusAll.
func ParseStatusFilter(s string) StatusFilter {
	f, _ := LookupStatusFilter(s)
	return f
}

// LookupStatusFilter is ParseStatusFilter that also reports whether s was recognised.
func LookupStatusFilter(s string) (StatusFilter, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, name := range statusNames {
		if name == s {
			return f, true
		}
	}
	return StatusAll, false
}

func (f StatusFilter) String() string {
	if name, ok := statusNames[f]; ok {
		return name
	}
	return statusNames[StatusAll]
}

func (f StatusFilter) Match(t model.Task, asOf model.Date) bool {
	switch f {
	case StatusActive:
		return !t.Completed
	case StatusCompleted:
		return t.Completed
	case StatusOverdue:
		return t.IsOverdue(asOf)
	default:
		return true
	}
}

// SortKey selects the ordering of query results. SortNone keeps input order.
type SortKey int

const (
	SortNone SortKey = iota
	SortDueAsc
	SortDueDesc
	SortPriorityDesc
	SortPriorityAsc
	SortAlphaAsc
)

var sortNames = map[SortKey]string{
	SortNone:         "none",
	SortDueAsc:       "due-asc",
	SortDueDesc:      "due-desc",
	SortPriorityDesc: "priority-desc",
	SortPriorityAsc:  "priority-asc",
	SortAlphaAsc:     "alpha-asc",
}

var sortAliases = map[string]SortKey{
	"date-asc":  SortDueAsc,
	"date-desc": SortDueDesc,
}

// ParseSortKey maps unrecognised names to SortNone.
func ParseSortKey(s string) SortKey {
	k, _ := LookupSortKey(s)
	return k
}

// LookupSortKey is ParseSortKey that also reports whether s was recognised.
func LookupSortKey(s string) (SortKey, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if k, ok := sortAliases[s]; ok {
		return k, true
	}
	for k, name := range sortNames {
		if name == s {
			return k, true
		}
	}
	return SortNone, false
}

func (k SortKey) String() string {
	if name, ok := sortNames[k]; ok {
		return name
	}
	return sortNames[SortNone]
}

// Query describes one dashboard view over a scoped task collection.
type Query struct {
	Status StatusFilter
	Search string
	Sort   SortKey
	// AsOf is the day used for overdue checks. Zero means today.
	AsOf model.Date
}
