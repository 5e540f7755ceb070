package query

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Overdue   int `json:"overdue"`
}

type Result struct {
	Items []model.Task `json:"items"`
	Stats Stats        `json:"stats"`
}

// Engine filters, searches, sorts and counts task snapshots. It holds no task
// state and never mutates its input, so one Engine may serve any number of
// goroutines.
type Engine struct {
	locale language.Tag
	now    func() time.Time
}

// NewEngine returns an engine collating text for locale. A nil now uses time.Now.
func NewEngine(locale language.Tag, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{locale: locale, now: now}
}

func (e *Engine) Locale() language.Tag {
	return e.locale
}

// Today is the day used when a query leaves AsOf unset.
func (e *Engine) Today() model.Date {
	return model.Today(e.now())
}

// Run applies status filter, search and sort in that order. Stats are
// counted over the whole of tasks, not over the filtered items.
func (e *Engine) Run(tasks []model.Task, q Query) Result {
	asOf := q.AsOf
	if asOf.IsZero() {
		asOf = e.Today()
	}

	items := make([]model.Task, 0, len(tasks))
	needle := strings.ToLower(q.Search)
	for _, t := range tasks {
		if !q.Status.Match(t, asOf) {
			continue
		}
		if needle != "" && !matchesSearch(t, needle) {
			continue
		}
		t.Priority = t.Priority.Normalize()
		items = append(items, t)
	}

	if cmp := e.comparator(q.Sort); cmp != nil {
		slices.SortStableFunc(items, cmp)
	}

	return Result{
		Items: items,
		Stats: ComputeStats(tasks, asOf),
	}
}

func matchesSearch(t model.Task, needle string) bool {
	return strings.Contains(strings.ToLower(t.Text), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}

func (e *Engine) comparator(key SortKey) func(a, b model.Task) int {
	switch key {
	case SortDueAsc:
		return compareDue
	case SortDueDesc:
		return func(a, b model.Task) int { return compareDue(b, a) }
	case SortPriorityDesc:
		return func(a, b model.Task) int { return b.Priority.Rank() - a.Priority.Rank() }
	case SortPriorityAsc:
		return func(a, b model.Task) int { return a.Priority.Rank() - b.Priority.Rank() }
	case SortAlphaAsc:
		// Collators keep scratch buffers, so each run gets its own.
		c := collate.New(e.locale)
		return func(a, b model.Task) int { return c.CompareString(a.Text, b.Text) }
	default:
		return nil
	}
}

// compareDue orders by due day with a missing date treated as the latest day.
func compareDue(a, b model.Task) int {
	switch {
	case a.DueDate.IsZero() && b.DueDate.IsZero():
		return 0
	case a.DueDate.IsZero():
		return 1
	case b.DueDate.IsZero():
		return -1
	}
	return a.DueDate.Compare(b.DueDate)
}

func IsOverdue(t model.Task, asOf model.Date) bool {
	return t.IsOverdue(asOf)
}

func ComputeStats(tasks []model.Task, asOf model.Date) Stats {
	var s Stats
	for _, t := range tasks {
		s.Total++
		if t.Completed {
			s.Completed++
		}
		if t.IsOverdue(asOf) {
			s.Overdue++
		}
	}
	s.Pending = s.Total - s.Completed
	return s
}

// StatsByOwner groups ComputeStats by task owner.
func StatsByOwner(tasks []model.Task, asOf model.Date) map[string]Stats {
	byOwner := make(map[string][]model.Task)
	for _, t := range tasks {
		byOwner[t.OwnerID] = append(byOwner[t.OwnerID], t)
	}
	out := make(map[string]Stats, len(byOwner))
	for owner, owned := range byOwner {
		out[owner] = ComputeStats(owned, asOf)
	}
	return out
}
