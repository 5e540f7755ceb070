package model

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Normalize treats an absent or unknown priority as medium.
func (p Priority) Normalize() Priority {
	if p.Valid() {
		return p
	}
	return PriorityMedium
}

// Rank maps high/medium/low to 3/2/1.
func (p Priority) Rank() int {
	switch p.Normalize() {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

type Attachment struct {
	Name        string `json:"name"`
	Reference   string `json:"reference"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

type Task struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	Text        string      `json:"text"`
	Priority    Priority    `json:"priority"`
	DueDate     Date        `json:"due_date,omitzero"`
	Completed   bool        `json:"completed"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Description string      `json:"description,omitempty"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	AssignedBy  string      `json:"assigned_by,omitempty"`
}

// IsOverdue reports whether the task is open and its due day is before asOf.
func (t Task) IsOverdue(asOf Date) bool {
	return !t.Completed && !t.DueDate.IsZero() && t.DueDate.Before(asOf)
}

type TaskFilter struct {
	OwnerID *string
}
