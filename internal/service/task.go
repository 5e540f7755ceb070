package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/query"
	"github.com/BuzzLyutic/taskboard/internal/repo"
)

var (
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("forbidden")
	ErrOverdue    = errors.New("task is overdue")
)

// TaskPatch carries the editable fields; nil means unchanged. A zero DueDate
// removes the due date.
type TaskPatch struct {
	Text     *string         `json:"text,omitempty"`
	Priority *model.Priority `json:"priority,omitempty"`
	DueDate  *model.Date     `json:"due_date,omitempty"`
}

type Completion struct {
	Completed   bool              `json:"completed"`
	Description string            `json:"description,omitempty"`
	Attachment  *model.Attachment `json:"attachment,omitempty"`
}

type Annotation struct {
	Description *string           `json:"description,omitempty"`
	Attachment  *model.Attachment `json:"attachment,omitempty"`
}

type EmployeeSummary struct {
	User  model.User  `json:"user"`
	Stats query.Stats `json:"stats"`
}

type TaskService struct {
	repo   repo.TaskRepository
	users  repo.UserRepository
	engine *query.Engine
	now    func() time.Time

	idempMu sync.Mutex // serialises creates that carry an idempotency key
}

func NewTaskService(repo repo.TaskRepository, users repo.UserRepository, engine *query.Engine) *TaskService {
	return &TaskService{
		repo:   repo,
		users:  users,
		engine: engine,
		now:    time.Now,
	}
}

func (s *TaskService) today() model.Date {
	return model.Today(s.now())
}

// Create adds a task the owner wrote for themselves.
func (s *TaskService) Create(ctx context.Context, t model.Task, idempKey string) (model.Task, error) {
	t.AssignedBy = ""
	return s.create(ctx, t, idempKey)
}

// Assign adds a task on behalf of t.OwnerID. Only admins and managers may assign.
func (s *TaskService) Assign(ctx context.Context, t model.Task, assignerID string) (model.Task, error) {
	assigner, err := s.users.Get(ctx, assignerID)
	if errors.Is(err, repo.ErrorNotFound) {
		return t, fmt.Errorf("%w: unknown assigner", ErrForbidden)
	}
	if err != nil {
		return t, err
	}
	if !assigner.Role.CanAssign() {
		return t, fmt.Errorf("%w: %s may not assign tasks", ErrForbidden, assigner.Role)
	}
	t.AssignedBy = assigner.ID
	return s.create(ctx, t, "")
}

func (s *TaskService) create(ctx context.Context, t model.Task, idempKey string) (model.Task, error) {
	t.Text = strings.TrimSpace(t.Text)
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if err := s.validate(t); err != nil { // Валидация модели на корректность введенных данных
		return t, err
	}

	if idempKey != "" { // Если ключ уже сохранен, возвращаем ранее созданную задачу
		s.idempMu.Lock()
		defer s.idempMu.Unlock()
		existingID, err := s.repo.GetIdempotencyKey(ctx, idempKey)
		if err == nil {
			return s.repo.Get(ctx, existingID)
		}
		if !errors.Is(err, repo.ErrorNotFound) {
			return t, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	if _, err := s.users.Get(ctx, t.OwnerID); err != nil {
		if errors.Is(err, repo.ErrorNotFound) {
			return t, fmt.Errorf("%w: unknown owner %q", ErrValidation, t.OwnerID)
		}
		return t, err
	}

	t.Completed = false
	t.CompletedAt = nil
	t.Description = ""
	t.Attachment = nil
	t.CreatedAt = s.now().UTC()

	created, err := s.repo.Create(ctx, t)
	if err != nil {
		return created, err
	}

	if idempKey != "" {
		if err := s.repo.SaveIdempotencyKey(ctx, idempKey, created.ID); err != nil {
			return created, err
		}
	}
	return created, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (model.Task, error) {
	return s.repo.Get(ctx, id)
}

func (s *TaskService) Update(ctx context.Context, id string, patch TaskPatch) (model.Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return t, err
	}

	if patch.Text != nil {
		t.Text = strings.TrimSpace(*patch.Text)
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		t.DueDate = *patch.DueDate
	}
	if err := s.validate(t); err != nil {
		return t, err
	}
	return s.repo.Update(ctx, t)
}

// SetCompletion marks a task done or reopens it. Completing records the time
// and the optional description and attachment; reopening clears all three.
// Open tasks past their due day cannot be completed.
func (s *TaskService) SetCompletion(ctx context.Context, id string, c Completion) (model.Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return t, err
	}

	if c.Attachment != nil && strings.TrimSpace(c.Attachment.Name) == "" {
		return t, fmt.Errorf("%w: attachment name is required", ErrValidation)
	}

	switch {
	case c.Completed && !t.Completed:
		if t.IsOverdue(s.today()) {
			return t, ErrOverdue
		}
		now := s.now().UTC()
		t.Completed = true
		t.CompletedAt = &now
		t.Description = strings.TrimSpace(c.Description)
		t.Attachment = c.Attachment
	case !c.Completed && t.Completed:
		t.Completed = false
		t.CompletedAt = nil
		t.Description = ""
		t.Attachment = nil
	default:
		return t, nil
	}
	return s.repo.Update(ctx, t)
}

// Annotate sets the description or attachment of a completed task.
func (s *TaskService) Annotate(ctx context.Context, id string, a Annotation) (model.Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return t, err
	}
	if !t.Completed {
		return t, fmt.Errorf("%w: only completed tasks take notes", ErrValidation)
	}
	if a.Attachment != nil && strings.TrimSpace(a.Attachment.Name) == "" {
		return t, fmt.Errorf("%w: attachment name is required", ErrValidation)
	}

	if a.Description != nil {
		t.Description = strings.TrimSpace(*a.Description)
	}
	if a.Attachment != nil {
		t.Attachment = a.Attachment
	}
	return s.repo.Update(ctx, t)
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *TaskService) ClearCompleted(ctx context.Context, ownerID string) (int, error) {
	return s.repo.DeleteCompleted(ctx, ownerID)
}

// Query loads the owner's tasks (or every task when ownerID is empty) and runs q over them.
func (s *TaskService) Query(ctx context.Context, ownerID string, q query.Query) (query.Result, error) {
	var filter model.TaskFilter
	if ownerID != "" {
		filter.OwnerID = &ownerID
	}
	tasks, err := s.repo.List(ctx, filter)
	if err != nil {
		return query.Result{}, err
	}
	if q.AsOf.IsZero() {
		q.AsOf = s.today()
	}
	return s.engine.Run(tasks, q), nil
}

func (s *TaskService) Stats(ctx context.Context, ownerID string, asOf model.Date) (query.Stats, error) {
	res, err := s.Query(ctx, ownerID, query.Query{Status: query.StatusAll, AsOf: asOf})
	if err != nil {
		return query.Stats{}, err
	}
	return res.Stats, nil
}

// EmployeeSummaries returns per-employee counts in user order.
func (s *TaskService) EmployeeSummaries(ctx context.Context, asOf model.Date) ([]EmployeeSummary, error) {
	if asOf.IsZero() {
		asOf = s.today()
	}
	role := model.RoleEmployee
	employees, err := s.users.List(ctx, model.UserFilter{Role: &role})
	if err != nil {
		return nil, err
	}
	tasks, err := s.repo.List(ctx, model.TaskFilter{})
	if err != nil {
		return nil, err
	}

	byOwner := query.StatsByOwner(tasks, asOf)
	out := make([]EmployeeSummary, 0, len(employees))
	for _, u := range employees {
		out = append(out, EmployeeSummary{User: u, Stats: byOwner[u.ID]})
	}
	return out, nil
}

func (s *TaskService) validate(t model.Task) error {
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrValidation)
	}
	if t.Priority != "" && !t.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, t.Priority)
	}
	if !t.Completed && !t.DueDate.IsZero() && t.DueDate.Before(s.today()) {
		return fmt.Errorf("%w: due date is in the past", ErrValidation)
	}
	return nil
}
