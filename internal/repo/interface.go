package repo

import (
	"context"
	"errors"

	"github.com/BuzzLyutic/taskboard/internal/model"
)

var (
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")
)

// Collection keys in the key-value store.
const (
	KeyTasks           = "tasks"
	KeyUsers           = "users"
	KeyIdempotencyKeys = "idempotency_keys"
	KeyReports         = "reports"
)

// TaskRepository определяет интерфейс для работы с задачами
type TaskRepository interface {
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Get(ctx context.Context, id string) (model.Task, error)
	List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error)
	Update(ctx context.Context, t model.Task) (model.Task, error)
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int, error)
	DeleteCompleted(ctx context.Context, ownerID string) (int, error)
	SaveIdempotencyKey(ctx context.Context, key string, resourceID string) error
	GetIdempotencyKey(ctx context.Context, key string) (string, error)
}

type UserRepository interface {
	Create(ctx context.Context, u model.User) (model.User, error)
	Get(ctx context.Context, id string) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	List(ctx context.Context, filter model.UserFilter) ([]model.User, error)
	Delete(ctx context.Context, id string) error
}

type ReportRepository interface {
	Create(ctx context.Context, job model.ReportJob) (model.ReportJob, error)
	Get(ctx context.Context, id string) (model.ReportJob, error)
	Update(ctx context.Context, job model.ReportJob) (model.ReportJob, error)
	ClaimPending(ctx context.Context) (model.ReportJob, error)
}
