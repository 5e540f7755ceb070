package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/storage"
)

type idempotencyKey struct {
	Key        string `json:"key"`
	ResourceID string `json:"resource_id"`
}

type TaskRepo struct { // Репозиторий поверх коллекции "tasks" в key-value хранилище
	tasks *collection[model.Task]
	keys  *collection[idempotencyKey]
}

func NewTaskRepo(store storage.Store) *TaskRepo {
	return &TaskRepo{
		tasks: newCollection[model.Task](store, KeyTasks),
		keys:  newCollection[idempotencyKey](store, KeyIdempotencyKeys),
	}
}

func (r *TaskRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	t.ID = uuid.NewString()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	err := r.tasks.mutate(ctx, func(tasks []model.Task) ([]model.Task, error) {
		return append(tasks, t), nil
	})
	return t, err
}

func (r *TaskRepo) Get(ctx context.Context, id string) (model.Task, error) {
	tasks, err := r.tasks.snapshot(ctx)
	if err != nil {
		return model.Task{}, err
	}
	if i := indexTask(tasks, id); i >= 0 {
		return readTask(tasks[i]), nil
	}
	return model.Task{}, ErrorNotFound
}

// readTask fills read-time defaults: records stored without a priority read as medium.
func readTask(t model.Task) model.Task {
	t.Priority = t.Priority.Normalize()
	return t
}

// List returns tasks in stored (insertion) order.
func (r *TaskRepo) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	tasks, err := r.tasks.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	scoped := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if filter.OwnerID == nil || t.OwnerID == *filter.OwnerID {
			scoped = append(scoped, readTask(t))
		}
	}
	return scoped, nil
}

// Update replaces the stored task with the same ID. ID, owner and creation
// time are kept from the stored copy.
func (r *TaskRepo) Update(ctx context.Context, t model.Task) (model.Task, error) {
	err := r.tasks.mutate(ctx, func(tasks []model.Task) ([]model.Task, error) {
		i := indexTask(tasks, t.ID)
		if i < 0 {
			return nil, ErrorNotFound
		}
		t.OwnerID = tasks[i].OwnerID
		t.CreatedAt = tasks[i].CreatedAt
		tasks[i] = t
		return tasks, nil
	})
	return t, err
}

func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	return r.tasks.mutate(ctx, func(tasks []model.Task) ([]model.Task, error) {
		i := indexTask(tasks, id)
		if i < 0 {
			return nil, ErrorNotFound
		}
		return append(tasks[:i], tasks[i+1:]...), nil
	})
}

func (r *TaskRepo) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	return r.deleteWhere(ctx, func(t model.Task) bool {
		return t.OwnerID == ownerID
	})
}

func (r *TaskRepo) DeleteCompleted(ctx context.Context, ownerID string) (int, error) {
	return r.deleteWhere(ctx, func(t model.Task) bool {
		return t.OwnerID == ownerID && t.Completed
	})
}

func (r *TaskRepo) deleteWhere(ctx context.Context, match func(model.Task) bool) (int, error) {
	var removed int
	err := r.tasks.mutate(ctx, func(tasks []model.Task) ([]model.Task, error) {
		kept := tasks[:0]
		for _, t := range tasks {
			if match(t) {
				removed++
				continue
			}
			kept = append(kept, t)
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// SaveIdempotencyKey keeps the first resource stored for a key.
func (r *TaskRepo) SaveIdempotencyKey(ctx context.Context, key string, resourceID string) error {
	return r.keys.mutate(ctx, func(keys []idempotencyKey) ([]idempotencyKey, error) {
		for _, k := range keys {
			if k.Key == key {
				return keys, nil
			}
		}
		return append(keys, idempotencyKey{Key: key, ResourceID: resourceID}), nil
	})
}

func (r *TaskRepo) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	keys, err := r.keys.snapshot(ctx)
	if err != nil {
		return "", err
	}
	for _, k := range keys {
		if k.Key == key {
			return k.ResourceID, nil
		}
	}
	return "", ErrorNotFound
}

func indexTask(tasks []model.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
