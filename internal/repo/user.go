package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/storage"
)

type UserRepo struct {
	users *collection[model.User]
}

func NewUserRepo(store storage.Store) *UserRepo {
	return &UserRepo{users: newCollection[model.User](store, KeyUsers)}
}

// Create assigns a fresh ID unless u already carries one. Usernames are
// unique ignoring case; IDs are unique.
func (r *UserRepo) Create(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	err := r.users.mutate(ctx, func(users []model.User) ([]model.User, error) {
		for _, existing := range users {
			if existing.ID == u.ID || strings.EqualFold(existing.Username, u.Username) {
				return nil, ErrorConflict
			}
		}
		return append(users, u), nil
	})
	return u, err
}

func (r *UserRepo) Get(ctx context.Context, id string) (model.User, error) {
	return r.find(ctx, func(u model.User) bool { return u.ID == id })
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.find(ctx, func(u model.User) bool { return strings.EqualFold(u.Username, username) })
}

func (r *UserRepo) List(ctx context.Context, filter model.UserFilter) ([]model.User, error) {
	users, err := r.users.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Role == nil {
		return users, nil
	}

	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if u.Role == *filter.Role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return r.users.mutate(ctx, func(users []model.User) ([]model.User, error) {
		for i, u := range users {
			if u.ID == id {
				return append(users[:i], users[i+1:]...), nil
			}
		}
		return nil, ErrorNotFound
	})
}

func (r *UserRepo) find(ctx context.Context, match func(model.User) bool) (model.User, error) {
	users, err := r.users.snapshot(ctx)
	if err != nil {
		return model.User{}, err
	}
	for _, u := range users {
		if match(u) {
			return u, nil
		}
	}
	return model.User{}, ErrorNotFound
}
