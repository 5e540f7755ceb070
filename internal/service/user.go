package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/repo"
)

// DefaultUsers are created on first start so a fresh board has one account per role.
var DefaultUsers = []model.User{
	{ID: "admin", Username: "admin", Email: "admin@company.com", Role: model.RoleAdmin},
	{ID: "manager", Username: "manager", Email: "manager@company.com", Role: model.RoleManager},
	{ID: "employee", Username: "employee", Email: "employee@company.com", Role: model.RoleEmployee},
}

type UserService struct {
	users repo.UserRepository
	tasks repo.TaskRepository
	now   func() time.Time
}

func NewUserService(users repo.UserRepository, tasks repo.TaskRepository) *UserService {
	return &UserService{users: users, tasks: tasks, now: time.Now}
}

// Create registers u. When u.CreatedBy is set the creator must exist and be
// allowed to manage accounts; managers may only add employees.
func (s *UserService) Create(ctx context.Context, u model.User) (model.User, error) {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	if u.Role == "" {
		u.Role = model.RoleEmployee
	}
	if err := validateUser(u); err != nil {
		return u, err
	}

	if u.CreatedBy != "" {
		creator, err := s.users.Get(ctx, u.CreatedBy)
		if errors.Is(err, repo.ErrorNotFound) {
			return u, fmt.Errorf("%w: unknown creator", ErrForbidden)
		}
		if err != nil {
			return u, err
		}
		switch creator.Role {
		case model.RoleAdmin:
		case model.RoleManager:
			if u.Role != model.RoleEmployee {
				return u, fmt.Errorf("%w: managers may only add employees", ErrForbidden)
			}
		default:
			return u, fmt.Errorf("%w: %s may not add users", ErrForbidden, creator.Role)
		}
	}

	u.CreatedAt = s.now().UTC()
	return s.users.Create(ctx, u)
}

func (s *UserService) Get(ctx context.Context, id string) (model.User, error) {
	return s.users.Get(ctx, id)
}

func (s *UserService) List(ctx context.Context, filter model.UserFilter) ([]model.User, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, *filter.Role)
	}
	return s.users.List(ctx, filter)
}

// Delete removes the user and every task they own. It returns the number of removed tasks.
func (s *UserService) Delete(ctx context.Context, id string) (int, error) {
	if err := s.users.Delete(ctx, id); err != nil {
		return 0, err
	}
	return s.tasks.DeleteByOwner(ctx, id)
}

// EnsureDefaults creates any missing DefaultUsers and reports how many were added.
func (s *UserService) EnsureDefaults(ctx context.Context) (int, error) {
	added := 0
	for _, u := range DefaultUsers {
		_, err := s.users.GetByUsername(ctx, u.Username)
		if err == nil {
			continue
		}
		if !errors.Is(err, repo.ErrorNotFound) {
			return added, err
		}
		u.CreatedAt = s.now().UTC()
		if _, err := s.users.Create(ctx, u); err != nil {
			return added, fmt.Errorf("seed user %s: %w", u.Username, err)
		}
		added++
	}
	return added, nil
}

func validateUser(u model.User) error {
	if u.Username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	if !u.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, u.Role)
	}
	if u.Email != "" {
		if _, err := mail.ParseAddress(u.Email); err != nil {
			return fmt.Errorf("%w: invalid email %q", ErrValidation, u.Email)
		}
	}
	return nil
}
