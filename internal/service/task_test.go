package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/query"
	"github.com/BuzzLyutic/taskboard/internal/repo"
	"github.com/BuzzLyutic/taskboard/internal/storage"
)

// MockTaskRepository - мок репозитория задач
type MockTaskRepository struct {
	mock.Mock
}

func (m *MockTaskRepository) Create(ctx context.Context, t model.Task) (model.Task, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskRepository) Get(ctx context.Context, id string) (model.Task, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskRepository) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.Task), args.Error(1)
}

func (m *MockTaskRepository) Update(ctx context.Context, t model.Task) (model.Task, error) {
	args := m.Called(ctx, t)
	return args.Get(0).(model.Task), args.Error(1)
}

func (m *MockTaskRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTaskRepository) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *MockTaskRepository) DeleteCompleted(ctx context.Context, ownerID string) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *MockTaskRepository) SaveIdempotencyKey(ctx context.Context, key string, resourceID string) error {
	args := m.Called(ctx, key, resourceID)
	return args.Error(0)
}

func (m *MockTaskRepository) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// MockUserRepository - мок репозитория пользователей
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserRepository) Get(ctx context.Context, id string) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (model.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context, filter model.UserFilter) ([]model.User, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var fixedNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.Local)

func clock() time.Time { return fixedNow }

func newMockedService(tasks *MockTaskRepository, users *MockUserRepository) *TaskService {
	svc := NewTaskService(tasks, users, query.NewEngine(language.English, clock))
	svc.now = clock
	return svc
}

func TestTaskService_Create(t *testing.T) {
	owner := model.User{ID: "u1", Username: "dana", Role: model.RoleEmployee}
	errStoreDown := errors.New("store unavailable")

	tests := []struct {
		name      string
		task      model.Task
		idempKey  string
		setupMock func(*MockTaskRepository, *MockUserRepository)
		wantErr   error
	}{
		{
			name:     "successful creation without idempotency key",
			task:     model.Task{OwnerID: "u1", Text: "  Write report  ", Priority: model.PriorityHigh},
			idempKey: "",
			setupMock: func(m *MockTaskRepository, u *MockUserRepository) {
				u.On("Get", mock.Anything, "u1").Return(owner, nil)
				m.On("Create", mock.Anything, mock.MatchedBy(func(t model.Task) bool {
					return t.Text == "Write report" && t.Priority == model.PriorityHigh && !t.Completed
				})).Return(model.Task{ID: "t1", OwnerID: "u1", Text: "Write report", Priority: model.PriorityHigh}, nil)
			},
		},
		{
			name: "empty priority defaults to medium",
			task: model.Task{OwnerID: "u1", Text: "Plan"},
			setupMock: func(m *MockTaskRepository, u *MockUserRepository) {
				u.On("Get", mock.Anything, "u1").Return(owner, nil)
				m.On("Create", mock.Anything, mock.MatchedBy(func(t model.Task) bool {
					return t.Priority == model.PriorityMedium
				})).Return(model.Task{ID: "t2", OwnerID: "u1", Text: "Plan", Priority: model.PriorityMedium}, nil)
			},
		},
		{
			name:      "validation error - empty text",
			task:      model.Task{OwnerID: "u1", Text: "   "},
			setupMock: func(m *MockTaskRepository, u *MockUserRepository) {},
			wantErr:   ErrValidation,
		},
		{
			name:      "validation error - invalid priority",
			task:      model.Task{OwnerID: "u1", Text: "Test", Priority: "urgent"},
			setupMock: func(m *MockTaskRepository, u *MockUserRepository) {},
			wantErr:   ErrValidation,
		},
		{
			name:      "validation error - due date in the past",
			task:      model.Task{OwnerID: "u1", Text: "Test", DueDate: model.NewDate(2024, time.February, 29)},
			setupMock: func(m *MockTaskRepository, u *MockUserRepository) {},
			wantErr:   ErrValidation,
		},
		{
			name: "validation error - unknown owner",
			task: model.Task{OwnerID: "ghost", Text: "Test"},
			setupMock: func(m *MockTaskRepository, u *MockUserRepository) {
				u.On("Get", mock.Anything, "ghost").Return(model.User{}, repo.ErrorNotFound)
			},
			wantErr: ErrValidation,
		},
		{
			name:     "idempotency - key exists",
			task:     model.Task{OwnerID: "u1", Text: "Test"},
			idempKey: "key-123",
			setupMock: func(m *MockTaskRepository, u *MockUserRepository) {
				m.On("GetIdempotencyKey", mock.Anything, "key-123").Return("t42", nil)
				m.On("Get", mock.Anything, "t42").Return(model.Task{ID: "t42", OwnerID: "u1", Text: "Test"}, nil)
			},
		},
		{
			name:     "idempotency - new key",
			task:     model.Task{OwnerID: "u1", Text: "Test"},
			idempKey: "key-456",
			setupMock: func(m *MockTaskRepository, u *MockUserRepository) {
				m.On("GetIdempotencyKey", mock.Anything, "key-456").Return("", repo.ErrorNotFound)
				u.On("Get", mock.Anything, "u1").Return(owner, nil)
				m.On("Create", mock.Anything, mock.Anything).Return(model.Task{ID: "t1", OwnerID: "u1", Text: "Test"}, nil)
				m.On("SaveIdempotencyKey", mock.Anything, "key-456", "t1").Return(nil)
			},
		},
		{
			name:     "idempotency - lookup failure stops creation",
			task:     model.Task{OwnerID: "u1", Text: "Test"},
			idempKey: "key-789",
			setupMock: func(m *MockTaskRepository, u *MockUserRepository) {
				m.On("GetIdempotencyKey", mock.Anything, "key-789").Return("", errStoreDown)
			},
			wantErr: errStoreDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			mockUsers := new(MockUserRepository)
			tt.setupMock(mockRepo, mockUsers)

			service := newMockedService(mockRepo, mockUsers)
			result, err := service.Create(context.Background(), tt.task, tt.idempKey)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, result.ID)
			}

			mockRepo.AssertExpectations(t)
			mockUsers.AssertExpectations(t)
		})
	}
}

func TestTaskService_Assign(t *testing.T) {
	tests := []struct {
		name     string
		assigner model.User
		lookup   error
		wantErr  error
	}{
		{name: "manager assigns", assigner: model.User{ID: "m1", Role: model.RoleManager}},
		{name: "admin assigns", assigner: model.User{ID: "a1", Role: model.RoleAdmin}},
		{name: "employee may not assign", assigner: model.User{ID: "e1", Role: model.RoleEmployee}, wantErr: ErrForbidden},
		{name: "unknown assigner", assigner: model.User{ID: "x"}, lookup: repo.ErrorNotFound, wantErr: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockTaskRepository)
			mockUsers := new(MockUserRepository)
			mockUsers.On("Get", mock.Anything, tt.assigner.ID).Return(tt.assigner, tt.lookup)
			if tt.wantErr == nil {
				mockUsers.On("Get", mock.Anything, "u1").Return(model.User{ID: "u1", Role: model.RoleEmployee}, nil)
				mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(t model.Task) bool {
					return t.AssignedBy == tt.assigner.ID && t.OwnerID == "u1"
				})).Return(model.Task{ID: "t1", OwnerID: "u1", Text: "Audit", AssignedBy: tt.assigner.ID}, nil)
			}

			service := newMockedService(mockRepo, mockUsers)
			got, err := service.Assign(context.Background(), model.Task{OwnerID: "u1", Text: "Audit"}, tt.assigner.ID)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.assigner.ID, got.AssignedBy)
			}
			mockRepo.AssertExpectations(t)
			mockUsers.AssertExpectations(t)
		})
	}
}

func TestTaskService_Update(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	mockRepo.On("Get", mock.Anything, "t1").Return(model.Task{
		ID: "t1", OwnerID: "u1", Text: "Old", Priority: model.PriorityLow,
	}, nil)
	mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(t model.Task) bool {
		return t.ID == "t1" && t.Text == "Updated" && t.Priority == model.PriorityLow
	})).Return(model.Task{ID: "t1", OwnerID: "u1", Text: "Updated", Priority: model.PriorityLow}, nil)

	service := newMockedService(mockRepo, new(MockUserRepository))
	text := "Updated"
	result, err := service.Update(context.Background(), "t1", TaskPatch{Text: &text})

	require.NoError(t, err)
	assert.Equal(t, "Updated", result.Text)
	mockRepo.AssertExpectations(t)
}

func TestTaskService_UpdateRejectsPastDueDate(t *testing.T) {
	mockRepo := new(MockTaskRepository)
	mockRepo.On("Get", mock.Anything, "t1").Return(model.Task{ID: "t1", OwnerID: "u1", Text: "Old"}, nil)

	service := newMockedService(mockRepo, new(MockUserRepository))
	past := model.NewDate(2023, time.December, 31)
	_, err := service.Update(context.Background(), "t1", TaskPatch{DueDate: &past})

	assert.ErrorIs(t, err, ErrValidation)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestTaskService_Validate(t *testing.T) {
	service := &TaskService{now: clock}

	tests := []struct {
		name    string
		task    model.Task
		wantErr bool
	}{
		{
			name:    "valid task",
			task:    model.Task{Text: "Valid", Priority: model.PriorityHigh},
			wantErr: false,
		},
		{
			name:    "due today",
			task:    model.Task{Text: "Valid", DueDate: model.NewDate(2024, time.March, 1)},
			wantErr: false,
		},
		{
			name:    "completed task keeps old due date",
			task:    model.Task{Text: "Done", Completed: true, DueDate: model.NewDate(2024, time.January, 1)},
			wantErr: false,
		},
		{
			name:    "empty text",
			task:    model.Task{Text: ""},
			wantErr: true,
		},
		{
			name:    "whitespace text",
			task:    model.Task{Text: "   "},
			wantErr: true,
		},
		{
			name:    "unknown priority",
			task:    model.Task{Text: "Task", Priority: "critical"},
			wantErr: true,
		},
		{
			name:    "due yesterday",
			task:    model.Task{Text: "Task", DueDate: model.NewDate(2024, time.February, 29)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.validate(tt.task)
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// newStoreServices wires the services over an in-memory store with a fixed clock.
func newStoreServices(t *testing.T) (*TaskService, *UserService) {
	t.Helper()
	store := storage.NewMemoryStore()
	tasks := repo.NewTaskRepo(store)
	users := repo.NewUserRepo(store)

	taskSvc := NewTaskService(tasks, users, query.NewEngine(language.English, clock))
	taskSvc.now = clock
	userSvc := NewUserService(users, tasks)
	userSvc.now = clock

	_, err := userSvc.EnsureDefaults(context.Background())
	require.NoError(t, err)
	return taskSvc, userSvc
}

func TestTaskService_CompletionLifecycle(t *testing.T) {
	svc, _ := newStoreServices(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, model.Task{OwnerID: "employee", Text: "Ship", DueDate: model.NewDate(2024, time.March, 5)}, "")
	require.NoError(t, err)

	done, err := svc.SetCompletion(ctx, task.ID, Completion{
		Completed:   true,
		Description: " shipped ",
		Attachment:  &model.Attachment{Name: "log.txt", Reference: "uploads/log.txt"},
	})
	require.NoError(t, err)
	assert.True(t, done.Completed)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, fixedNow.Equal(*done.CompletedAt))
	assert.Equal(t, "shipped", done.Description)
	require.NotNil(t, done.Attachment)

	again, err := svc.SetCompletion(ctx, task.ID, Completion{Completed: true, Description: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "shipped", again.Description, "completing twice is a no-op")

	reopened, err := svc.SetCompletion(ctx, task.ID, Completion{Completed: false})
	require.NoError(t, err)
	assert.False(t, reopened.Completed)
	assert.Nil(t, reopened.CompletedAt)
	assert.Empty(t, reopened.Description)
	assert.Nil(t, reopened.Attachment)
}

func TestTaskService_SetCompletionAttachment(t *testing.T) {
	tests := []struct {
		name       string
		attachment *model.Attachment
		wantErr    error
	}{
		{name: "no attachment", attachment: nil},
		{name: "named attachment", attachment: &model.Attachment{Name: "log.txt", Reference: "uploads/log.txt"}},
		{name: "empty name", attachment: &model.Attachment{}, wantErr: ErrValidation},
		{name: "blank name", attachment: &model.Attachment{Name: "  ", Reference: "uploads/x"}, wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newStoreServices(t)
			ctx := context.Background()

			task, err := svc.Create(ctx, model.Task{OwnerID: "employee", Text: "Attach"}, "")
			require.NoError(t, err)

			_, err = svc.SetCompletion(ctx, task.ID, Completion{Completed: true, Attachment: tt.attachment})
			got, getErr := svc.Get(ctx, task.ID)
			require.NoError(t, getErr)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, got.Completed, "rejected completion leaves the task open")
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Completed)
			assert.Equal(t, tt.attachment, got.Attachment)
		})
	}
}

func TestTaskService_QueryDefaultsAbsentPriority(t *testing.T) {
	store := storage.NewMemoryStore()
	tasks := repo.NewTaskRepo(store)
	users := repo.NewUserRepo(store)
	svc := NewTaskService(tasks, users, query.NewEngine(language.English, clock))
	svc.now = clock
	ctx := context.Background()

	// Записи без приоритета могли быть сохранены раньше, минуя сервис
	legacy, err := tasks.Create(ctx, model.Task{OwnerID: "employee", Text: "legacy"})
	require.NoError(t, err)

	res, err := svc.Query(ctx, "employee", query.Query{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, model.PriorityMedium, res.Items[0].Priority)

	got, err := svc.Get(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityMedium, got.Priority)
}

func TestTaskService_CompleteOverdueRejected(t *testing.T) {
	svc, _ := newStoreServices(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, model.Task{OwnerID: "employee", Text: "Late", DueDate: model.NewDate(2024, time.March, 1)}, "")
	require.NoError(t, err)

	svc.now = func() time.Time { return fixedNow.AddDate(0, 0, 2) }
	_, err = svc.SetCompletion(ctx, task.ID, Completion{Completed: true})
	assert.ErrorIs(t, err, ErrOverdue)

	got, err := svc.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

func TestTaskService_Annotate(t *testing.T) {
	svc, _ := newStoreServices(t)
	ctx := context.Background()

	task, err := svc.Create(ctx, model.Task{OwnerID: "employee", Text: "Notes"}, "")
	require.NoError(t, err)

	note := "went fine"
	_, err = svc.Annotate(ctx, task.ID, Annotation{Description: &note})
	assert.ErrorIs(t, err, ErrValidation, "open tasks take no notes")

	_, err = svc.SetCompletion(ctx, task.ID, Completion{Completed: true})
	require.NoError(t, err)

	got, err := svc.Annotate(ctx, task.ID, Annotation{Description: &note})
	require.NoError(t, err)
	assert.Equal(t, "went fine", got.Description)

	_, err = svc.Annotate(ctx, task.ID, Annotation{Attachment: &model.Attachment{Name: " "}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Annotate(ctx, "missing", Annotation{Description: &note})
	assert.ErrorIs(t, err, repo.ErrorNotFound)
}

func TestTaskService_QueryAndStats(t *testing.T) {
	svc, users := newStoreServices(t)
	ctx := context.Background()

	other, err := users.Create(ctx, model.User{Username: "eli", Role: model.RoleEmployee})
	require.NoError(t, err)

	for _, tk := range []model.Task{
		{OwnerID: "employee", Text: "Buy milk", DueDate: model.NewDate(2024, time.March, 2)},
		{OwnerID: "employee", Text: "Call Bob", Priority: model.PriorityHigh},
		{OwnerID: other.ID, Text: "Buy bread"},
	} {
		_, err := svc.Create(ctx, tk, "")
		require.NoError(t, err)
	}

	res, err := svc.Query(ctx, "employee", query.Query{Status: query.StatusAll, Search: "buy", Sort: query.SortDueAsc})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Buy milk", res.Items[0].Text)
	assert.Equal(t, query.Stats{Total: 2, Pending: 2}, res.Stats)

	all, err := svc.Query(ctx, "", query.Query{Search: "BUY"})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
	assert.Equal(t, 3, all.Stats.Total)

	// Two days later the milk task is overdue.
	stats, err := svc.Stats(ctx, "employee", model.NewDate(2024, time.March, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Overdue)

	summaries, err := svc.EmployeeSummaries(ctx, model.NewDate(2024, time.March, 3))
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "employee", summaries[0].User.ID)
	assert.Equal(t, query.Stats{Total: 2, Pending: 2, Overdue: 1}, summaries[0].Stats)
	assert.Equal(t, query.Stats{Total: 1, Pending: 1}, summaries[1].Stats)
}

func TestTaskService_ClearCompleted(t *testing.T) {
	svc, _ := newStoreServices(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, model.Task{OwnerID: "employee", Text: "a"}, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, model.Task{OwnerID: "employee", Text: "b"}, "")
	require.NoError(t, err)
	_, err = svc.SetCompletion(ctx, a.ID, Completion{Completed: true})
	require.NoError(t, err)

	n, err := svc.ClearCompleted(ctx, "employee")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := svc.Query(ctx, "employee", query.Query{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "b", res.Items[0].Text)
}

func TestTaskService_IdempotentCreate(t *testing.T) {
	svc, _ := newStoreServices(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, model.Task{OwnerID: "employee", Text: "once"}, "key-1")
	require.NoError(t, err)
	second, err := svc.Create(ctx, model.Task{OwnerID: "employee", Text: "once"}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	res, err := svc.Query(ctx, "employee", query.Query{})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
}

func TestTaskService_ConcurrentIdempotencyKeys(t *testing.T) {
	svc, _ := newStoreServices(t)
	ctx := context.Background()

	const goroutines = 10
	const idempKey = "concurrent-test-key"

	var wg sync.WaitGroup
	results := make([]model.Task, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			task := model.Task{OwnerID: "employee", Text: fmt.Sprintf("Concurrent Task %d", idx)}
			results[idx], errs[idx] = svc.Create(ctx, task, idempKey)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "request %d should not error", i)
	}
	for i, result := range results {
		assert.Equal(t, results[0].ID, result.ID, "request %d should return same ID", i)
	}

	res, err := svc.Query(ctx, "employee", query.Query{})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1, "only one task should be created")
}

func TestTaskService_ConcurrentCompletion(t *testing.T) {
	svc, _ := newStoreServices(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 20; i++ {
		task, err := svc.Create(ctx, model.Task{OwnerID: "employee", Text: fmt.Sprintf("t%d", i)}, "")
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.SetCompletion(ctx, id, Completion{Completed: true})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	stats, err := svc.Stats(ctx, "employee", model.Date{})
	require.NoError(t, err)
	assert.Equal(t, query.Stats{Total: 20, Completed: 20}, stats, "no completion lost to a concurrent rewrite")
}
