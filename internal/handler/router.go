package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/metrics"
	"github.com/BuzzLyutic/taskboard/internal/query"
	"github.com/BuzzLyutic/taskboard/internal/service"
	"github.com/BuzzLyutic/taskboard/pkg/logger"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

type Services struct {
	Tasks   *service.TaskService
	Users   *service.UserService
	Reports *service.ReportService
}

// NewRouter wires every HTTP route. m may be nil, which disables /metrics.
func NewRouter(svc Services, log *zap.Logger, m *metrics.Metrics, defaultSort query.SortKey) http.Handler {
	var observer QueryObserver
	if m != nil {
		observer = m
	}
	tasks := NewTaskHandler(svc.Tasks, log, defaultSort, observer)
	users := NewUserHandler(svc.Users, log)
	reports := NewReportHandler(svc.Reports, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(log))
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", tasks.Create)
			r.Get("/", tasks.List)
			r.Get("/{id}", tasks.Get)
			r.Patch("/{id}", tasks.Update)
			r.Delete("/{id}", tasks.Delete)
			r.Put("/{id}/completion", tasks.SetCompletion)
			r.Patch("/{id}/notes", tasks.Annotate)
		})
		r.Post("/assignments", tasks.Assign)
		r.Get("/stats", tasks.Stats)
		r.Get("/dashboard/employees", tasks.Employees)

		r.Route("/users", func(r chi.Router) {
			r.Post("/", users.Create)
			r.Get("/", users.List)
			r.Get("/{id}", users.Get)
			r.Delete("/{id}", users.Delete)
			r.Delete("/{id}/tasks/completed", tasks.ClearCompleted)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", reports.Create)
			r.Get("/{id}", reports.Get)
			r.Get("/{id}/download", reports.Download)
		})
	})

	return r
}
