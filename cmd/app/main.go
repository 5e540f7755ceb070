package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/BuzzLyutic/taskboard/internal/config"
	"github.com/BuzzLyutic/taskboard/internal/handler"
	"github.com/BuzzLyutic/taskboard/internal/metrics"
	"github.com/BuzzLyutic/taskboard/internal/query"
	"github.com/BuzzLyutic/taskboard/internal/repo"
	"github.com/BuzzLyutic/taskboard/internal/service"
	"github.com/BuzzLyutic/taskboard/internal/storage"
	"github.com/BuzzLyutic/taskboard/internal/worker"
	"github.com/BuzzLyutic/taskboard/pkg/logger"
)

func main() {
	// Загрузка конфигурации
	cfg := config.Load()

	// Подключаем логгер
	zlog, closer, err := logger.New(logger.Config{
		Level:    cfg.Log.Level,
		Encoding: cfg.Log.Encoding,
		File:     cfg.Log.File,
	})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer closer.Close()
	defer zlog.Sync()

	// Подключаем хранилище
	store, err := storage.Open(context.Background(), cfg.Store)
	if err != nil {
		zlog.Fatal("Failed to open store", zap.String("backend", cfg.Store.Backend), zap.Error(err)) // Fatal потому что дальнейшая работа теряет смысл
	}
	defer store.Close()
	zlog.Info("Store opened", zap.String("backend", cfg.Store.Backend))

	locale, err := language.Parse(cfg.Query.Locale)
	if err != nil {
		zlog.Warn("Unknown query locale, using English", zap.String("locale", cfg.Query.Locale))
		locale = language.English
	}
	defaultSort, ok := query.LookupSortKey(cfg.Query.DefaultSort)
	if !ok {
		zlog.Warn("Unknown default sort, using due-asc", zap.String("sort", cfg.Query.DefaultSort))
		defaultSort = query.SortDueAsc
	}

	taskRepo := repo.NewTaskRepo(store)
	userRepo := repo.NewUserRepo(store)
	reportRepo := repo.NewReportRepo(store)

	taskService := service.NewTaskService(taskRepo, userRepo, query.NewEngine(locale, nil))
	userService := service.NewUserService(userRepo, taskRepo)
	reportService := service.NewReportService(reportRepo, taskService, userRepo)

	if cfg.SeedUsers {
		added, err := userService.EnsureDefaults(context.Background())
		if err != nil {
			zlog.Fatal("Failed to seed default users", zap.Error(err))
		}
		if added > 0 {
			zlog.Info("Seeded default users", zap.Int("count", added))
		}
	}

	m := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerPool := worker.NewPool(reportService, zlog, cfg.Worker.Count, cfg.Worker.PollInterval)
	workerPool.OnFinish(m.ObserveReportJob)
	workerPool.Start(ctx)

	r := handler.NewRouter(handler.Services{
		Tasks:   taskService,
		Users:   userService,
		Reports: reportService,
	}, zlog, m, defaultSort)

	srv := http.Server{ // Создаем сервер
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() { // Запуск сервера и обработка ошибок
		zlog.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	zlog.Info("Shutting down server...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Shutdown error", zap.Error(err))
	}
	workerPool.Stop()
	cancel()
	zlog.Info("Server stopped successfully!")
}
