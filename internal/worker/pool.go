package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/repo"
)

// Jobs is the report queue the pool drains. Claim returns repo.ErrorNotFound
// when nothing is pending.
type Jobs interface {
	Claim(ctx context.Context) (model.ReportJob, error)
	Build(ctx context.Context, job model.ReportJob) (model.ReportJob, error)
	Release(ctx context.Context, job model.ReportJob) error
}

type Pool struct {
	jobs     Jobs
	logger   *zap.Logger
	count    int
	interval time.Duration
	observe  func(model.ReportStatus)
	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

func NewPool(jobs Jobs, logger *zap.Logger, count int, interval time.Duration) *Pool {
	if count < 1 {
		count = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Pool{
		jobs:     jobs,
		logger:   logger,
		count:    count,
		interval: interval,
		observe:  func(model.ReportStatus) {},
		stop:     make(chan struct{}),
	}
}

// OnFinish registers fn to be called with the final status of every job. Call before Start.
func (p *Pool) OnFinish(fn func(model.ReportStatus)) {
	if fn != nil {
		p.observe = fn
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("workers", p.count), zap.Duration("poll", p.interval))

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("Stopping worker pool...")
		close(p.stop)
		p.wg.Wait()
		p.logger.Info("Worker pool stopped")
	})
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.processNext(ctx, id); err != nil && !errors.Is(err, repo.ErrorNotFound) {
				p.logger.Error("worker error", zap.Int("worker", id), zap.Error(err))
			}
		}
	}
}

func (p *Pool) processNext(ctx context.Context, workerID int) error {
	// Забрать задачу
	job, err := p.jobs.Claim(ctx)
	if err != nil {
		return err
	}

	p.logger.Info("Processing report",
		zap.Int("worker", workerID),
		zap.String("report_id", job.ID),
		zap.String("format", string(job.Format)),
	)

	started := time.Now()
	built, err := p.jobs.Build(ctx, job)
	if ctx.Err() != nil {
		// Отмена: вернуть задачу в pending
		if rerr := p.jobs.Release(context.WithoutCancel(ctx), job); rerr != nil {
			p.logger.Error("release report", zap.String("report_id", job.ID), zap.Error(rerr))
		}
		return ctx.Err()
	}
	if err != nil {
		p.observe(model.ReportFailed)
		return err
	}

	p.observe(built.Status)
	p.logger.Info("Report completed",
		zap.Int("worker", workerID),
		zap.String("report_id", job.ID),
		zap.String("file", built.FileName),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}
