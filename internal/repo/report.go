package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/storage"
)

type ReportRepo struct {
	jobs *collection[model.ReportJob]
}

func NewReportRepo(store storage.Store) *ReportRepo {
	return &ReportRepo{jobs: newCollection[model.ReportJob](store, KeyReports)}
}

func (r *ReportRepo) Create(ctx context.Context, job model.ReportJob) (model.ReportJob, error) {
	now := time.Now().UTC()
	job.ID = uuid.NewString()
	job.Status = model.ReportPending
	job.CreatedAt = now
	job.UpdatedAt = now

	err := r.jobs.mutate(ctx, func(jobs []model.ReportJob) ([]model.ReportJob, error) {
		return append(jobs, job), nil
	})
	return job, err
}

func (r *ReportRepo) Get(ctx context.Context, id string) (model.ReportJob, error) {
	jobs, err := r.jobs.snapshot(ctx)
	if err != nil {
		return model.ReportJob{}, err
	}
	for _, j := range jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return model.ReportJob{}, ErrorNotFound
}

func (r *ReportRepo) Update(ctx context.Context, job model.ReportJob) (model.ReportJob, error) {
	job.UpdatedAt = time.Now().UTC()
	err := r.jobs.mutate(ctx, func(jobs []model.ReportJob) ([]model.ReportJob, error) {
		for i := range jobs {
			if jobs[i].ID == job.ID {
				job.CreatedAt = jobs[i].CreatedAt
				jobs[i] = job
				return jobs, nil
			}
		}
		return nil, ErrorNotFound
	})
	return job, err
}

// ClaimPending moves the oldest pending job to processing and returns it.
// ErrorNotFound means there is nothing to do.
func (r *ReportRepo) ClaimPending(ctx context.Context) (model.ReportJob, error) {
	var claimed model.ReportJob
	err := r.jobs.mutate(ctx, func(jobs []model.ReportJob) ([]model.ReportJob, error) {
		oldest := -1
		for i, j := range jobs {
			if j.Status != model.ReportPending {
				continue
			}
			if oldest < 0 || j.CreatedAt.Before(jobs[oldest].CreatedAt) {
				oldest = i
			}
		}
		if oldest < 0 {
			return nil, ErrorNotFound
		}
		jobs[oldest].Status = model.ReportProcessing
		jobs[oldest].UpdatedAt = time.Now().UTC()
		claimed = jobs[oldest]
		return jobs, nil
	})
	return claimed, err
}
