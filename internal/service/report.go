package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/report"
	"github.com/BuzzLyutic/taskboard/internal/repo"
)

var ErrReportNotReady = errors.New("report is not ready")

type ReportRequest struct {
	Type        string             `json:"type"`
	Period      string             `json:"period"`
	Format      model.ReportFormat `json:"format"`
	RequestedBy string             `json:"requested_by"`
}

type ReportService struct {
	reports repo.ReportRepository
	tasks   *TaskService
	users   repo.UserRepository
	now     func() time.Time
}

func NewReportService(reports repo.ReportRepository, tasks *TaskService, users repo.UserRepository) *ReportService {
	return &ReportService{reports: reports, tasks: tasks, users: users, now: time.Now}
}

// Request queues a report job. Only admins and managers may request reports.
func (s *ReportService) Request(ctx context.Context, req ReportRequest) (model.ReportJob, error) {
	req.Type = strings.TrimSpace(req.Type)
	if req.Type == "" {
		req.Type = "summary"
	}
	if req.Period == "" {
		req.Period = "all"
	}
	if req.Format == "" {
		req.Format = model.FormatJSON
	}
	if !req.Format.Valid() {
		return model.ReportJob{}, fmt.Errorf("%w: unknown report format %q", ErrValidation, req.Format)
	}

	requester, err := s.users.Get(ctx, req.RequestedBy)
	if errors.Is(err, repo.ErrorNotFound) {
		return model.ReportJob{}, fmt.Errorf("%w: unknown requester", ErrForbidden)
	}
	if err != nil {
		return model.ReportJob{}, err
	}
	if !requester.Role.CanAssign() {
		return model.ReportJob{}, fmt.Errorf("%w: %s may not request reports", ErrForbidden, requester.Role)
	}

	return s.reports.Create(ctx, model.ReportJob{
		Type:        req.Type,
		Period:      req.Period,
		Format:      req.Format,
		RequestedBy: requester.ID,
	})
}

// Summarize collects the board-wide counts as of asOf.
func (s *ReportService) Summarize(ctx context.Context, job model.ReportJob, asOf model.Date) (report.Summary, error) {
	employees, err := s.tasks.EmployeeSummaries(ctx, asOf)
	if err != nil {
		return report.Summary{}, err
	}
	all, err := s.tasks.Stats(ctx, "", asOf)
	if err != nil {
		return report.Summary{}, err
	}

	requester := job.RequestedBy
	if u, err := s.users.Get(ctx, job.RequestedBy); err == nil {
		requester = u.Username
	}

	sum := report.Summary{
		Type:        job.Type,
		Period:      job.Period,
		GeneratedBy: requester,
		GeneratedAt: s.now().UTC(),
		Data: report.Totals{
			TotalEmployees: len(employees),
			TotalTasks:     all.Total,
			CompletedTasks: all.Completed,
			PendingTasks:   all.Pending,
			OverdueTasks:   all.Overdue,
		},
		Employees: make([]report.EmployeeRow, 0, len(employees)),
	}
	for _, e := range employees {
		sum.Employees = append(sum.Employees, employeeRow(e))
	}
	return sum, nil
}

func employeeRow(e EmployeeSummary) report.EmployeeRow {
	return report.EmployeeRow{
		UserID:    e.User.ID,
		Username:  e.User.Username,
		Total:     e.Stats.Total,
		Completed: e.Stats.Completed,
		Pending:   e.Stats.Pending,
		Overdue:   e.Stats.Overdue,
	}
}

// Build renders job and stores the result, marking it completed or failed.
// The job must already be claimed.
func (s *ReportService) Build(ctx context.Context, job model.ReportJob) (model.ReportJob, error) {
	file, err := s.render(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			return job, err
		}
		job.Status = model.ReportFailed
		job.Error = err.Error()
		if _, uerr := s.reports.Update(ctx, job); uerr != nil {
			return job, uerr
		}
		return job, err
	}

	job.Status = model.ReportCompleted
	job.Error = ""
	job.FileName = file.Name
	job.ContentType = file.ContentType
	job.Content = file.Content
	return s.reports.Update(ctx, job)
}

func (s *ReportService) render(ctx context.Context, job model.ReportJob) (report.File, error) {
	sum, err := s.Summarize(ctx, job, model.Today(s.now()))
	if err != nil {
		return report.File{}, err
	}
	return report.Render(sum, job.Format)
}

// Release puts a claimed job back in the queue.
func (s *ReportService) Release(ctx context.Context, job model.ReportJob) error {
	job.Status = model.ReportPending
	_, err := s.reports.Update(ctx, job)
	return err
}

// Claim takes the oldest pending job; repo.ErrorNotFound means the queue is empty.
func (s *ReportService) Claim(ctx context.Context) (model.ReportJob, error) {
	return s.reports.ClaimPending(ctx)
}

// Get returns the job without its rendered content.
func (s *ReportService) Get(ctx context.Context, id string) (model.ReportJob, error) {
	job, err := s.reports.Get(ctx, id)
	if err != nil {
		return job, err
	}
	job.Content = nil
	return job, nil
}

func (s *ReportService) Content(ctx context.Context, id string) (report.File, error) {
	job, err := s.reports.Get(ctx, id)
	if err != nil {
		return report.File{}, err
	}
	if job.Status != model.ReportCompleted {
		return report.File{}, fmt.Errorf("%w: status %s", ErrReportNotReady, job.Status)
	}
	return report.File{Name: job.FileName, ContentType: job.ContentType, Content: job.Content}, nil
}
