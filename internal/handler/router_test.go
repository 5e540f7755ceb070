package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/metrics"
	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/query"
	"github.com/BuzzLyutic/taskboard/internal/testutil"
	"github.com/BuzzLyutic/taskboard/internal/worker"
)

func setupE2EServer(t *testing.T) *httptest.Server {
	svc := setupServices(t)
	logger := zap.NewNop()
	m := metrics.New()

	workerPool := worker.NewPool(svc.Reports, logger, 2, 10*time.Millisecond)
	workerPool.OnFinish(m.ObserveReportJob)
	workerPool.Start(context.Background())

	server := httptest.NewServer(NewRouter(svc, logger, m, query.SortDueAsc))
	t.Cleanup(func() {
		workerPool.Stop()
		server.Close()
	})
	return server
}

func do(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestE2E_FullWorkflow(t *testing.T) {
	server := setupE2EServer(t)
	due := model.Today(time.Now()).AddDays(3)

	// 1. Create task
	var created model.Task
	resp := do(t, http.MethodPost, server.URL+"/api/tasks", model.Task{OwnerID: "employee", Text: "E2E Test Task", DueDate: due}, &created)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, model.PriorityMedium, created.Priority)

	// 2. Get task
	var fetched model.Task
	resp = do(t, http.MethodGet, server.URL+"/api/tasks/"+created.ID, nil, &fetched)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, due, fetched.DueDate)

	// 3. Update task
	var updated model.Task
	resp = do(t, http.MethodPatch, server.URL+"/api/tasks/"+created.ID, map[string]any{"text": "Updated E2E Task", "priority": "high"}, &updated)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Updated E2E Task", updated.Text)

	// 4. Complete it and add a note
	resp = do(t, http.MethodPut, server.URL+"/api/tasks/"+created.ID+"/completion", map[string]any{"completed": true}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var noted model.Task
	resp = do(t, http.MethodPatch, server.URL+"/api/tasks/"+created.ID+"/notes", map[string]any{"description": "done early"}, &noted)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "done early", noted.Description)

	// 5. Query
	var res query.Result
	resp = do(t, http.MethodGet, server.URL+"/api/tasks?owner=employee&status=completed", nil, &res)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, res.Items, 1)
	assert.Equal(t, query.Stats{Total: 1, Completed: 1}, res.Stats)

	// 6. Delete task
	resp = do(t, http.MethodDelete, server.URL+"/api/tasks/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// 7. Verify deletion
	resp = do(t, http.MethodGet, server.URL+"/api/tasks/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestE2E_ReportLifecycle(t *testing.T) {
	server := setupE2EServer(t)

	resp := do(t, http.MethodPost, server.URL+"/api/assignments", map[string]any{
		"assigner_id": "manager", "owner_id": "employee", "text": "Quarterly audit",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var job model.ReportJob
	resp = do(t, http.MethodPost, server.URL+"/api/reports", map[string]any{"requested_by": "manager", "format": "csv"}, &job)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, model.ReportPending, job.Status)

	ok := testutil.WaitForCondition(t, 5*time.Second, func() bool {
		var status model.ReportJob
		do(t, http.MethodGet, server.URL+"/api/reports/"+job.ID, nil, &status)
		return status.Status == model.ReportCompleted
	})
	require.True(t, ok, "report should be rendered by the worker pool")

	dl, err := http.Get(server.URL + "/api/reports/" + job.ID + "/download")
	require.NoError(t, err)
	defer dl.Body.Close()
	require.Equal(t, http.StatusOK, dl.StatusCode)
	assert.Equal(t, "text/csv", dl.Header.Get("Content-Type"))
	assert.Contains(t, dl.Header.Get("Content-Disposition"), "summary_report_")

	content, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Total Tasks,1")

	var exposition string
	ok = testutil.WaitForCondition(t, 5*time.Second, func() bool {
		metricsResp, err := http.Get(server.URL + "/metrics")
		if err != nil {
			return false
		}
		defer metricsResp.Body.Close()
		raw, _ := io.ReadAll(metricsResp.Body)
		exposition = string(raw)
		return strings.Contains(exposition, `taskboard_report_jobs_total{status="completed"} 1`)
	})
	assert.True(t, ok, "report job counter should be exported")
	assert.Contains(t, exposition, `route="/api/reports/{id}"`)
}

func TestE2E_ReportNotReady(t *testing.T) {
	svc := setupServices(t)
	server := httptest.NewServer(NewRouter(svc, zap.NewNop(), nil, query.SortNone))
	defer server.Close()

	var job model.ReportJob
	resp := do(t, http.MethodPost, server.URL+"/api/reports", map[string]any{"requested_by": "admin"}, &job)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/api/reports/"+job.ID+"/download", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/metrics", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "metrics disabled without a registry")
}

func TestE2E_IdempotencyAcrossRequests(t *testing.T) {
	server := setupE2EServer(t)

	post := func() model.Task {
		body, _ := json.Marshal(model.Task{OwnerID: "employee", Text: "Idempotent Task"})
		req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/tasks", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "e2e-idem-test")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var task model.Task
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&task))
		return task
	}

	assert.Equal(t, post().ID, post().ID)
}

func TestE2E_UsersAndDashboard(t *testing.T) {
	server := setupE2EServer(t)

	var dana model.User
	resp := do(t, http.MethodPost, server.URL+"/api/users", map[string]any{"username": "dana", "created_by": "manager"}, &dana)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for i := 0; i < 3; i++ {
		resp = do(t, http.MethodPost, server.URL+"/api/tasks", model.Task{OwnerID: dana.ID, Text: fmt.Sprintf("task %d", i)}, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var summaries []struct {
		User  model.User  `json:"user"`
		Stats query.Stats `json:"stats"`
	}
	resp = do(t, http.MethodGet, server.URL+"/api/dashboard/employees", nil, &summaries)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, summaries, 2)
	assert.Equal(t, "dana", summaries[1].User.Username)
	assert.Equal(t, 3, summaries[1].Stats.Total)

	var stats query.Stats
	resp = do(t, http.MethodGet, server.URL+"/api/stats", nil, &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, stats.Total)

	resp = do(t, http.MethodDelete, server.URL+"/api/users/"+dana.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, server.URL+"/api/stats", nil, &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, stats.Total)
}

func TestE2E_HealthCheck(t *testing.T) {
	server := setupE2EServer(t)

	var health map[string]string
	resp := do(t, http.MethodGet, server.URL+"/health", nil, &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health["status"])
}
