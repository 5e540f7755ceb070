package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/query"
	"github.com/BuzzLyutic/taskboard/internal/service"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

// QueryObserver receives the size of every query result.
type QueryObserver interface {
	ObserveQuery(items int)
}

type TaskHandler struct {
	service     *service.TaskService
	logger      *zap.Logger
	defaultSort query.SortKey
	observer    QueryObserver
}

func NewTaskHandler(srv *service.TaskService, logger *zap.Logger, defaultSort query.SortKey, observer QueryObserver) *TaskHandler {
	return &TaskHandler{
		service:     srv,
		logger:      logger,
		defaultSort: defaultSort,
		observer:    observer,
	}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.Task
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	idempKey := r.Header.Get("Idempotency-Key")
	task, err := h.service.Create(r.Context(), req, idempKey)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	respond.Created(w, r, http.StatusCreated, fmt.Sprintf("/api/tasks/%s", task.ID), task)
}

type assignRequest struct {
	AssignerID string         `json:"assigner_id"`
	OwnerID    string         `json:"owner_id"`
	Text       string         `json:"text"`
	Priority   model.Priority `json:"priority"`
	DueDate    model.Date     `json:"due_date"`
}

func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	task, err := h.service.Assign(r.Context(), model.Task{
		OwnerID:  req.OwnerID,
		Text:     req.Text,
		Priority: req.Priority,
		DueDate:  req.DueDate,
	}, req.AssignerID)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	respond.Created(w, r, http.StatusCreated, fmt.Sprintf("/api/tasks/%s", task.ID), task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

// List runs a task query. Parameters: owner, status, search (or q), sort, as_of.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := query.Query{
		Status: query.ParseStatusFilter(params.Get("status")),
		Search: params.Get("search"),
		Sort:   h.defaultSort,
	}
	if q.Search == "" {
		q.Search = params.Get("q")
	}
	if s := params.Get("sort"); s != "" {
		q.Sort = query.ParseSortKey(s)
	}
	asOf, err := model.ParseDate(params.Get("as_of"))
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid as_of")
		return
	}
	q.AsOf = asOf

	res, err := h.service.Query(r.Context(), params.Get("owner"), q)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	if h.observer != nil {
		h.observer.ObserveQuery(len(res.Items))
	}
	respond.JSON(w, r, http.StatusOK, res)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.TaskPatch
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	task, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleErrors(w, r, err)
		return
	}

	respond.NoContent(w, r)
}

func (h *TaskHandler) SetCompletion(w http.ResponseWriter, r *http.Request) {
	var req service.Completion
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	task, err := h.service.SetCompletion(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Annotate(w http.ResponseWriter, r *http.Request) {
	var req service.Annotation
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	task, err := h.service.Annotate(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	asOf, err := model.ParseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid as_of")
		return
	}

	stats, err := h.service.Stats(r.Context(), r.URL.Query().Get("owner"), asOf)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, stats)
}

func (h *TaskHandler) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.ClearCompleted(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, map[string]int{"removed": removed})
}

func (h *TaskHandler) Employees(w http.ResponseWriter, r *http.Request) {
	asOf, err := model.ParseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "invalid as_of")
		return
	}

	summaries, err := h.service.EmployeeSummaries(r.Context(), asOf)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, summaries)
}

func (h *TaskHandler) handleErrors(w http.ResponseWriter, r *http.Request, err error) {
	handleErrors(w, r, h.logger, err)
}
