package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/service"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

type ReportHandler struct {
	service *service.ReportService
	logger  *zap.Logger
}

func NewReportHandler(srv *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{service: srv, logger: logger}
}

// Create queues a report; the worker pool renders it later.
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.ReportRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	job, err := h.service.Request(r.Context(), req)
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}

	respond.Created(w, r, http.StatusAccepted, fmt.Sprintf("/api/reports/%s", job.ID), job)
}

func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, job)
}

func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	file, err := h.service.Content(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleErrors(w, r, h.logger, err)
		return
	}

	if err := respond.Attachment(w, r, file.Name, file.ContentType, file.Content); err != nil {
		h.logger.Warn("write report", zap.String("report_id", chi.URLParam(r, "id")), zap.Error(err))
	}
}
