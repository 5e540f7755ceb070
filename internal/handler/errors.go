package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/repo"
	"github.com/BuzzLyutic/taskboard/internal/service"
	"github.com/BuzzLyutic/taskboard/pkg/logger"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

func handleErrors(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, repo.ErrorNotFound):
		respond.Error(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrorConflict):
		respond.Error(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, service.ErrReportNotReady):
		respond.Error(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrValidation):
		respond.Error(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		respond.Error(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrOverdue):
		respond.Error(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.WithRequestID(r.Context(), log).Error("internal error", zap.Error(err))
		respond.Error(w, r, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON rejects empty bodies and unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, log *zap.Logger, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		respond.Error(w, r, http.StatusBadRequest, "empty request body")
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		logger.WithRequestID(r.Context(), log).Debug("failed to decode json", zap.Error(err))
		respond.Error(w, r, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return false
	}
	return true
}
