package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/driftwatch/driftwatch/internal/domain"
)

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.models.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": models,
		"count":  len(models),
	})
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	model, err := s.models.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.models.Delete(id); err != nil {
		writeDomainError(w, err)
		return
	}
	s.gateway.Remove(id)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "deleted",
		"model_id": id,
	})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.gateway.Info(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleModelHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.gateway.Health(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var features map[string]any
	if err := json.NewDecoder(r.Body).Decode(&features); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	prediction, err := s.gateway.Predict(r.Context(), chi.URLParam(r, "id"), features)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusGatewayTimeout, err.Error())
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

func (s *Server) handleBaseline(w http.ResponseWriter, r *http.Request) {
	baseline, err := s.baselines.GetBaseline(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, baseline)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.LogFilter{
		ModelID: q.Get("model_id"),
		Status:  domain.InferenceStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	logs, err := s.logs.QueryLogs(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}
