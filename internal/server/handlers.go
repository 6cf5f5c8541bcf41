package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/extract"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/pipeline"
	"github.com/sells-group/leads-cli/internal/queue"
)

type extractRequest struct {
	ConversationText string `json:"conversationText"`
	BatchID          string `json:"batchId,omitempty"`
}

type extractResponse struct {
	Leads []model.Lead `json:"leads"`
}

type backgroundResponse struct {
	Message    string `json:"message"`
	LeadsCount int    `json:"leadsCount"`
}

type batchCreatedResponse struct {
	BatchID string `json:"batchId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExtractLeads runs the pipeline without progress reporting and
// returns the leads in the response.
func (s *Server) handleExtractLeads(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExtractRequest(w, r, false)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	ex, err := s.newExtractor(ctx)
	if err != nil {
		s.extractorError(w, err)
		return
	}

	leads, err := s.orchestrator(ex, s.cfg.Extract.SyncWaveSize).Run(ctx, req.ConversationText, nil)
	if err != nil {
		zap.L().Error("server: extract leads", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to extract leads", err.Error())
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, extractResponse{Leads: leads})
}

// handleExtractLeadsBackground runs the tracked pipeline for an existing
// batch and responds once the run is over.
func (s *Server) handleExtractLeadsBackground(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExtractRequest(w, r, true)
	if !ok {
		return
	}
	ctx := r.Context()
	log := zap.L().With(zap.String("batch_id", req.BatchID))

	b, err := s.store.GetBatch(ctx, req.BatchID)
	if err != nil {
		log.Error("server: load batch", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load batch", err.Error())
		return
	}
	if b == nil {
		writeError(w, http.StatusBadRequest, "batch not found", req.BatchID)
		return
	}

	tracker := pipeline.NewTracker(s.store, req.BatchID)
	ex, err := s.newExtractor(ctx)
	if err != nil {
		if fErr := tracker.Fail(context.WithoutCancel(ctx), err.Error()); fErr != nil {
			log.Warn("server: record batch failure", zap.Error(fErr))
		}
		s.extractorError(w, err)
		return
	}

	leads, err := s.orchestrator(ex, s.cfg.Extract.BackgroundWaveSize).Run(ctx, req.ConversationText, tracker)
	if errors.Is(err, pipeline.ErrBatchClosed) {
		writeError(w, http.StatusConflict, "batch already closed", err.Error())
		return
	}
	if err != nil {
		log.Error("server: background extraction", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to extract leads", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, backgroundResponse{
		Message:    "Lead extraction completed",
		LeadsCount: len(leads),
	})
}

// handleExtractLeadsQueued creates a batch, hands the run to the worker
// queue and returns the batch id for polling.
func (s *Server) handleExtractLeadsQueued(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExtractRequest(w, r, false)
	if !ok {
		return
	}
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "queue disabled", "")
		return
	}
	ctx := r.Context()

	ex, err := s.newExtractor(ctx)
	if err != nil {
		s.extractorError(w, err)
		return
	}

	b, err := s.store.CreateBatch(ctx)
	if err != nil {
		zap.L().Error("server: create batch", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create batch", err.Error())
		return
	}

	job := queue.Job{
		BatchID: b.ID,
		Text:    req.ConversationText,
		Runner:  s.orchestrator(ex, s.cfg.Extract.BackgroundWaveSize),
	}
	if err := s.queue.Submit(job); err != nil {
		msg := err.Error()
		if fErr := pipeline.NewTracker(s.store, b.ID).Fail(context.WithoutCancel(ctx), msg); fErr != nil {
			zap.L().Warn("server: record batch failure", zap.String("batch_id", b.ID), zap.Error(fErr))
		}
		writeError(w, http.StatusServiceUnavailable, "queue unavailable", msg)
		return
	}

	writeJSON(w, http.StatusAccepted, batchCreatedResponse{BatchID: b.ID})
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.CreateBatch(r.Context())
	if err != nil {
		zap.L().Error("server: create batch", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create batch", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, batchCreatedResponse{BatchID: b.ID})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := s.store.GetBatch(r.Context(), id)
	if err != nil {
		zap.L().Error("server: get batch", zap.String("batch_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load batch", err.Error())
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "batch not found", id)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteBatch(r.Context(), id); err != nil {
		zap.L().Error("server: delete batch", zap.String("batch_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete batch", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.BatchFilter{Status: model.BatchStatus(q.Get("status"))}
	if filter.Status != "" && !filter.Status.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid status", string(filter.Status))
		return
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid "+name, v)
			return
		}
		*dst = n
	}

	batches, err := s.store.ListBatches(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list batches", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list batches", err.Error())
		return
	}
	if batches == nil {
		batches = []model.Batch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

// handleStats summarizes batches created within ?lookback= (default from
// config).
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	lookback := s.cfg.Monitoring.Lookback
	if v := r.URL.Query().Get("lookback"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "invalid lookback", v)
			return
		}
		lookback = d
	}

	snap, err := s.collector.Collect(r.Context(), lookback)
	if err != nil {
		zap.L().Error("server: collect stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect stats", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) extractorError(w http.ResponseWriter, err error) {
	zap.L().Error("server: build extractor", zap.Error(err))
	if errors.Is(err, extract.ErrMissingCredentials) {
		writeError(w, http.StatusInternalServerError, "provider credentials are not configured", "")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to initialize extractor", err.Error())
}

func decodeExtractRequest(w http.ResponseWriter, r *http.Request, needBatch bool) (extractRequest, bool) {
	var req extractRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return req, false
	}
	if strings.TrimSpace(req.ConversationText) == "" {
		writeError(w, http.StatusBadRequest, "conversationText is required", "")
		return req, false
	}
	if needBatch && strings.TrimSpace(req.BatchID) == "" {
		writeError(w, http.StatusBadRequest, "batchId is required", "")
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, errorResponse{Error: msg, Message: detail})
}
