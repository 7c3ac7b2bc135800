package httpapi

import (
	"context"
	"errors"
	"net/http"

	"wisefido-health-sync/internal/service"

	"go.uber.org/zap"
)

// SyncRunner is the part of the orchestrator the HTTP surface drives.
type SyncRunner interface {
	Sync(ctx context.Context) (*service.RunReport, error)
	Status() service.Status
	Evaluate(ctx context.Context) *service.Evaluation
}

type SyncHandler struct {
	sync   SyncRunner
	events service.EventLog
	logger *zap.Logger
}

// NewSyncHandler builds the handler. events may be nil.
func NewSyncHandler(sync SyncRunner, events service.EventLog, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{sync: sync, events: events, logger: logger}
}

// TriggerSync runs a sync and returns its report. With ?async=true the run
// continues in the background and the current status is returned.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if parseBool(r.URL.Query().Get("async")) {
		ctx := context.WithoutCancel(r.Context())
		go func() {
			if _, err := h.sync.Sync(ctx); err != nil && !errors.Is(err, service.ErrSyncInProgress) {
				h.logger.Warn("Background sync failed", zap.Error(err))
			}
		}()
		writeJSON(w, http.StatusAccepted, Ok(h.sync.Status()))
		return
	}

	report, err := h.sync.Sync(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			writeJSON(w, http.StatusConflict, Fail("sync already in progress"))
			return
		}
		var serr *service.SyncError
		if errors.As(err, &serr) {
			writeJSON(w, http.StatusOK, FailWith(serr.Message(), h.sync.Status()))
			return
		}
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(report))
}

func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.sync.Status()))
}

// GetHistory lists recent runs, newest first. ?limit defaults to 20.
func (h *SyncHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeJSON(w, http.StatusOK, Ok([]service.RunEvent{}))
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 20)
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	events, err := h.events.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read sync history", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to read sync history"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(events))
}

// GetInsights evaluates a fresh snapshot without notifying.
func (h *SyncHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.sync.Evaluate(r.Context())))
}
