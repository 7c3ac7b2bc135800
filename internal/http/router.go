package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router wraps a gorilla/mux router with the service's routes.
type Router struct {
	mux    *mux.Router
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	r := &Router{mux: mux.NewRouter(), logger: logger}
	r.mux.Use(r.logRequests)

	r.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok("ok"))
	}).Methods(http.MethodGet)
	r.mux.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterSyncRoutes mounts the sync, status, history and insights endpoints.
func (r *Router) RegisterSyncRoutes(h *SyncHandler) {
	api := r.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/sync", h.TriggerSync).Methods(http.MethodPost)
	api.HandleFunc("/sync/status", h.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/sync/history", h.GetHistory).Methods(http.MethodGet)
	api.HandleFunc("/insights", h.GetInsights).Methods(http.MethodGet)
}

// RegisterImportRoutes mounts the blood pressure import endpoint.
func (r *Router) RegisterImportRoutes(h *ImportHandler) {
	r.mux.HandleFunc("/api/v1/import/blood-pressure", h.ImportBloodPressure).Methods(http.MethodPost)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (r *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		r.logger.Debug("HTTP request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
