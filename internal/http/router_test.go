package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wisefido-health-sync/internal/importer"
	"wisefido-health-sync/internal/models"
	"wisefido-health-sync/internal/remote"
	"wisefido-health-sync/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSync struct {
	report *service.RunReport
	err    error
	status service.Status
	calls  int
}

func (f *fakeSync) Sync(context.Context) (*service.RunReport, error) {
	f.calls++
	return f.report, f.err
}

func (f *fakeSync) Status() service.Status { return f.status }

func (f *fakeSync) Evaluate(context.Context) *service.Evaluation {
	return &service.Evaluation{Insights: []models.Insight{{ID: "all-clear", Title: "All Clear"}}}
}

type envelope struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func newTestRouter(sync SyncRunner, events service.EventLog, store *remote.MemoryStore) *Router {
	logger := zap.NewNop()
	r := NewRouter(logger)
	r.RegisterSyncRoutes(NewSyncHandler(sync, events, logger))

	parser := importer.NewParser(importer.Options{Location: time.UTC})
	r.RegisterImportRoutes(NewImportHandler(parser, remote.NewClient(store, "user-1", 500, logger), logger))
	return r
}

func do(t *testing.T, h http.Handler, req *http.Request) (int, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(&fakeSync{}, nil, remote.NewMemoryStore())
	code, env := do(t, r, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, ResultSuccess, env.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(&fakeSync{}, nil, remote.NewMemoryStore())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestTriggerSync_Success(t *testing.T) {
	f := &fakeSync{report: &service.RunReport{RunID: "run-1", Vitals: 3}}
	r := newTestRouter(f, nil, remote.NewMemoryStore())

	code, env := do(t, r, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, ResultSuccess, env.Code)

	var report service.RunReport
	require.NoError(t, json.Unmarshal(env.Result, &report))
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 3, report.Vitals)
}

func TestTriggerSync_InProgress(t *testing.T) {
	r := newTestRouter(&fakeSync{err: service.ErrSyncInProgress}, nil, remote.NewMemoryStore())

	code, env := do(t, r, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, ResultError, env.Code)
}

func TestTriggerSync_FailureCarriesUserMessage(t *testing.T) {
	f := &fakeSync{
		err:    &service.SyncError{Kind: service.KindPermissionDenied, Step: service.StateRequestingAccess, Err: errors.New("denied")},
		status: service.Status{State: service.StateIdle, LastResult: "failed"},
	}
	r := newTestRouter(f, nil, remote.NewMemoryStore())

	_, env := do(t, r, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))
	assert.Equal(t, ResultError, env.Code)
	assert.Contains(t, env.Message, "access was denied")

	var status service.Status
	require.NoError(t, json.Unmarshal(env.Result, &status))
	assert.Equal(t, "failed", status.LastResult)
}

func TestTriggerSync_WrongMethod(t *testing.T) {
	r := newTestRouter(&fakeSync{}, nil, remote.NewMemoryStore())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetStatusAndInsights(t *testing.T) {
	f := &fakeSync{status: service.Status{State: service.StateUploading, LastRunID: "run-9"}}
	r := newTestRouter(f, nil, remote.NewMemoryStore())

	_, env := do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil))
	var status service.Status
	require.NoError(t, json.Unmarshal(env.Result, &status))
	assert.Equal(t, service.StateUploading, status.State)
	assert.Equal(t, "run-9", status.LastRunID)

	_, env = do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/insights", nil))
	var ev service.Evaluation
	require.NoError(t, json.Unmarshal(env.Result, &ev))
	require.Len(t, ev.Insights, 1)
	assert.Equal(t, "all-clear", ev.Insights[0].ID)
	assert.Equal(t, 0, f.calls)
}

func TestGetHistory(t *testing.T) {
	events := service.NewMemoryEventLog(10)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, events.Publish(ctx, service.RunEvent{RunID: id, Result: "success"}))
	}
	r := newTestRouter(&fakeSync{}, events, remote.NewMemoryStore())

	_, env := do(t, r, httptest.NewRequest(http.MethodGet, "/api/v1/sync/history?limit=2", nil))
	var got []service.RunEvent
	require.NoError(t, json.Unmarshal(env.Result, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].RunID)
}

func multipartRequest(t *testing.T, target, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

const omronCSV = "Date,Time,Systolic,Diastolic,Pulse\n2024-01-01,08:00,120,80,65\n2024-01-02,08:05,118,79,63\n"

func TestImportBloodPressure_Uploads(t *testing.T) {
	store := remote.NewMemoryStore()
	r := newTestRouter(&fakeSync{}, nil, store)

	_, env := do(t, r, multipartRequest(t, "/api/v1/import/blood-pressure", "export.csv", omronCSV))
	require.Equal(t, ResultSuccess, env.Code, env.Message)

	var resp ImportResponse
	require.NoError(t, json.Unmarshal(env.Result, &resp))
	assert.Equal(t, 2, resp.Parsed)
	assert.Equal(t, 6, resp.Committed)
	assert.NotEmpty(t, resp.BatchID)
	assert.Empty(t, resp.Readings)
	assert.Equal(t, 6, store.Count(remote.VitalsTable.Name))
}

func TestImportBloodPressure_DryRun(t *testing.T) {
	store := remote.NewMemoryStore()
	r := newTestRouter(&fakeSync{}, nil, store)

	_, env := do(t, r, multipartRequest(t, "/api/v1/import/blood-pressure?dry_run=true", "export.csv", omronCSV))
	require.Equal(t, ResultSuccess, env.Code)

	var resp ImportResponse
	require.NoError(t, json.Unmarshal(env.Result, &resp))
	assert.True(t, resp.DryRun)
	assert.Len(t, resp.Readings, 2)
	assert.Equal(t, 0, store.Calls())
}

func TestImportBloodPressure_NoReadings(t *testing.T) {
	store := remote.NewMemoryStore()
	r := newTestRouter(&fakeSync{}, nil, store)

	_, env := do(t, r, multipartRequest(t, "/api/v1/import/blood-pressure", "export.csv", "Date,Sys,Dia\nx,abc,def\n"))
	assert.Equal(t, ResultError, env.Code)
	assert.NotEmpty(t, env.Message)
	assert.Equal(t, 0, store.Calls())
}

func TestImportBloodPressure_MissingFile(t *testing.T) {
	r := newTestRouter(&fakeSync{}, nil, remote.NewMemoryStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import/blood-pressure", nil)
	_, env := do(t, r, req)
	assert.Equal(t, ResultError, env.Code)
}

func TestImportBloodPressure_UploadFailure(t *testing.T) {
	store := remote.NewMemoryStore()
	store.FailOn = func(remote.TableSpec, int) error { return remote.ErrNetwork }
	r := newTestRouter(&fakeSync{}, nil, store)

	_, env := do(t, r, multipartRequest(t, "/api/v1/import/blood-pressure", "export.csv", omronCSV))
	assert.Equal(t, ResultError, env.Code)

	var resp ImportResponse
	require.NoError(t, json.Unmarshal(env.Result, &resp))
	assert.Equal(t, 2, resp.Parsed)
	assert.Equal(t, 0, resp.Committed)
}
