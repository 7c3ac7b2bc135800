package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"wisefido-health-sync/internal/importer"
	"wisefido-health-sync/internal/models"
	"wisefido-health-sync/internal/remote"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileParser parses an uploaded export.
type FileParser interface {
	ParseFile(name string, r io.Reader) ([]models.BPReading, error)
}

// ReadingUploader stores parsed readings remotely.
type ReadingUploader interface {
	UploadReadings(ctx context.Context, readings []models.BPReading) (remote.UploadResult, error)
}

type ImportHandler struct {
	parser   FileParser
	uploader ReadingUploader
	logger   *zap.Logger
}

func NewImportHandler(parser FileParser, uploader ReadingUploader, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{parser: parser, uploader: uploader, logger: logger}
}

// ImportResponse describes one import. Readings are echoed only on dry runs.
type ImportResponse struct {
	BatchID   string               `json:"batch_id"`
	FileName  string               `json:"file_name"`
	Parsed    int                  `json:"parsed"`
	Committed int                  `json:"committed"`
	DryRun    bool                 `json:"dry_run"`
	Readings  []models.BPReading   `json:"readings,omitempty"`
	Upload    *remote.UploadResult `json:"upload,omitempty"`
}

// ImportBloodPressure parses the multipart "file" field completely, then
// uploads the readings unless ?dry_run=true.
func (h *ImportHandler) ImportBloodPressure(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10MB max
		writeJSON(w, http.StatusOK, Fail("failed to parse form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusOK, Fail("file not found in request"))
		return
	}
	defer file.Close()

	resp := ImportResponse{
		BatchID:  uuid.NewString(),
		FileName: header.Filename,
		DryRun:   parseBool(r.URL.Query().Get("dry_run")),
	}

	readings, err := h.parser.ParseFile(header.Filename, file)
	if err != nil {
		var ie *importer.ImportError
		if errors.As(err, &ie) {
			writeJSON(w, http.StatusOK, Fail(ie.Error()))
			return
		}
		writeJSON(w, http.StatusOK, Fail("failed to read file"))
		return
	}
	resp.Parsed = len(readings)

	if resp.DryRun {
		resp.Readings = readings
		writeJSON(w, http.StatusOK, Ok(resp))
		return
	}

	res, err := h.uploader.UploadReadings(r.Context(), readings)
	resp.Upload = &res
	resp.Committed = res.Committed()
	if err != nil {
		h.logger.Error("Blood pressure upload failed",
			zap.String("batch_id", resp.BatchID),
			zap.Int("committed", resp.Committed),
			zap.Error(err),
		)
		writeJSON(w, http.StatusOK, FailWith("upload failed, retry the import", resp))
		return
	}

	h.logger.Info("Blood pressure readings imported",
		zap.String("batch_id", resp.BatchID),
		zap.String("file_name", resp.FileName),
		zap.Int("readings", resp.Parsed),
	)
	writeJSON(w, http.StatusOK, Ok(resp))
}
