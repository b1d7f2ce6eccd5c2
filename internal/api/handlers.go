package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"datainsight/internal/analysis"
	"datainsight/internal/llm"
	"datainsight/internal/models"
	"datainsight/internal/service"
	"datainsight/internal/state"
	"datainsight/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	ServiceName    = "Data Insight Generator API"
	ServiceVersion = "1.0.0"

	// multipartOverhead is allowed on top of the file limit for form fields
	multipartOverhead = 1 << 20
)

// Options are the upload limits applied by the handlers
type Options struct {
	MaxUploadSizeMB      int
	SampleThresholdBytes int64
}

func (o Options) maxUploadBytes() int64 {
	return int64(o.MaxUploadSizeMB) << 20
}

type Handler struct {
	Processor  *analysis.Processor
	Datasets   *state.DatasetStore
	History    *state.HistoryStore
	Recorder   *service.HistoryRecorder
	Dispatcher *service.Dispatcher
	Providers  *llm.Registry
	Files      *storage.FileStore
	CurrentDB  service.DataSource // Active DB connection
	Options    Options

	validate *validator.Validate
}

func NewHandler(
	processor *analysis.Processor,
	datasets *state.DatasetStore,
	history *state.HistoryStore,
	recorder *service.HistoryRecorder,
	dispatcher *service.Dispatcher,
	providers *llm.Registry,
	files *storage.FileStore,
	db service.DataSource,
	opts Options,
) *Handler {
	return &Handler{
		Processor:  processor,
		Datasets:   datasets,
		History:    history,
		Recorder:   recorder,
		Dispatcher: dispatcher,
		Providers:  providers,
		Files:      files,
		CurrentDB:  db,
		Options:    opts,
		validate:   validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/health", h.HealthCheck)
	r.Get("/api/info", h.Info)

	r.Route("/api/datasets", func(r chi.Router) {
		r.Post("/upload", h.UploadDataset)
		r.Get("/{datasetID}", h.GetDataset)
		r.Delete("/{datasetID}", h.DeleteDataset)
	})

	r.Route("/api/queries", func(r chi.Router) {
		r.Post("/", h.CreateQuery)
		r.Get("/history/{sessionID}", h.GetHistory)
		r.Delete("/history/{sessionID}", h.ClearHistory)
	})

	// DB Routes
	r.Post("/api/db/connect", h.ConnectDB)
	r.Get("/api/db/tables", h.ListTables)
	r.Post("/api/db/analyze", h.AnalyzeTable)
}

// ============================================================================
// Health
// ============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": ServiceVersion})
}

func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	types := make([]string, len(analysis.SupportedExtensions))
	for i, ext := range analysis.SupportedExtensions {
		types[i] = strings.TrimPrefix(ext, ".")
	}
	writeJSON(w, http.StatusOK, models.InfoResponse{
		Name:                 ServiceName,
		Version:              ServiceVersion,
		LLMProviders:         h.Providers.Names(),
		SupportedFileTypes:   types,
		UnsupportedFileTypes: []string{strings.TrimPrefix(analysis.LegacyExcelExtension, ".")},
		MaxFileSizeMB:        h.Options.MaxUploadSizeMB,
	})
}

// ============================================================================
// Datasets
// ============================================================================

// UploadDataset stores, profiles and registers an uploaded file
func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.Options.maxUploadBytes()
	tooLarge := fmt.Sprintf("File too large. Maximum size is %d MB", h.Options.MaxUploadSizeMB)

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !analysis.IsSupported(header.Filename) {
		msg := "Unsupported file type. Supported types: CSV, Excel (.xlsx), JSON"
		if ext == analysis.LegacyExcelExtension {
			msg = "Legacy Excel (.xls) files are not supported, save the workbook as .xlsx. Supported types: CSV, Excel (.xlsx), JSON"
		}
		writeError(w, http.StatusUnsupportedMediaType, msg)
		return
	}

	id, path, size, err := h.Files.Save(file, ext, maxBytes)
	if errors.Is(err, storage.ErrFileTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	if err != nil {
		log.WithFields(log.Fields{"error": err.Error(), "event": "upload_save_failed"}).Error("Failed to save upload")
		writeError(w, http.StatusInternalServerError, "Failed to save file")
		return
	}

	mode := analysis.ModeFull
	if h.Options.SampleThresholdBytes > 0 && size > h.Options.SampleThresholdBytes {
		mode = analysis.ModeSample
	}

	preview, err := h.Processor.Process(r.Context(), path, mode)
	if err != nil {
		h.Files.Remove(path)
		writeError(w, statusForReadError(err), fmt.Sprintf("Failed to process dataset: %v", err))
		return
	}

	name := r.FormValue("dataset_name")
	if name == "" {
		name = header.Filename
	}
	d := &models.Dataset{
		ID:               id,
		Name:             name,
		OriginalFilename: header.Filename,
		FilePath:         path,
		FileType:         strings.TrimPrefix(ext, "."),
		FileSize:         size,
		UploadedAt:       time.Now(),
		Columns:          preview.Columns,
		RowCount:         preview.TotalRows,
		PreviewRows:      preview.PreviewRows,
		Stats:            preview.ColumnStats,
		Sampled:          preview.Sampled,
	}
	h.Datasets.Put(d)
	h.Files.ScheduleSweep()

	log.WithFields(log.Fields{
		"dataset_id": d.ID,
		"file":       header.Filename,
		"rows":       d.RowCount,
		"event":      "dataset_registered",
	}).Info("Dataset registered")

	writeJSON(w, http.StatusOK, models.NewDatasetResponse(d))
}

func statusForReadError(err error) int {
	var ue *analysis.UnsupportedFormatError
	var re *analysis.ReadError
	switch {
	case errors.As(err, &ue):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &re):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	d, err := h.Datasets.Resolve(chi.URLParam(r, "datasetID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	if d.FilePath != "" {
		if _, err := os.Stat(d.FilePath); err != nil {
			writeError(w, http.StatusNotFound, "Dataset file no longer available")
			return
		}
	}
	writeJSON(w, http.StatusOK, models.NewDatasetResponse(d))
}

func (h *Handler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	d, err := h.Datasets.Delete(chi.URLParam(r, "datasetID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Dataset not found")
		return
	}
	if d.FilePath != "" {
		if err := h.Files.Remove(d.FilePath); err != nil {
			log.WithFields(log.Fields{
				"dataset_id": d.ID,
				"error":      err.Error(),
				"event":      "dataset_file_delete_failed",
			}).Warn("Failed to delete dataset file")
		}
	}
	log.WithFields(log.Fields{"dataset_id": d.ID, "event": "dataset_deleted"}).Info("Dataset deleted")
	writeJSON(w, http.StatusOK, models.StatusResponse{Status: "success", Message: "Dataset deleted"})
}

// ============================================================================
// Queries
// ============================================================================

type queryPayload struct {
	Query            string `json:"query" validate:"required"`
	DatasetID        string `json:"dataset_id"`
	LLMProvider      string `json:"llm_provider"`
	EnableFallback   *bool  `json:"enable_fallback"`
	FallbackProvider string `json:"fallback_provider"`
	QueryType        string `json:"query_type"`
	SessionID        string `json:"session_id" validate:"required"`
}

func (p queryPayload) toRequest() models.QueryRequest {
	req := models.QueryRequest{
		Query:            p.Query,
		DatasetID:        p.DatasetID,
		Provider:         p.LLMProvider,
		EnableFallback:   true,
		FallbackProvider: p.FallbackProvider,
		QueryType:        p.QueryType,
		SessionID:        p.SessionID,
	}
	if req.Provider == "" {
		req.Provider = llm.Gemini
	}
	if req.FallbackProvider == "" {
		req.FallbackProvider = llm.DeepSeek
	}
	if p.EnableFallback != nil {
		req.EnableFallback = *p.EnableFallback
	}
	return req
}

// CreateQuery answers a question, optionally about a dataset
func (h *Handler) CreateQuery(w http.ResponseWriter, r *http.Request) {
	var payload queryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	req := payload.toRequest()
	result, err := h.Dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		var uerr *llm.UnknownProviderError
		if errors.As(err, &uerr) {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Unsupported LLM provider: %s. Supported providers: %s", uerr.Provider, strings.Join(h.Providers.Names(), ", ")))
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.Recorder.Record(req.SessionID, result)
	writeJSON(w, http.StatusOK, result)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fmt.Sprintf("%s is %s", strings.ToLower(fe.Field()), fe.Tag())
	}
	return "Invalid request: " + strings.Join(fields, ", ")
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.History.Get(chi.URLParam(r, "sessionID")))
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.History.Clear(chi.URLParam(r, "sessionID"))
	writeJSON(w, http.StatusOK, models.StatusResponse{Status: "success", Message: "Query history cleared"})
}

// ============================================================================
// Database
// ============================================================================

// ConnectDB establishes a database connection
func (h *Handler) ConnectDB(w http.ResponseWriter, r *http.Request) {
	var config models.DataSourceConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.CurrentDB.Connect(r.Context(), config); err != nil {
		if errors.Is(err, service.ErrUnsupportedDB) {
			writeError(w, http.StatusBadRequest, "Only postgres is supported currently")
			return
		}
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to connect: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

// ListTables returns tables from connected DB
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.CurrentDB.ListTables(r.Context())
	if errors.Is(err, service.ErrNotConnected) {
		writeError(w, http.StatusBadRequest, "No database connection")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error listing tables: %v", err))
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// AnalyzeTable profiles a bounded sample of a table and registers it
func (h *Handler) AnalyzeTable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TableName   string `json:"table_name" validate:"required"`
		DatasetName string `json:"dataset_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	tbl, err := h.CurrentDB.ReadTable(r.Context(), req.TableName, analysis.SampleRows)
	switch {
	case errors.Is(err, service.ErrNotConnected):
		writeError(w, http.StatusBadRequest, "No database connection")
		return
	case errors.Is(err, service.ErrUnknownTable):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Error fetching data: %v", err))
		return
	}

	preview, err := h.Processor.ProcessTable(r.Context(), tbl)
	if err != nil {
		writeError(w, statusForReadError(err), fmt.Sprintf("Error analyzing data: %v", err))
		return
	}
	preview.Sampled = true

	name := req.DatasetName
	if name == "" {
		name = req.TableName
	}
	d := &models.Dataset{
		ID:               uuid.NewString(),
		Name:             name,
		OriginalFilename: req.TableName,
		FileType:         "postgres",
		UploadedAt:       time.Now(),
		Columns:          preview.Columns,
		RowCount:         preview.TotalRows,
		PreviewRows:      preview.PreviewRows,
		Stats:            preview.ColumnStats,
		Sampled:          true,
	}
	h.Datasets.Put(d)

	log.WithFields(log.Fields{
		"dataset_id": d.ID,
		"table":      req.TableName,
		"rows":       d.RowCount,
		"event":      "dataset_registered",
	}).Info("Table registered as dataset")

	writeJSON(w, http.StatusOK, models.NewDatasetResponse(d))
}

// ============================================================================
// Helpers
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithFields(log.Fields{"error": err.Error(), "event": "encode_failed"}).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, models.ErrorResponse{Detail: detail})
}
