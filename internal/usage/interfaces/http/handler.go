package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"loadprofile/internal/audit"
	"loadprofile/internal/auth"
	"loadprofile/internal/observability/metrics"
	"loadprofile/internal/usage/application"
	usage "loadprofile/internal/usage/domain"
	"loadprofile/internal/usage/infrastructure/holiday"
	"loadprofile/internal/usage/infrastructure/source"
	"loadprofile/internal/usage/interfaces/export"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"
	contentTypeJSON = "application/json"

	defaultMaxUpload = 32 << 20
)

// HolidayStore persists the public holiday calendar.
type HolidayStore interface {
	Upsert(ctx context.Context, entries []holiday.Entry) error
	LoadCalendar(ctx context.Context) (*holiday.Calendar, error)
}

// Option configures the handler.
type Option func(*Handler)

// WithSourceOptions sets how uploaded files are read.
func WithSourceOptions(opts source.Options) Option {
	return func(h *Handler) { h.sourceOpts = opts }
}

// WithMaxUploadBytes limits multipart bodies.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// WithHolidays exposes the calendar; store may be nil for a read-only calendar.
func WithHolidays(calendar *holiday.Dynamic, store HolidayStore) Option {
	return func(h *Handler) {
		h.calendar = calendar
		h.holidayStore = store
	}
}

// WithAuditLogger records runs, exports and holiday changes.
func WithAuditLogger(logger audit.Logger) Option {
	return func(h *Handler) { h.auditLogger = logger }
}

// WithLogger sets the handler logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// Handler serves the summary API.
type Handler struct {
	service      *application.SummaryService
	writer       *export.TemplateWriter
	sourceOpts   source.Options
	maxUpload    int64
	calendar     *holiday.Dynamic
	holidayStore HolidayStore
	auditLogger  audit.Logger
	logger       *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *application.SummaryService, writer *export.TemplateWriter, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, errors.New("summary handler: nil service")
	}
	if writer == nil {
		return nil, errors.New("summary handler: nil writer")
	}
	h := &Handler{service: service, writer: writer, maxUpload: defaultMaxUpload}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes mounts the API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/summaries", h.handleCreate)
		r.Get("/summaries/{id}", h.handleGet)
		r.Get("/summaries/{id}/export.{format}", h.handleExport)
		r.Get("/holidays", h.handleListHolidays)
		r.Put("/holidays", h.handlePutHolidays)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	format := strings.ToLower(r.FormValue("format"))
	if format == "" {
		format = "xlsx"
	}
	if !validFormat(format) {
		http.Error(w, "format must be xlsx, json or pdf", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, usage.ErrNoBatches.Error(), http.StatusBadRequest)
		return
	}
	loader := source.NewLoader(h.sourceOpts)
	var batches []usage.Batch
	for _, fh := range files {
		read, err := loadPart(loader, fh)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		batches = append(batches, read...)
	}

	res, err := h.service.Run(r.Context(), batches)
	switch {
	case errors.Is(err, usage.ErrNoBatches):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.logf("summary run failed: err=%v", err)
		http.Error(w, "summary run failed", http.StatusInternalServerError)
		return
	}

	meta, _ := json.Marshal(map[string]any{
		"files":   len(files),
		"format":  format,
		"stats":   res.Stats,
		"batches": decisionsMeta(res.Decisions),
	})
	h.logAudit(r, audit.ActionSummaryRun, res.RunID, meta)

	w.Header().Set("X-Summary-Run-ID", res.RunID)
	w.Header().Set("X-Summary-Warnings", fmt.Sprintf("%d", len(res.Warnings)))
	h.render(w, res, format)
}

func loadPart(loader *source.Loader, fh *multipart.FileHeader) ([]usage.Batch, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return loader.Load(fh.Filename, f)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	res, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	h.render(w, res, "json")
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(chi.URLParam(r, "format"))
	if format != "xlsx" && format != "pdf" {
		http.Error(w, "export format must be xlsx or pdf", http.StatusNotFound)
		return
	}
	res, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	meta, _ := json.Marshal(map[string]string{"format": format})
	h.logAudit(r, audit.ActionSummaryExport, res.RunID, meta)
	h.render(w, res, format)
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*application.Result, bool) {
	res, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, application.ErrHistoryDisabled):
		http.Error(w, "run history is not configured", http.StatusNotImplemented)
		return nil, false
	case errors.Is(err, application.ErrRunNotFound):
		http.Error(w, "run not found", http.StatusNotFound)
		return nil, false
	case err != nil:
		h.logf("summary load failed: err=%v", err)
		http.Error(w, "load run failed", http.StatusInternalServerError)
		return nil, false
	}
	return res, true
}

func (h *Handler) render(w http.ResponseWriter, res *application.Result, format string) {
	switch format {
	case "json":
		start := time.Now()
		w.Header().Set("Content-Type", contentTypeJSON)
		err := json.NewEncoder(w).Encode(export.NewReport(res))
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveExport("json", result, time.Since(start))
	case "pdf":
		data, err := export.BuildSummaryPDF(res)
		if err != nil {
			h.logf("summary pdf failed: run=%s err=%v", res.RunID, err)
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		writeAttachment(w, contentTypePDF, "summary-"+res.RunID+".pdf", data)
	default:
		var buf bytes.Buffer
		if err := h.writer.Write(res, &buf); err != nil {
			h.logf("summary xlsx failed: run=%s err=%v", res.RunID, err)
			http.Error(w, "export failed", http.StatusInternalServerError)
			return
		}
		writeAttachment(w, contentTypeXLSX, "summary-"+res.RunID+".xlsx", buf.Bytes())
	}
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type holidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

type holidaysDoc struct {
	Holidays []holidayDTO `json:"holidays"`
}

func (h *Handler) handleListHolidays(w http.ResponseWriter, r *http.Request) {
	doc := holidaysDoc{Holidays: []holidayDTO{}}
	if h.calendar != nil {
		for _, e := range h.calendar.Current().Entries() {
			doc.Holidays = append(doc.Holidays, holidayDTO{Date: e.Date.Format("2006-01-02"), Name: e.Name})
		}
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	_ = json.NewEncoder(w).Encode(doc)
}

func (h *Handler) handlePutHolidays(w http.ResponseWriter, r *http.Request) {
	if h.holidayStore == nil || h.calendar == nil {
		http.Error(w, "holiday storage is not configured", http.StatusNotImplemented)
		return
	}
	var doc holidaysDoc
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&doc); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	entries := make([]holiday.Entry, 0, len(doc.Holidays))
	for _, item := range doc.Holidays {
		date, err := time.Parse("2006-01-02", item.Date)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid date %q", item.Date), http.StatusBadRequest)
			return
		}
		entries = append(entries, holiday.Entry{Date: date, Name: item.Name})
	}
	if err := h.holidayStore.Upsert(r.Context(), entries); err != nil {
		h.logf("holiday upsert failed: err=%v", err)
		http.Error(w, "holiday update failed", http.StatusInternalServerError)
		return
	}
	cal, err := h.holidayStore.LoadCalendar(r.Context())
	if err != nil {
		h.logf("holiday reload failed: err=%v", err)
		http.Error(w, "holiday reload failed", http.StatusInternalServerError)
		return
	}
	h.calendar.Set(cal)

	meta, _ := json.Marshal(map[string]int{"holidays": len(entries)})
	h.logAudit(r, audit.ActionHolidayUpdate, "", meta)
	h.handleListHolidays(w, r)
}

func (h *Handler) logAudit(r *http.Request, action, resourceID string, meta []byte) {
	if h.auditLogger == nil {
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     identity.TenantID,
		Actor:        identity.Subject,
		Role:         string(identity.Role),
		Action:       action,
		ResourceType: "summary_run",
		ResourceID:   resourceID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.logf("audit log failed: action=%s err=%v", action, err)
	}
}

func (h *Handler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

func validFormat(format string) bool {
	switch format {
	case "xlsx", "json", "pdf":
		return true
	default:
		return false
	}
}

func decisionsMeta(decisions []usage.Decision) []map[string]string {
	out := make([]map[string]string, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, map[string]string{"batch": d.BatchID, "outcome": string(d.Outcome)})
	}
	return out
}
