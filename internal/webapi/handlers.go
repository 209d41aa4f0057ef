// Package webapi is the JSON API behind the review dashboard.
package webapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kensa-dev/kensa/internal/mathtex"
)

// Version is set at build time or defaults to dev.
var Version = "0.2.0"

// maxUploadBytes caps import request bodies.
const maxUploadBytes = 256 << 20

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	store SessionStore
}

// NewHandlers creates a new Handlers with the given store.
func NewHandlers(store SessionStore) *Handlers {
	return &Handlers{store: store}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version})
}

// HandleSession returns the working-set headline counters.
func (h *Handlers) HandleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Info())
}

// HandleRecords returns summaries for every record in order.
func (h *Handlers) HandleRecords(w http.ResponseWriter, _ *http.Request) {
	records := h.store.ListRecords()
	if records == nil {
		records = []RecordSummary{}
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleRecordDetail returns one record with its rendered view tree.
func (h *Handlers) HandleRecordDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "record id is required")
		return
	}
	detail, err := h.store.GetRecord(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleUpdateFields merges top-level field values into a record.
func (h *Handlers) HandleUpdateFields(w http.ResponseWriter, r *http.Request) {
	var req FieldsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Fields) == 0 {
		writeError(w, http.StatusBadRequest, "fields are required")
		return
	}
	if err := h.store.UpdateFields(r.PathValue("id"), req.Fields); err != nil {
		writeStoreError(w, err)
		return
	}
	h.HandleRecordDetail(w, r)
}

// HandleEdit applies one path-addressed edit to a record payload.
func (h *Handlers) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.store.ApplyEdit(r.PathValue("id"), req); err != nil {
		writeStoreError(w, err)
		return
	}
	h.HandleRecordDetail(w, r)
}

// HandleDelete soft-deletes a record.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteRecord(r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SelectionResponse{ID: h.store.Selection()})
}

// HandleRestore reverses a soft delete.
func (h *Handlers) HandleRestore(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RestoreRecord(r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SelectionResponse{ID: h.store.Selection()})
}

// HandleGetSelection returns the selected record id.
func (h *Handlers) HandleGetSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SelectionResponse{ID: h.store.Selection()})
}

// HandleSetSelection changes the selected record.
func (h *Handlers) HandleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.store.SetSelection(req.ID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SelectionResponse{ID: req.ID})
}

// HandleStats returns the eval dashboard aggregates.
func (h *Handlers) HandleStats(w http.ResponseWriter, _ *http.Request) {
	resp, err := h.store.Stats()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStatsFields lists the groupable input fields.
func (h *Handlers) HandleStatsFields(w http.ResponseWriter, _ *http.Request) {
	fields, err := h.store.StatsFields()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if fields == nil {
		fields = []string{}
	}
	writeJSON(w, http.StatusOK, fields)
}

// HandleStatsGrouping returns the outcome breakdown for one input field.
func (h *Handlers) HandleStatsGrouping(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		writeError(w, http.StatusBadRequest, "field query parameter is required")
		return
	}
	g, err := h.store.StatsGrouping(field)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// HandleImportCSV loads a CSV document from the request body. The filename
// query parameter names the upload for later export.
func (h *Handlers) HandleImportCSV(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "upload.csv"
	}
	resp, err := h.store.ImportCSV(name, data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleImportSheet fetches and loads a published Google Sheet.
func (h *Handlers) HandleImportSheet(w http.ResponseWriter, r *http.Request) {
	var req ImportSheetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "sheet url is required")
		return
	}
	resp, err := h.store.ImportSheet(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleImportSQLite loads a SQLite database from the request body.
func (h *Handlers) HandleImportSQLite(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "upload.db"
	}
	resp, err := h.store.ImportSQLite(r.Context(), name, data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleImportTraces attaches a parquet trace file to the loaded eval set.
func (h *Handlers) HandleImportTraces(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "traces.parquet"
	}
	resp, err := h.store.ImportTraces(name, data)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRecordTrace returns the raw trace behind an eval record.
func (h *Handlers) HandleRecordTrace(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "record id is required")
		return
	}
	trace, err := h.store.GetTrace(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

// HandleExportCSV streams the eval working set as a CSV download.
func (h *Handlers) HandleExportCSV(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="reviewed.csv"`)
	if err := h.store.ExportCSV(w); err != nil {
		// Headers may already be sent; this only works before the first write.
		writeStoreError(w, err)
	}
}

// HandleExportSQLite streams the curate working set as a database download.
func (h *Handlers) HandleExportSQLite(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.ExportSQLite(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-sqlite3")
	w.Header().Set("Content-Disposition", `attachment; filename="curated.db"`)
	w.Write(data) //nolint:errcheck
}

// HandleClear drops the working set.
func (h *Handlers) HandleClear(w http.ResponseWriter, _ *http.Request) {
	if err := h.store.Clear(); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.store.Info())
}

// HandleRenderText renders critique text (markdown plus math markup) to
// HTML for display.
func (h *Handlers) HandleRenderText(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	html, err := mathtex.RenderMarkdown(req.Text)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RenderResponse{HTML: html})
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, store SessionStore) {
	h := NewHandlers(store)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/session", h.HandleSession)
	mux.HandleFunc("GET /api/records", h.HandleRecords)
	mux.HandleFunc("GET /api/records/{id}", h.HandleRecordDetail)
	mux.HandleFunc("PATCH /api/records/{id}/fields", h.HandleUpdateFields)
	mux.HandleFunc("POST /api/records/{id}/edits", h.HandleEdit)
	mux.HandleFunc("DELETE /api/records/{id}", h.HandleDelete)
	mux.HandleFunc("POST /api/records/{id}/restore", h.HandleRestore)
	mux.HandleFunc("GET /api/selection", h.HandleGetSelection)
	mux.HandleFunc("PUT /api/selection", h.HandleSetSelection)
	mux.HandleFunc("GET /api/stats", h.HandleStats)
	mux.HandleFunc("GET /api/stats/fields", h.HandleStatsFields)
	mux.HandleFunc("GET /api/stats/grouping", h.HandleStatsGrouping)
	mux.HandleFunc("POST /api/import/csv", h.HandleImportCSV)
	mux.HandleFunc("POST /api/import/sheet", h.HandleImportSheet)
	mux.HandleFunc("POST /api/import/sqlite", h.HandleImportSQLite)
	mux.HandleFunc("POST /api/import/traces", h.HandleImportTraces)
	mux.HandleFunc("GET /api/records/{id}/trace", h.HandleRecordTrace)
	mux.HandleFunc("GET /api/export.csv", h.HandleExportCSV)
	mux.HandleFunc("GET /api/export.db", h.HandleExportSQLite)
	mux.HandleFunc("POST /api/clear", h.HandleClear)
	mux.HandleFunc("POST /api/render", h.HandleRenderText)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeStoreError maps store errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrNoTrace):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoData):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrWrongMode):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
