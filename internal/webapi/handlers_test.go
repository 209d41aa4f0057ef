package webapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/kensa-dev/kensa/internal/models"
	"github.com/kensa-dev/kensa/internal/persist"
	"github.com/kensa-dev/kensa/internal/sheets"
)

const sampleCSV = `id,input,output,model_critique,model_outcome,human_critique,human_outcome,human_revised_response,agreement
A,"{""topic"":""sums""}","{""question"":""2+2?"",""answer"":""4""}",fine,PASS,,,,
B,"{""topic"":""sums""}","{""easy"":{""question"":""1+1?"",""answer"":""2""},""medium"":{""question"":""3+3?"",""answer"":""6""}}",,FAIL,,FAIL,,
C,"{""topic"":""shapes""}","{""question"":""sides of a square?"",""answer"":""4""}",,PASS,,PASS,,
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := NewSession(persist.NewStore(t.TempDir()), sheets.New(), logger)

	mux := http.NewServeMux()
	RegisterRoutes(mux, session)
	srv := httptest.NewServer(CORSMiddleware(mux))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func importSample(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp := do(t, http.MethodPost, srv.URL+"/api/import/csv?filename=batch.csv", sampleCSV)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d", resp.StatusCode)
	}
	ir := decode[ImportResponse](t, resp)
	if ir.Count != 3 || ir.Mode != "eval" {
		t.Fatalf("import response = %+v", ir)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	hr := decode[HealthResponse](t, resp)
	if hr.Status != "ok" {
		t.Fatalf("health = %+v", hr)
	}
}

func TestImportAndListRecords(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	resp := do(t, http.MethodGet, srv.URL+"/api/records", nil)
	records := decode[[]RecordSummary](t, resp)
	if len(records) != 3 || records[0].ID != "A" || records[0].ModelOutcome != "PASS" {
		t.Fatalf("records = %+v", records)
	}

	info := decode[SessionInfo](t, do(t, http.MethodGet, srv.URL+"/api/session", nil))
	if info.Mode != "eval" || info.Total != 3 || info.Filename != "batch.csv" || info.SelectedID != "A" {
		t.Fatalf("session = %+v", info)
	}
}

func TestRecordDetail_RendersView(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	detail := decode[RecordDetail](t, do(t, http.MethodGet, srv.URL+"/api/records/B", nil))
	if detail.Shape != "question_set" {
		t.Fatalf("shape = %q", detail.Shape)
	}
	if detail.View == nil {
		t.Fatal("no view tree")
	}
	found := false
	for _, leaf := range detail.View.Leaves() {
		if leaf.Path.String() == "easy.answer" && leaf.Value == "2" {
			found = true
		}
	}
	if !found {
		t.Fatal("easy.answer leaf missing from view tree")
	}
}

func TestRecordDetail_NotFound(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	resp := do(t, http.MethodGet, srv.URL+"/api/records/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestEdit_ThenDetailReflectsChange(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	resp := do(t, http.MethodPost, srv.URL+"/api/records/A/edits", EditRequest{
		Path:  []string{"answer"},
		Value: "five",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	detail := decode[RecordDetail](t, resp)
	if !detail.Modified {
		t.Fatal("record not marked modified")
	}

	var record struct {
		Output map[string]any `json:"output"`
	}
	if err := json.Unmarshal(detail.Record, &record); err != nil {
		t.Fatalf("unmarshaling record: %v", err)
	}
	if record.Output["answer"] != "five" {
		t.Fatalf("answer = %v", record.Output["answer"])
	}
}

func TestEdit_NoOpKeepsRecordClean(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	resp := do(t, http.MethodPost, srv.URL+"/api/records/A/edits", EditRequest{
		Path:  []string{"answer"},
		Value: "4",
	})
	detail := decode[RecordDetail](t, resp)
	if detail.Modified {
		t.Fatal("identical value marked the record modified")
	}
}

func TestEdit_BadPath(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	resp := do(t, http.MethodPost, srv.URL+"/api/records/A/edits", EditRequest{
		Path:  []string{"missing", "deep"},
		Value: "x",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestUpdateFields(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	resp := do(t, http.MethodPatch, srv.URL+"/api/records/A/fields", FieldsUpdateRequest{
		Fields: map[string]any{"human_outcome": "FAIL", "human_critique": "wrong"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	detail := decode[RecordDetail](t, resp)
	if detail.HumanOutcome != "FAIL" || !detail.Modified {
		t.Fatalf("detail = %+v", detail)
	}
}

func TestUpdateFields_InvalidOutcome(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	resp := do(t, http.MethodPatch, srv.URL+"/api/records/A/fields", FieldsUpdateRequest{
		Fields: map[string]any{"human_outcome": "MAYBE"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestDeleteAdvancesSelection_RestoreKeepsIt(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	sel := decode[SelectionResponse](t, do(t, http.MethodDelete, srv.URL+"/api/records/A", nil))
	if sel.ID != "B" {
		t.Fatalf("selection after delete = %q", sel.ID)
	}

	sel = decode[SelectionResponse](t, do(t, http.MethodPost, srv.URL+"/api/records/A/restore", nil))
	if sel.ID != "B" {
		t.Fatalf("selection after restore = %q", sel.ID)
	}

	records := decode[[]RecordSummary](t, do(t, http.MethodGet, srv.URL+"/api/records", nil))
	if records[0].Deleted {
		t.Fatal("record still deleted after restore")
	}
}

func TestSelectionRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	resp := do(t, http.MethodPut, srv.URL+"/api/selection", SelectionRequest{ID: "C"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	sel := decode[SelectionResponse](t, do(t, http.MethodGet, srv.URL+"/api/selection", nil))
	if sel.ID != "C" {
		t.Fatalf("selection = %q", sel.ID)
	}

	resp = do(t, http.MethodPut, srv.URL+"/api/selection", SelectionRequest{ID: "nope"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	resp := do(t, http.MethodGet, srv.URL+"/api/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	st := decode[StatsResponse](t, resp)
	if st.Overview.Total != 3 || st.Overview.Reviewed != 2 {
		t.Fatalf("overview = %+v", st.Overview)
	}
	if st.Distribution.Pass != 1 || st.Distribution.Fail != 1 || st.Distribution.Unlabeled != 1 {
		t.Fatalf("distribution = %+v", st.Distribution)
	}

	fields := decode[[]string](t, do(t, http.MethodGet, srv.URL+"/api/stats/fields", nil))
	if len(fields) != 1 || fields[0] != "topic" {
		t.Fatalf("fields = %v", fields)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/stats/grouping?field=topic", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("grouping status = %d", resp.StatusCode)
	}
}

func TestStats_EmptySession(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodGet, srv.URL+"/api/stats", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestExportCSV_RoundTrip(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	do(t, http.MethodDelete, srv.URL+"/api/records/C", nil)

	resp := do(t, http.MethodGet, srv.URL+"/api/export.csv", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	text := string(body)
	if !strings.Contains(text, "A") || strings.Contains(text, "sides of a square?") {
		t.Fatalf("export content wrong:\n%s", text)
	}
}

func TestExportSQLite_WrongMode(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	resp := do(t, http.MethodGet, srv.URL+"/api/export.db", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestClear(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	info := decode[SessionInfo](t, do(t, http.MethodPost, srv.URL+"/api/clear", nil))
	if info.Total != 0 || info.SelectedID != "" {
		t.Fatalf("session after clear = %+v", info)
	}
}

func TestRenderText(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, http.MethodPost, srv.URL+"/api/render", RenderRequest{Text: "The answer is $x^2$."})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	rr := decode[RenderResponse](t, resp)
	if !strings.Contains(rr.HTML, `math-inline`) {
		t.Fatalf("html = %q", rr.HTML)
	}
}

func traceFixture(t *testing.T, rows []models.TraceRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "batch.traces.parquet")
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("writing trace fixture: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading trace fixture: %v", err)
	}
	return string(data)
}

func TestImportTraces_ThenRecordTrace(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	body := traceFixture(t, []models.TraceRecord{
		{ID: "A", InputTrace: `{"messages":[{"role":"user","content":"2+2?"}]}`, OutputTrace: `{"response":"4"}`},
		{ID: "B", InputTrace: "", OutputTrace: "raw text"},
	})
	resp := do(t, http.MethodPost, srv.URL+"/api/import/traces?filename=batch.traces.parquet", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d", resp.StatusCode)
	}
	ir := decode[ImportResponse](t, resp)
	if ir.Count != 2 {
		t.Fatalf("import response = %+v", ir)
	}

	trace := decode[models.TraceRecord](t, do(t, http.MethodGet, srv.URL+"/api/records/A/trace", nil))
	if trace.OutputTrace != `{"response":"4"}` {
		t.Fatalf("trace = %+v", trace)
	}
}

func TestRecordTrace_NoTraceIs404(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	body := traceFixture(t, []models.TraceRecord{
		{ID: "A", InputTrace: "in", OutputTrace: "out"},
	})
	do(t, http.MethodPost, srv.URL+"/api/import/traces", body)

	// C exists but carries no trace row.
	resp := do(t, http.MethodGet, srv.URL+"/api/records/C/trace", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/api/records/nope/trace", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestImportTraces_NeedsLoadedEvalSet(t *testing.T) {
	srv := newTestServer(t)

	body := traceFixture(t, []models.TraceRecord{
		{ID: "A", InputTrace: "in", OutputTrace: "out"},
	})
	resp := do(t, http.MethodPost, srv.URL+"/api/import/traces", body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestImportCSV_DropsPriorTraces(t *testing.T) {
	srv := newTestServer(t)
	importSample(t, srv)

	body := traceFixture(t, []models.TraceRecord{
		{ID: "A", InputTrace: "in", OutputTrace: "out"},
	})
	do(t, http.MethodPost, srv.URL+"/api/import/traces", body)

	importSample(t, srv)
	resp := do(t, http.MethodGet, srv.URL+"/api/records/A/trace", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCORS_Preflight(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := NewSession(persist.NewStore(t.TempDir()), sheets.New(), logger)
	mux := http.NewServeMux()
	RegisterRoutes(mux, session)
	srv := httptest.NewServer(CORSMiddleware(mux, "http://localhost:3000"))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/records", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("allow-origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestSessionResume(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := persist.NewStore(dir)

	first := NewSession(store, sheets.New(), logger)
	if _, err := first.ImportCSV("batch.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if err := first.ApplyEdit("A", EditRequest{Path: []string{"answer"}, Value: "five"}); err != nil {
		t.Fatalf("ApplyEdit: %v", err)
	}

	second := NewSession(store, sheets.New(), logger)
	if !second.Resume(persist.ModeEval) {
		t.Fatal("no snapshot to resume")
	}
	detail, err := second.GetRecord("A")
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if !detail.Modified {
		t.Fatal("modified flag lost across sessions")
	}
}

func TestSessionResume_KeepsTraces(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := persist.NewStore(dir)

	first := NewSession(store, sheets.New(), logger)
	if _, err := first.ImportCSV("batch.csv", []byte(sampleCSV)); err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	fixture := traceFixture(t, []models.TraceRecord{
		{ID: "B", InputTrace: "in", OutputTrace: "out"},
	})
	if _, err := first.ImportTraces("batch.traces.parquet", []byte(fixture)); err != nil {
		t.Fatalf("ImportTraces: %v", err)
	}

	second := NewSession(store, sheets.New(), logger)
	if !second.Resume(persist.ModeEval) {
		t.Fatal("no snapshot to resume")
	}
	trace, err := second.GetTrace("B")
	if err != nil {
		t.Fatalf("GetTrace: %v", err)
	}
	if trace.OutputTrace != "out" {
		t.Fatalf("trace = %+v", trace)
	}
}
