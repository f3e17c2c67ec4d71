package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docslot/internal/config"
	"github.com/dgallion1/docslot/internal/container"
	"github.com/dgallion1/docslot/internal/doctree"
	"github.com/dgallion1/docslot/internal/engine"
	"github.com/dgallion1/docslot/internal/generate"
	"github.com/dgallion1/docslot/internal/pipeline"
	"github.com/dgallion1/docslot/internal/store"
)

const testKey = "secret"

func newTestServer(t *testing.T, llm generate.Instrumented) (*Server, *pipeline.Orchestrator) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Config{
		DocslotAPIKey:  testKey,
		WorkerCount:    1,
		MaxQueueSize:   8,
		MaxUploadBytes: 10 << 20,
		JobTTL:         time.Hour,
	}
	gen := &generate.Static{Values: map[string]string{"ClientName": "Generated Co"}}
	eng := engine.New(generate.BracketMapper{}, gen, log, engine.Options{})
	orch := pipeline.NewOrchestrator(cfg, eng, st, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, llm, log, cfg), orch
}

func sampleDoc(t *testing.T) []byte {
	t.Helper()
	doc, err := container.Sample()
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	return doc
}

func bodyText(t *testing.T, doc []byte) string {
	t.Helper()
	_, tree, err := container.Load(doc)
	if err != nil {
		t.Fatalf("load output: %v", err)
	}
	return doctree.InnerText(tree.Body())
}

type upload struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, path, field string, files []upload, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(field, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(f.data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testKey)
	return req
}

func authed(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return m
}

func waitCompleted(t *testing.T, orch *pipeline.Orchestrator, id string) pipeline.JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job := orch.GetJob(id); job != nil {
			snap := job.Snapshot()
			switch snap.Status {
			case pipeline.StatusCompleted:
				return snap
			case pipeline.StatusFailed:
				t.Fatalf("job failed: %s", snap.ErrorMessage)
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not complete", id)
	return pipeline.JobSnapshot{}
}

func TestHealth_NoAuth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decode(t, rec)["status"] != "ok" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestAuthMiddleware(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/documents/jobs/x", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing header: expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/documents/jobs/x", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = serve(s, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: expected 401, got %d", rec.Code)
	}
	if decode(t, rec)["error"] != "invalid api key" {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestUpload_RejectsNonDocx(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := serve(s, multipartRequest(t, "/api/documents/upload", "file", []upload{{"notes.txt", []byte("hi")}}, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(decode(t, rec)["error"].(string), "unsupported file type") {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestUpload_RejectsBadOptions(t *testing.T) {
	s, _ := newTestServer(t, nil)
	files := []upload{{"review.docx", sampleDoc(t)}}

	rec := serve(s, multipartRequest(t, "/api/documents/upload", "file", files, map[string]string{"processing_mode": "bulk"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad mode: expected 400, got %d", rec.Code)
	}
	rec = serve(s, multipartRequest(t, "/api/documents/upload", "file", files, map[string]string{"custom_json": "{"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad custom_json: expected 400, got %d", rec.Code)
	}
}

func TestUpload_DownloadAndPreview(t *testing.T) {
	s, orch := newTestServer(t, nil)
	req := multipartRequest(t, "/api/documents/upload", "file", []upload{{"review.docx", sampleDoc(t)}}, map[string]string{
		"processing_mode": "auto",
		"custom_json":     `{"ClientName": "Acme Corp"}`,
	})
	rec := serve(s, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	jobID := body["job_id"].(string)
	if body["poll_url"] != "/api/documents/jobs/"+jobID {
		t.Errorf("unexpected poll url %v", body["poll_url"])
	}

	snap := waitCompleted(t, orch, jobID)

	rec = serve(s, authed(http.MethodGet, "/api/documents/jobs/"+jobID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d", rec.Code)
	}
	status := decode(t, rec)
	if status["status"] != string(pipeline.StatusCompleted) || status["download_url"] != snap.DownloadURL {
		t.Errorf("unexpected snapshot %s", rec.Body.String())
	}

	rec = serve(s, authed(http.MethodGet, snap.DownloadURL, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != docxContentType {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "review_Processed_") {
		t.Errorf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if text := bodyText(t, rec.Body.Bytes()); !strings.Contains(text, "Annual Review for Acme Corp") {
		t.Errorf("client name not injected: %q", text)
	}

	rec = serve(s, authed(http.MethodGet, snap.PreviewURL, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("preview: expected 200, got %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "Acme Corp") {
		t.Error("preview should contain the injected value")
	}
}

func TestJobEndpoints_NotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, path := range []string{"/api/documents/jobs/missing", "/api/documents/jobs/missing/download", "/api/documents/jobs/missing/preview"} {
		if rec := serve(s, authed(http.MethodGet, path, nil)); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestBatch_MixedFiles(t *testing.T) {
	s, orch := newTestServer(t, nil)
	files := []upload{
		{"one.docx", sampleDoc(t)},
		{"notes.txt", []byte("not a document")},
		{"two.docx", sampleDoc(t)},
	}
	rec := serve(s, multipartRequest(t, "/api/documents/batch", "files", files, map[string]string{"processing_mode": "manual"}))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Jobs []struct {
			FileName string `json:"file_name"`
			JobID    string `json:"job_id"`
			Error    string `json:"error"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Jobs) != 3 {
		t.Fatalf("expected 3 results, got %d", len(body.Jobs))
	}
	if body.Jobs[1].Error == "" || body.Jobs[1].JobID != "" {
		t.Errorf("expected the text file to be rejected, got %+v", body.Jobs[1])
	}
	for _, i := range []int{0, 2} {
		if body.Jobs[i].JobID == "" {
			t.Fatalf("expected a job for %s", body.Jobs[i].FileName)
		}
		waitCompleted(t, orch, body.Jobs[i].JobID)
	}
}

func analyze(t *testing.T, s *Server) string {
	t.Helper()
	rec := serve(s, multipartRequest(t, "/api/documents/analyze", "file", []upload{{"review.docx", sampleDoc(t)}}, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("analyze: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	placeholders, ok := body["placeholders"].(map[string]any)
	if !ok {
		t.Fatalf("missing placeholders in %s", rec.Body.String())
	}
	if placeholders["ClientName"] != "[CLIENT_NAME]" {
		t.Errorf("unexpected placeholders %v", placeholders)
	}
	return body["id"].(string)
}

func TestAnalyzeAndProcess_Manual(t *testing.T) {
	s, _ := newTestServer(t, nil)
	id := analyze(t, s)

	req := authed(http.MethodPost, "/api/documents/process/"+id, strings.NewReader(`{"mode":"manual","values":{"ClientName":"Manual Co"}}`))
	rec := serve(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("process: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Docslot-Output-Id") == "" {
		t.Error("expected output id header")
	}
	if text := bodyText(t, rec.Body.Bytes()); !strings.Contains(text, "Annual Review for Manual Co") {
		t.Errorf("client name not injected: %q", text)
	}
}

func TestAnalyzeAndProcess_AI(t *testing.T) {
	s, _ := newTestServer(t, nil)
	id := analyze(t, s)

	rec := serve(s, authed(http.MethodPost, "/api/documents/process/"+id, strings.NewReader(`{"mode":"ai"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("process: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if text := bodyText(t, rec.Body.Bytes()); !strings.Contains(text, "Annual Review for Generated Co") {
		t.Errorf("generated value not injected: %q", text)
	}
}

func TestProcess_Errors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := serve(s, authed(http.MethodPost, "/api/documents/process/missing", strings.NewReader(`{}`)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown analysis: expected 404, got %d", rec.Code)
	}

	id := analyze(t, s)
	rec = serve(s, authed(http.MethodPost, "/api/documents/process/"+id, strings.NewReader(`{"mode":"auto"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("auto mode: expected 400, got %d", rec.Code)
	}
	rec = serve(s, authed(http.MethodPost, "/api/documents/process/"+id, strings.NewReader(`not json`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: expected 400, got %d", rec.Code)
	}
}

func TestAnalyze_CorruptDocument(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := serve(s, multipartRequest(t, "/api/documents/analyze", "file", []upload{{"broken.docx", []byte("not a zip")}}, nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLLMStats(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if rec := serve(s, authed(http.MethodGet, "/api/stats/llm", nil)); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("static generator: expected 503, got %d", rec.Code)
	}

	client := generate.NewClaudeClient("key", "claude-test")
	defer client.Close()
	client.Stats().Record(generate.OpFreeText, 120)

	s, _ = newTestServer(t, client)
	rec := serve(s, authed(http.MethodGet, "/api/stats/llm", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["model"] != "claude-test" {
		t.Errorf("unexpected model %v", body["model"])
	}
	byOp, _ := body["by_operation"].(map[string]any)
	if _, ok := byOp[generate.OpFreeText]; !ok {
		t.Errorf("expected free_text stats, got %v", body["by_operation"])
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"review.docx":           "review.docx",
		"../../etc/passwd.docx": "passwd.docx",
		`C:\Users\me\plan.docx`: "plan.docx",
		"":                      "unnamed",
		"a..b.docx":             "a_b.docx",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
