package pipeline

import (
	"testing"
	"time"

	"github.com/dgallion1/docslot/internal/engine"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestNewJob(t *testing.T) {
	job := NewJob("review.docx", ModeManual, []byte("hello world"), engine.Inputs{Values: map[string]string{"A": "1"}})
	if len(job.ID) != 26 {
		t.Errorf("expected 26-char ULID, got %q", job.ID)
	}
	if job.Status != StatusQueued {
		t.Errorf("expected queued, got %q", job.Status)
	}
	if job.ContentHash != ContentHashHex([]byte("hello world")) {
		t.Errorf("unexpected content hash %q", job.ContentHash)
	}
	if job.Inputs().Values["A"] != "1" {
		t.Error("expected inputs to be kept")
	}
	if other := NewJob("x.docx", ModeAuto, nil, engine.Inputs{}); other.ID == job.ID {
		t.Error("expected distinct job ids")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("a.docx", ModeAI, []byte("data"), engine.Inputs{})

	for _, phase := range []string{"detecting", "generating", "injecting"} {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(StatusProcessing, phase)

		if job.Status != StatusProcessing {
			t.Errorf("expected status %q, got %q", StatusProcessing, job.Status)
		}
		if job.Phase != phase {
			t.Errorf("expected phase %q, got %q", phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", phase)
		}
	}

	job.Complete("out-1", "a_Processed_20250101_120000.docx", 2, engine.Stats{Injected: 3})
	snap := job.Snapshot()
	if snap.Status != StatusCompleted || snap.CompletedAt == nil {
		t.Fatalf("expected completed job with completion time, got %+v", snap)
	}
	if snap.DownloadURL != "/api/documents/jobs/"+job.ID+"/download" {
		t.Errorf("unexpected download url %q", snap.DownloadURL)
	}
	if snap.Stats == nil || snap.Stats.Injected != 3 || snap.Violations != 2 {
		t.Errorf("unexpected stats %+v", snap)
	}
	if id, name := job.Output(); id != "out-1" || name != "a_Processed_20250101_120000.docx" {
		t.Errorf("unexpected output %q %q", id, name)
	}
	if job.FileData() != nil {
		t.Error("expected file data released on completion")
	}
}

func TestJob_Fail(t *testing.T) {
	job := NewJob("a.docx", ModeAuto, nil, engine.Inputs{})
	job.Fail("generating", "generate: boom")

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, snap.Status)
	}
	if snap.ErrorMessage != "generate: boom" || snap.Phase != "generating" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.DownloadURL != "" || snap.Stats != nil {
		t.Error("failed job must not expose a download")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"", ModeAuto},
		{"Auto", ModeAuto},
		{"manual", ModeManual},
		{"AI", ModeAI},
		{"AIGenerated", ModeAI},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
	if _, err := ParseMode("bulk"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestParseInputs(t *testing.T) {
	flat, err := ParseInputs(`{"ClientName": "Acme Corp"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flat.Values["ClientName"] != "Acme Corp" {
		t.Errorf("unexpected flat inputs %+v", flat)
	}

	structured, err := ParseInputs(`{"values": {"ClientName": "Acme"}, "records": [{"PolicyType": "Cyber"}], "table_id": "tbl0"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if structured.Values["ClientName"] != "Acme" || len(structured.Records) != 1 || structured.TableID != "tbl0" {
		t.Errorf("unexpected structured inputs %+v", structured)
	}

	tableOnly, err := ParseInputs(`{"table_id": "tbl0"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tableOnly.TableID != "tbl0" || tableOnly.Values != nil {
		t.Errorf("expected table_id to select the structured form, got %+v", tableOnly)
	}

	empty, err := ParseInputs("  ")
	if err != nil || empty.Values != nil {
		t.Errorf("expected empty inputs, got %+v, %v", empty, err)
	}

	for _, bad := range []string{`[1,2]`, `{"A": 1}`, `{`} {
		if _, err := ParseInputs(bad); err == nil {
			t.Errorf("expected error for %s", bad)
		}
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestOutputName(t *testing.T) {
	at := time.Date(2025, 3, 7, 9, 5, 2, 0, time.UTC)
	if got := OutputName("/in/Annual Review.docx", at); got != "Annual Review_Processed_20250307_090502.docx" {
		t.Errorf("unexpected output name %q", got)
	}
}

func TestProcessable(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"review.docx", true},
		{"REVIEW.DOCX", true},
		{"~$review.docx", false},
		{"review_Processed_20250101_120000.docx", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		if got := Processable(tt.name); got != tt.want {
			t.Errorf("Processable(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
