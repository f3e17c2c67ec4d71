package pipeline

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dgallion1/docslot/internal/engine"
)

// JobStatus represents the state of a processing job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Mode selects where slot values come from.
type Mode string

const (
	// ModeAuto runs the full pipeline: literals from the supplied values,
	// highlights from the generator.
	ModeAuto Mode = "auto"
	// ModeManual fills slots from the supplied values only.
	ModeManual Mode = "manual"
	// ModeAI fills slots from values the document generator derives from
	// the document text.
	ModeAI Mode = "ai"
)

// ParseMode accepts the mode names case-insensitively; "" is auto.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "manual":
		return ModeManual, nil
	case "ai", "aigenerated", "ai_generated":
		return ModeAI, nil
	}
	return "", fmt.Errorf("invalid processing mode %q", s)
}

// ParseInputs decodes caller-supplied values. Both the structured form
// {"values": {...}, "records": [...], "table_id": "..."} and a flat object
// of tag to value are accepted.
func ParseInputs(s string) (engine.Inputs, error) {
	var in engine.Inputs
	s = strings.TrimSpace(s)
	if s == "" {
		return in, nil
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &keys); err != nil {
		return in, fmt.Errorf("custom json: %w", err)
	}
	_, hasValues := keys["values"]
	_, hasRecords := keys["records"]
	_, hasTable := keys["table_id"]
	if hasValues || hasRecords || hasTable {
		if err := json.Unmarshal([]byte(s), &in); err != nil {
			return in, fmt.Errorf("custom json: %w", err)
		}
		return in, nil
	}
	flat := make(map[string]string, len(keys))
	if err := json.Unmarshal([]byte(s), &flat); err != nil {
		return in, fmt.Errorf("custom json: values must be strings: %w", err)
	}
	in.Values = flat
	return in, nil
}

// Job tracks the state of a single document.
type Job struct {
	mu sync.Mutex

	ID       string    `json:"job_id"`
	FileName string    `json:"file_name"`
	Mode     Mode      `json:"mode"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`

	ContentHash string     `json:"content_hash,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Internal: not serialized.
	fileData   []byte
	inputs     engine.Inputs
	outputID   string
	outputName string
	violations int
	stats      engine.Stats
	errMsg     string
}

// NewJob creates a queued job for one uploaded document.
func NewJob(fileName string, mode Mode, data []byte, in engine.Inputs) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          ulid.Make().String(),
		FileName:    fileName,
		Mode:        mode,
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		fileData:    data,
		inputs:      in,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed with msg.
func (j *Job) Fail(phase, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.Phase = phase
	j.errMsg = msg
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// Complete records the stored output and marks the job completed.
func (j *Job) Complete(outputID, outputName string, violations int, stats engine.Stats) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.Phase = "done"
	j.outputID = outputID
	j.outputName = outputName
	j.violations = violations
	j.stats = stats
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.fileData = nil
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// Inputs returns the caller-supplied values.
func (j *Job) Inputs() engine.Inputs {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inputs
}

// Output returns the stored output id and file name; both are empty until
// the job completes.
func (j *Job) Output() (id, name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outputID, j.outputName
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID           string        `json:"job_id"`
	FileName     string        `json:"file_name"`
	Mode         Mode          `json:"mode"`
	Status       JobStatus     `json:"status"`
	Phase        string        `json:"phase"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	OutputName   string        `json:"output_name,omitempty"`
	Violations   int           `json:"violations"`
	Stats        *engine.Stats `json:"stats,omitempty"`
	DownloadURL  string        `json:"download_url,omitempty"`
	PreviewURL   string        `json:"preview_url,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := JobSnapshot{
		ID:           j.ID,
		FileName:     j.FileName,
		Mode:         j.Mode,
		Status:       j.Status,
		Phase:        j.Phase,
		CreatedAt:    j.CreatedAt,
		CompletedAt:  j.CompletedAt,
		ErrorMessage: j.errMsg,
		OutputName:   j.outputName,
		Violations:   j.violations,
	}
	if j.Status == StatusCompleted {
		stats := j.stats
		snap.Stats = &stats
		snap.DownloadURL = fmt.Sprintf("/api/documents/jobs/%s/download", j.ID)
		snap.PreviewURL = fmt.Sprintf("/api/documents/jobs/%s/preview", j.ID)
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
