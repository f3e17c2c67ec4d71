// Package engine runs the slot pipeline over one .docx document: normalize,
// map literals, tag slots, generate values, inject and validate.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docslot/internal/doctree"
	"github.com/dgallion1/docslot/internal/generate"
	"github.com/dgallion1/docslot/internal/inject"
	"github.com/dgallion1/docslot/internal/normalize"
	"github.com/dgallion1/docslot/internal/tagger"
	"github.com/dgallion1/docslot/internal/validate"
)

// ErrNoBody is returned for a document part without a w:body.
var ErrNoBody = doctree.ErrNoBody

// Stage names reported in StageError.
const (
	StageMapping  = "mapping"
	StageGenerate = "generate"
	StageDocument = "document"
)

// StageError wraps a collaborator failure with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// Options tunes an Engine. Zero values fall back to defaults.
type Options struct {
	Merge                 normalize.MergeMode
	MaxConcurrentGenerate int
	MaxRetries            int
	// Backoff returns the wait before retry attempt n (0-indexed).
	Backoff func(attempt int) time.Duration
}

// Inputs are the caller-supplied values for one invocation.
type Inputs struct {
	Values  map[string]string   `json:"values,omitempty"`
	Records []map[string]string `json:"records,omitempty"`
	TableID string              `json:"table_id,omitempty"`
}

// Stats counts what each stage did.
type Stats struct {
	AttributeFixes int                `json:"attribute_fixes"`
	RunsMerged     int                `json:"runs_merged"`
	Tagged         int                `json:"tagged"`
	Highlights     int                `json:"highlights"`
	Generated      int                `json:"generated"`
	Injected       int                `json:"injected"`
	Table          *inject.TableResult `json:"table,omitempty"`
}

// Result is a finished document.
type Result struct {
	Document   []byte               `json:"-"`
	Violations []validate.Violation `json:"violations,omitempty"`
	Anomalies  []tagger.Anomaly     `json:"anomalies,omitempty"`
	Stats      Stats                `json:"stats"`
}

// Slot describes one tagged slot found by DetectSlots.
type Slot struct {
	Tag    string `json:"tag"`
	Kind   string `json:"kind"`
	Prompt string `json:"prompt"`
}

// Slot kinds.
const (
	SlotLiteral   = "literal"
	SlotHighlight = "highlight"
)

// Detection is a tagged document awaiting values.
type Detection struct {
	Document  []byte            `json:"-"`
	Slots     []Slot            `json:"slots"`
	Prompts   map[string]string `json:"prompts"`
	Anomalies []tagger.Anomaly  `json:"anomalies,omitempty"`
	Stats     Stats             `json:"stats"`
}

// Tags returns the slot tags in document order.
func (d *Detection) Tags() []string {
	out := make([]string, len(d.Slots))
	for i, s := range d.Slots {
		out[i] = s.Tag
	}
	return out
}

// Engine holds the collaborators shared by every invocation. It keeps no
// per-document state and is safe for concurrent use.
type Engine struct {
	mapper generate.Mapper
	gen    generate.Generator
	docGen generate.DocumentGenerator
	log    *slog.Logger
	opts   Options
}

// New builds an engine. gen may also implement generate.DocumentGenerator,
// which enables GenerateValues.
func New(mapper generate.Mapper, gen generate.Generator, log *slog.Logger, opts Options) *Engine {
	if opts.MaxConcurrentGenerate <= 0 {
		opts.MaxConcurrentGenerate = 4
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = MaxRetries
	}
	if opts.Backoff == nil {
		opts.Backoff = Backoff
	}
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{mapper: mapper, gen: gen, log: log, opts: opts}
	if dg, ok := gen.(generate.DocumentGenerator); ok {
		e.docGen = dg
	}
	return e
}
