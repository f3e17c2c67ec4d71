// Package generate defines the collaborators the engine consults for
// mappings and generated values, along with their network-backed and
// deterministic implementations.
package generate

import (
	"context"
	"fmt"

	"github.com/dgallion1/docslot/internal/schema"
	"github.com/dgallion1/docslot/internal/tagger"
)

// Rule and Mapping are the tagger's literal-to-tag rules.
type (
	Rule    = tagger.Rule
	Mapping = tagger.Mapping
)

// Mapper proposes literal placeholder mappings from a structural summary.
type Mapper interface {
	AnalyzeStructure(ctx context.Context, root *schema.Node) (Mapping, error)
}

// Generator produces values for highlighted spans and table slots.
type Generator interface {
	GenerateFreeText(ctx context.Context, original string) (string, error)
	GenerateTableValues(ctx context.Context, markdown string, tags []string) (map[string]string, error)
}

// DocumentGenerator fills a set of slot tags from the text of a whole
// document.
type DocumentGenerator interface {
	GenerateDocumentValues(ctx context.Context, documentText string, tags []string) (map[string]string, error)
}

// Instrumented collaborators expose their model name and call latencies.
type Instrumented interface {
	Model() string
	Stats() *CallStats
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Operation labels recorded in CallStats.
const (
	OpMapping  = "mapping"
	OpFreeText = "free_text"
	OpTable    = "table"
	OpDocument = "document"
)
