package generate

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docslot/internal/plaintext"
)

// DefaultPromptTokenBudget bounds the document text embedded in a prompt.
const DefaultPromptTokenBudget = 2000

const MappingPrompt = `You are given the structural summary of a Word document as JSON. Nodes are paragraphs, tables, rows and cells; paragraphs carry their text.

Identify literal placeholders in the text that a template author left to be filled in, such as [CLIENT_NAME], {{policy_number}} or <<Date>>.

Return a JSON array of objects, each with:
- "pattern": the exact placeholder literal as it appears in the text (string)
- "tag": a PascalCase identifier for the value, letters and digits only (string)

Rules:
- Only report literals that occur verbatim in a paragraph's text
- Report each distinct literal once
- Return an empty array [] if there are no placeholders

Respond with ONLY the JSON array, no other text.`

const FreeTextPrompt = `Rewrite the following highlighted template instruction as the finished paragraph it describes, in a professional tone suitable for a client-facing report. Keep it to a few sentences.

Respond with ONLY the replacement text, no markdown and no preamble.`

const TablePrompt = `The markdown table below is a template taken from a Word document. Cells written as {{Tag}} are slots to fill.

Return a JSON object mapping each requested tag to a short cell value consistent with the column headers.

Respond with ONLY the JSON object, no other text.`

const DocumentPrompt = `Analyze the document text below and extract the values for the listed placeholder keys.

Return a JSON object whose keys are exactly the placeholder keys and whose values are strings. If a value cannot be determined, use a sensible professional placeholder.

Respond with ONLY the JSON object, no other text.`

// BuildMappingPrompt embeds the JSON structural summary.
func BuildMappingPrompt(schemaJSON string) string {
	return MappingPrompt + "\n\n---\n" + schemaJSON
}

// BuildFreeTextPrompt embeds the original highlighted text.
func BuildFreeTextPrompt(original string) string {
	return FreeTextPrompt + "\n\n---\n" + original
}

// BuildTablePrompt embeds the table grid and the tags to fill.
func BuildTablePrompt(markdown string, tags []string) string {
	var sb strings.Builder
	sb.WriteString(TablePrompt)
	sb.WriteString("\n\n---\n")
	sb.WriteString(fmt.Sprintf("Tags: %s\n", strings.Join(tags, ", ")))
	sb.WriteString("---\n")
	sb.WriteString(markdown)
	return sb.String()
}

// BuildDocumentPrompt embeds the placeholder keys and as much of the
// document text as fits in tokenBudget.
func BuildDocumentPrompt(documentText string, tags []string, tokenBudget int) string {
	if tokenBudget <= 0 {
		tokenBudget = DefaultPromptTokenBudget
	}
	var sb strings.Builder
	sb.WriteString(DocumentPrompt)
	sb.WriteString("\n\n---\n")
	sb.WriteString(fmt.Sprintf("Placeholder keys: %s\n", strings.Join(tags, ", ")))
	sb.WriteString("---\n")
	sb.WriteString(plaintext.Fit(documentText, tokenBudget))
	return sb.String()
}
