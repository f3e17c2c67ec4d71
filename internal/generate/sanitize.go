package generate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/dgallion1/docslot/internal/plaintext"
)

// DefaultMaxValueLen caps a generated value in runes.
const DefaultMaxValueLen = 4000

var codeBlockRe = regexp.MustCompile("(?s)^```(?:[a-zA-Z]+)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|` +
		`new\s+instructions)`,
)

var (
	htmlTagRe  = regexp.MustCompile(`(?i)</?(p|br|div|span|b|i|em|strong|ul|ol|li|h[1-6]|table|tr|td|th)\b[^>]*>`)
	markdownRe = regexp.MustCompile("(?m)(\\*\\*|__|`|^#{1,6}\\s|^\\s*[-*+]\\s|\\[[^\\]]+\\]\\([^)]+\\))")
)

// Sanitize turns a collaborator response into a value that is safe to write
// into a text leaf: code fences are stripped, markdown or HTML markup is
// reduced to plain text, the result is NFC-normalized, lines that read as
// prompt injection are dropped and the length is capped at maxLen runes.
func Sanitize(s string, maxLen int) string {
	s = stripCodeBlock(s)
	switch {
	case htmlTagRe.MatchString(s):
		s = plaintext.HTMLText(s)
	case markdownRe.MatchString(s):
		s = plaintext.MarkdownText(s)
	}
	s = norm.NFC.String(s)

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if injectionPattern.MatchString(line) {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t\r"))
	}
	s = strings.TrimSpace(strings.Join(kept, "\n"))

	if maxLen <= 0 {
		maxLen = DefaultMaxValueLen
	}
	if utf8.RuneCountInString(s) > maxLen {
		r := []rune(s)
		s = strings.TrimSpace(string(r[:maxLen]))
	}
	return s
}

// sanitizeValues keeps only the wanted tags and sanitizes each value.
func sanitizeValues(raw map[string]string, tags []string, maxLen int) map[string]string {
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		if v, ok := raw[tag]; ok {
			out[tag] = Sanitize(v, maxLen)
		}
	}
	return out
}

var tagWordRe = regexp.MustCompile(`[A-Za-z0-9]+`)

// CanonicalTag derives a slot tag from a placeholder literal:
// "[CLIENT_NAME]" becomes "ClientName". Mixed-case words keep their inner
// capitals, so an already canonical tag is returned unchanged.
func CanonicalTag(literal string) string {
	caser := cases.Title(language.Und)
	var sb strings.Builder
	for _, w := range tagWordRe.FindAllString(literal, -1) {
		if w == strings.ToUpper(w) || w == strings.ToLower(w) {
			sb.WriteString(caser.String(strings.ToLower(w)))
			continue
		}
		// Mixed case is already camel-cased; keep its inner capitals.
		sb.WriteString(caser.String(w[:1]) + w[1:])
	}
	return sb.String()
}
