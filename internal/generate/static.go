package generate

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/dgallion1/docslot/internal/schema"
)

// DemoMapping is the mapping for the sample template.
var DemoMapping = Mapping{
	{Pattern: "[CLIENT_NAME]", Tag: "ClientName"},
	{Pattern: "[POLICY_TYPE]", Tag: "PolicyType"},
	{Pattern: "[PREMIUM_AMOUNT]", Tag: "PremiumAmount"},
}

var cannedText = []struct {
	keyword string
	text    string
}{
	{"Executive Summary", "Executive Summary: The portfolio has outperformed the benchmark by 12% this quarter due to strategic tech allocations."},
	{"Introduction", "Introduction: We are pleased to present your annual review. This year has seen significant volatility, yet your strategy remains resilient."},
	{"Conclusion", "Conclusion: We recommend rebalancing the fixed income sector to capitalize on rising rates."},
}

// Static is a deterministic collaborator. It never blocks and never fails
// unless the context is already done. Values, when set, take precedence
// over generated text for document-level requests.
type Static struct {
	Values map[string]string
}

func (s *Static) AnalyzeStructure(ctx context.Context, _ *schema.Node) (Mapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append(Mapping(nil), DemoMapping...), nil
}

func (s *Static) GenerateFreeText(ctx context.Context, original string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, c := range cannedText {
		if strings.Contains(original, c.keyword) {
			return c.text, nil
		}
	}
	return fmt.Sprintf("[AI Generated Content for: %s]", original), nil
}

func (s *Static) GenerateTableValues(ctx context.Context, _ string, tags []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		out[tag] = fmt.Sprintf("[AI_CALC: %d]", calc(tag))
	}
	return out, nil
}

func (s *Static) GenerateDocumentValues(ctx context.Context, _ string, tags []string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(tags))
	for _, tag := range tags {
		if v, ok := s.Values[tag]; ok {
			out[tag] = v
			continue
		}
		out[tag] = fmt.Sprintf("[AI Generated Content for: %s]", tag)
	}
	return out, nil
}

// calc maps a tag to a stable number in [100, 999].
func calc(tag string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(tag))
	return 100 + h.Sum32()%900
}

var bracketRe = regexp.MustCompile(`\[[A-Z0-9][A-Z0-9_ ]*\]`)

// BracketMapper proposes a rule for every [UPPER_CASE] literal found in
// paragraph text, in document order.
type BracketMapper struct{}

func (BracketMapper) AnalyzeStructure(ctx context.Context, root *schema.Node) (Mapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out Mapping
	seen := map[string]bool{}
	root.Walk(func(n *schema.Node) bool {
		for _, lit := range bracketRe.FindAllString(n.Text, -1) {
			if seen[lit] {
				continue
			}
			seen[lit] = true
			out = append(out, Rule{Pattern: lit, Tag: CanonicalTag(lit)})
		}
		return true
	})
	return out, nil
}
