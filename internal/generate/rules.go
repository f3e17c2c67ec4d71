package generate

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docslot/internal/schema"
)

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes a YAML rules document:
//
//	rules:
//	  - pattern: "[CLIENT_NAME]"
//	    tag: ClientName
func ParseRules(data []byte) (Mapping, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	for i, r := range f.Rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %d: empty pattern", i)
		}
		if r.Tag == "" {
			return nil, fmt.Errorf("rule %d (%q): empty tag", i, r.Pattern)
		}
	}
	return Mapping(f.Rules), nil
}

// LoadRules reads and parses a rules file.
func LoadRules(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// RulesMapper answers with a fixed rule set, extended by whatever the
// fallback mapper proposes for patterns the rules do not cover.
type RulesMapper struct {
	Rules    Mapping
	Fallback Mapper
}

func NewRulesMapper(rules Mapping, fallback Mapper) *RulesMapper {
	return &RulesMapper{Rules: rules, Fallback: fallback}
}

func (m *RulesMapper) AnalyzeStructure(ctx context.Context, root *schema.Node) (Mapping, error) {
	out := append(Mapping(nil), m.Rules...)
	if m.Fallback == nil {
		return out, nil
	}
	extra, err := m.Fallback.AnalyzeStructure(ctx, root)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(out))
	for _, r := range out {
		known[r.Pattern] = true
	}
	for _, r := range extra {
		if !known[r.Pattern] {
			known[r.Pattern] = true
			out = append(out, r)
		}
	}
	return out, nil
}
