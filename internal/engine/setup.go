package engine

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/docslot/internal/config"
	"github.com/dgallion1/docslot/internal/generate"
)

// Collaborators are the mapper and generator selected by configuration.
type Collaborators struct {
	Mapper    generate.Mapper
	Generator generate.Generator
	// Instrumented is nil for the static generator.
	Instrumented generate.Instrumented

	closers []func()
}

// Close releases network resources held by the collaborators.
func (c *Collaborators) Close() {
	for _, fn := range c.closers {
		fn()
	}
}

// NewCollaborators builds the collaborators cfg names. The Claude client
// serves as both mapper and generator; the other generators pair with the
// bracket mapper. A MAPPING_RULES file takes precedence over either.
func NewCollaborators(cfg config.Config) (*Collaborators, error) {
	c := &Collaborators{Mapper: generate.BracketMapper{}}
	opts := []generate.Option{generate.WithPromptBudget(cfg.PromptTokenBudget)}

	switch cfg.Generator {
	case config.GeneratorStatic, "":
		c.Generator = &generate.Static{}
	case config.GeneratorClaude:
		client := generate.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, opts...)
		c.Mapper, c.Generator, c.Instrumented = client, client, client
		c.closers = append(c.closers, client.Close)
	case config.GeneratorGemini:
		client := generate.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, opts...)
		c.Generator, c.Instrumented = client, client
		c.closers = append(c.closers, client.Close)
	default:
		return nil, fmt.Errorf("unknown generator %q", cfg.Generator)
	}

	if cfg.MappingRules != "" {
		rules, err := generate.LoadRules(cfg.MappingRules)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Mapper = generate.NewRulesMapper(rules, c.Mapper)
	}
	return c, nil
}

// FromConfig builds an engine and its collaborators from cfg.
func FromConfig(cfg config.Config, log *slog.Logger) (*Engine, *Collaborators, error) {
	c, err := NewCollaborators(cfg)
	if err != nil {
		return nil, nil, err
	}
	e := New(c.Mapper, c.Generator, log, Options{
		Merge:                 cfg.MergeRuns,
		MaxConcurrentGenerate: cfg.MaxConcurrentGenerate,
	})
	return e, c, nil
}
