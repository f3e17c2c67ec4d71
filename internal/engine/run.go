package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docslot/internal/container"
	"github.com/dgallion1/docslot/internal/doctree"
	"github.com/dgallion1/docslot/internal/generate"
	"github.com/dgallion1/docslot/internal/inject"
	"github.com/dgallion1/docslot/internal/normalize"
	"github.com/dgallion1/docslot/internal/plaintext"
	"github.com/dgallion1/docslot/internal/schema"
	"github.com/dgallion1/docslot/internal/tablectx"
	"github.com/dgallion1/docslot/internal/tagger"
	"github.com/dgallion1/docslot/internal/validate"
)

// ErrNoDocumentGenerator is returned by GenerateValues when the configured
// generator cannot fill slots from document text.
var ErrNoDocumentGenerator = errors.New("generator does not support document-level values")

type prepared struct {
	mapping    generate.Mapping
	literals   tagger.LiteralReport
	highlights tagger.Highlights
	stats      Stats
}

// RunPipeline processes doc end to end: literal placeholders are tagged
// and filled from in.Values, highlighted spans are replaced with generated
// text, and in.Records expand the target table.
func (e *Engine) RunPipeline(ctx context.Context, doc []byte, in Inputs) (*Result, error) {
	log := e.log.With("op", "run")
	pkg, tree, err := container.Load(doc)
	if err != nil {
		return nil, err
	}
	p, err := e.prepare(ctx, log, tree)
	if err != nil {
		return nil, err
	}

	generated, err := e.generateHighlights(ctx, log, tree, p.highlights)
	if err != nil {
		return nil, err
	}
	p.stats.Generated = len(generated)

	values := make(map[string]string, len(in.Values)+len(generated))
	for k, v := range generated {
		values[k] = v
	}
	for k, v := range in.Values {
		values[k] = v
	}

	res, err := e.finish(log, pkg, tree, values, in, p.stats)
	if err != nil {
		return nil, err
	}
	res.Anomalies = p.literals.Anomalies
	return res, nil
}

// DetectSlots normalizes and tags doc without filling anything. The
// returned document carries the slots; Prompts maps each tag to the
// highlighted text or the literal pattern it replaced.
func (e *Engine) DetectSlots(ctx context.Context, doc []byte) (*Detection, error) {
	log := e.log.With("op", "detect")
	pkg, tree, err := container.Load(doc)
	if err != nil {
		return nil, err
	}
	p, err := e.prepare(ctx, log, tree)
	if err != nil {
		return nil, err
	}
	out, err := pkg.Save(tree)
	if err != nil {
		return nil, err
	}

	patterns := make(map[string]string, len(p.mapping))
	for _, r := range p.mapping {
		if _, ok := patterns[r.Tag]; !ok {
			patterns[r.Tag] = r.Pattern
		}
	}
	highlights := p.highlights.Map()

	det := &Detection{
		Document:  out,
		Prompts:   map[string]string{},
		Anomalies: p.literals.Anomalies,
		Stats:     p.stats,
	}
	for _, sdt := range doctree.Slots(tree.Body()) {
		tag := doctree.SlotTag(sdt)
		if _, ok := det.Prompts[tag]; ok {
			continue
		}
		s := Slot{Tag: tag, Kind: SlotLiteral}
		switch text, ok := highlights[tag]; {
		case ok:
			s.Kind, s.Prompt = SlotHighlight, text
		case patterns[tag] != "":
			s.Prompt = patterns[tag]
		default:
			if strings.HasPrefix(tag, tagger.HighlightPrefix) {
				s.Kind = SlotHighlight
			}
			s.Prompt = doctree.InnerText(sdt)
		}
		det.Slots = append(det.Slots, s)
		det.Prompts[tag] = s.Prompt
	}
	log.Info("slots detected", "slots", len(det.Slots), "highlights", p.stats.Highlights)
	return det, nil
}

// InjectAndFinish fills an already tagged document from in and validates
// it.
func (e *Engine) InjectAndFinish(ctx context.Context, doc []byte, in Inputs) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := e.log.With("op", "inject")
	pkg, tree, err := container.Load(doc)
	if err != nil {
		return nil, err
	}
	return e.finish(log, pkg, tree, in.Values, in, Stats{})
}

// GenerateValues asks the document generator for values of tags, using the
// plain text of doc as context.
func (e *Engine) GenerateValues(ctx context.Context, doc []byte, tags []string) (map[string]string, error) {
	if e.docGen == nil {
		return nil, ErrNoDocumentGenerator
	}
	if len(tags) == 0 {
		return map[string]string{}, nil
	}
	text, err := documentText(doc)
	if err != nil {
		return nil, err
	}

	log := e.log.With("op", "generate_document")
	var values map[string]string
	err = e.retry(ctx, log, generate.OpDocument, func() error {
		var err error
		values, err = e.docGen.GenerateDocumentValues(ctx, text, tags)
		return err
	})
	if err != nil {
		return nil, &StageError{Stage: StageDocument, Err: err}
	}
	log.Info("document values generated", "requested", len(tags), "returned", len(values))
	return values, nil
}

// documentText renders doc as plain text for a generation prompt. Slots are
// unwrapped first so their content (placeholders and highlighted
// instructions) stays in the text.
func documentText(doc []byte) (string, error) {
	pkg, tree, err := container.Load(doc)
	if err != nil {
		return "", err
	}
	doctree.UnwrapSlots(tree.Root())
	untagged, err := pkg.Save(tree)
	if err != nil {
		return "", err
	}
	outline, err := plaintext.FromDOCX(untagged, "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", container.ErrCorrupt, err)
	}
	return outline.PlainText(), nil
}

// prepare runs normalization, mapping, literal tagging and highlight
// detection on tree.
func (e *Engine) prepare(ctx context.Context, log *slog.Logger, tree *doctree.Tree) (*prepared, error) {
	p := &prepared{}

	norm := normalize.Normalize(tree, normalize.Options{Merge: e.opts.Merge})
	p.stats.AttributeFixes = norm.AttributeFixes
	p.stats.RunsMerged = norm.RunsMerged
	log.Debug("normalized", "attribute_fixes", norm.AttributeFixes, "runs_merged", norm.RunsMerged)

	if e.mapper != nil {
		root := schema.Extract(tree)
		err := e.retry(ctx, log, generate.OpMapping, func() error {
			var err error
			p.mapping, err = e.mapper.AnalyzeStructure(ctx, root)
			return err
		})
		if err != nil {
			return nil, &StageError{Stage: StageMapping, Err: err}
		}
	}
	log.Debug("mapping ready", "rules", len(p.mapping))

	p.literals = tagger.TagLiterals(tree, p.mapping)
	p.stats.Tagged = p.literals.Tagged
	for _, a := range p.literals.Anomalies {
		log.Warn("tagging abandoned paragraph", "location", a.Location, "reason", a.Description)
	}

	seq := tagger.NewSequence(tagger.HighlightPrefix, doctree.Tags(tree.Body()))
	p.highlights = tagger.DetectHighlights(tree, seq)
	p.stats.Highlights = len(p.highlights.Groups)
	log.Debug("tagged", "literals", p.stats.Tagged, "highlights", p.stats.Highlights)
	return p, nil
}

type tableGroup struct {
	tbl  *etree.Element
	tags []string
}

// generateHighlights produces a value for every highlight slot. Slots inside
// a table are generated together from the table's markdown grid; the rest
// are generated one by one from their original text. Calls run
// concurrently and only read strings taken from the tree beforehand.
func (e *Engine) generateHighlights(ctx context.Context, log *slog.Logger, tree *doctree.Tree, h tagger.Highlights) (map[string]string, error) {
	texts := h.Map()
	if len(texts) == 0 {
		return nil, nil
	}
	if e.gen == nil {
		log.Warn("highlight slots left unfilled, no generator configured", "slots", len(texts))
		return nil, nil
	}

	var tables []*tableGroup
	byTable := map[*etree.Element]*tableGroup{}
	var inline []string
	seen := map[string]bool{}
	for _, sdt := range doctree.Slots(tree.Body()) {
		tag := doctree.SlotTag(sdt)
		if _, ok := texts[tag]; !ok || seen[tag] {
			continue
		}
		seen[tag] = true
		tbl := doctree.Ancestor(sdt, doctree.KindTable)
		if tbl == nil {
			inline = append(inline, tag)
			continue
		}
		g := byTable[tbl]
		if g == nil {
			g = &tableGroup{tbl: tbl}
			byTable[tbl] = g
			tables = append(tables, g)
		}
		g.tags = append(g.tags, tag)
	}

	var mu sync.Mutex
	out := make(map[string]string, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxConcurrentGenerate)

	for _, tg := range tables {
		grid := tablectx.Serialize(tg.tbl)
		tags := tg.tags
		g.Go(func() error {
			var vals map[string]string
			err := e.retry(gctx, log, generate.OpTable, func() error {
				var err error
				vals, err = e.gen.GenerateTableValues(gctx, grid, tags)
				return err
			})
			if err != nil {
				return fmt.Errorf("table values: %w", err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, t := range tags {
				if v, ok := vals[t]; ok {
					out[t] = v
				}
			}
			return nil
		})
	}
	for _, tag := range inline {
		original := texts[tag]
		g.Go(func() error {
			var text string
			err := e.retry(gctx, log, generate.OpFreeText, func() error {
				var err error
				text, err = e.gen.GenerateFreeText(gctx, original)
				return err
			})
			if err != nil {
				return fmt.Errorf("free text %s: %w", tag, err)
			}
			mu.Lock()
			out[tag] = text
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &StageError{Stage: StageGenerate, Err: err}
	}
	log.Debug("generated", "tables", len(tables), "inline", len(inline), "values", len(out))
	return out, nil
}

// finish injects values and records, validates and serializes.
func (e *Engine) finish(log *slog.Logger, pkg *container.Package, tree *doctree.Tree, values map[string]string, in Inputs, stats Stats) (*Result, error) {
	stats.Injected = inject.Values(tree, values)

	if len(in.Records) > 0 || in.TableID != "" {
		tr := inject.Table(tree, in.Records, inject.Target{TableID: in.TableID})
		stats.Table = &tr
		if tr.Status != inject.StatusExpanded {
			log.Warn("table not expanded", "status", tr.Status, "table_id", in.TableID)
		}
	}

	violations := validate.Validate(tree)
	for _, v := range violations {
		log.Debug("schema violation", "location", v.Location, "description", v.Description)
	}

	out, err := pkg.Save(tree)
	if err != nil {
		return nil, err
	}
	log.Info("document finished",
		"injected", stats.Injected,
		"generated", stats.Generated,
		"violations", len(violations),
	)
	return &Result{Document: out, Violations: violations, Stats: stats}, nil
}
