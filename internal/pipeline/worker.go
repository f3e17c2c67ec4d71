package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docslot/internal/engine"
	"github.com/dgallion1/docslot/internal/store"
)

// Worker processes a single document job.
type Worker struct {
	engine *engine.Engine
	store  *store.Store
	log    *slog.Logger
}

func NewWorker(eng *engine.Engine, st *store.Store, log *slog.Logger) *Worker {
	return &Worker{engine: eng, store: st, log: log}
}

// Process runs the engine for a job and stores the output.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "file", job.FileName, "mode", job.Mode)
	log.Info("job started", "content_hash", job.ContentHash)
	start := time.Now()

	res, err := Run(ctx, w.engine, job.Mode, job.FileData(), job.Inputs(), func(phase string) {
		job.SetStatus(StatusProcessing, phase)
	})
	if err != nil {
		log.Error("processing failed", "error", err)
		job.Fail(job.Snapshot().Phase, err.Error())
		return
	}

	name := OutputName(job.FileName, time.Now())
	out := &store.Output{JobID: job.ID, FileName: name, Document: res.Document}
	job.SetStatus(StatusProcessing, "storing")
	if err := w.store.SaveOutput(ctx, out); err != nil {
		log.Error("store output failed", "error", err)
		job.Fail("storing", err.Error())
		return
	}

	job.Complete(out.ID, name, len(res.Violations), res.Stats)
	log.Info("job completed",
		"output", name,
		"injected", res.Stats.Injected,
		"violations", len(res.Violations),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Run processes one document in the given mode. phase, when non-nil, is
// told which step is running.
func Run(ctx context.Context, eng *engine.Engine, mode Mode, data []byte, in engine.Inputs, phase func(string)) (*engine.Result, error) {
	if phase == nil {
		phase = func(string) {}
	}
	switch mode {
	case ModeAuto, "":
		phase("running")
		return eng.RunPipeline(ctx, data, in)
	case ModeManual, ModeAI:
	default:
		return nil, fmt.Errorf("invalid processing mode %q", mode)
	}

	phase("detecting")
	det, err := eng.DetectSlots(ctx, data)
	if err != nil {
		return nil, err
	}
	if mode == ModeAI {
		phase("generating")
		generated, err := eng.GenerateValues(ctx, det.Document, det.Tags())
		if err != nil {
			return nil, err
		}
		in.Values = MergeValues(generated, in.Values)
	}
	phase("injecting")
	return eng.InjectAndFinish(ctx, det.Document, in)
}

// MergeValues returns base overlaid with override.
func MergeValues(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
