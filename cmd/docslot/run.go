package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docslot/internal/engine"
	"github.com/dgallion1/docslot/internal/pipeline"
)

var (
	runOutDir  string
	runValues  string
	runRecords string
	runTable   string
	runMode    string
)

func init() {
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "Output directory (default: next to each input)")
	runCmd.Flags().StringVar(&runValues, "values", "", "JSON file with slot values")
	runCmd.Flags().StringVar(&runRecords, "records", "", "JSON file with table records")
	runCmd.Flags().StringVar(&runTable, "table", "", "Schema id of the table to expand")
	runCmd.Flags().StringVarP(&runMode, "mode", "m", string(pipeline.ModeAuto), "Processing mode: auto, manual or ai")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [file.docx|dir]",
	Short: "Process a template or every template in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := pipeline.ParseMode(runMode)
		if err != nil {
			return err
		}
		in, err := readInputs(runValues, runRecords, runTable)
		if err != nil {
			return err
		}
		eng, collab, cfg, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer collab.Close()

		files, err := collectInputs(args[0])
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no .docx templates found in %s", args[0])
		}

		start := time.Now()
		var failed atomic.Int32
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(cfg.WorkerCount)
		for _, path := range files {
			g.Go(func() error {
				out, err := processFile(ctx, eng, mode, path, in)
				if err != nil {
					failed.Add(1)
					fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %v\n", path, err)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", path, out)
				return nil
			})
		}
		g.Wait()

		fmt.Fprintf(cmd.OutOrStdout(), "Processed %d of %d in %v.\n", len(files)-int(failed.Load()), len(files), time.Since(start).Round(time.Millisecond))
		if failed.Load() > 0 {
			return fmt.Errorf("%d documents failed", failed.Load())
		}
		return nil
	},
}

// collectInputs expands a directory into its processable templates.
func collectInputs(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !pipeline.IsDocx(path) {
			return nil, fmt.Errorf("%s is not a .docx file", path)
		}
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && pipeline.Processable(e.Name()) {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files, nil
}

func processFile(ctx context.Context, eng *engine.Engine, mode pipeline.Mode, path string, in engine.Inputs) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	res, err := pipeline.Run(ctx, eng, mode, data, in, nil)
	if err != nil {
		return "", err
	}
	dir := runOutDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(dir, pipeline.OutputName(path, time.Now()))
	if err := os.WriteFile(out, res.Document, 0o644); err != nil {
		return "", err
	}
	return out, nil
}
