package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docslot/internal/config"
	"github.com/dgallion1/docslot/internal/engine"
	"github.com/dgallion1/docslot/internal/pipeline"
)

var (
	generatorName string
	mergeMode     string
	rulesPath     string
	debug         bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&generatorName, "generator", "g", "", "Generator: static, claude or gemini (default from GENERATOR)")
	rootCmd.PersistentFlags().StringVar(&mergeMode, "merge", "", "Run merging: all, same-format or off (default from MERGE_RUNS)")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "YAML mapping rules file (default from MAPPING_RULES)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

var rootCmd = &cobra.Command{
	Use:           "docslot",
	Short:         "Tag placeholders in Word templates and fill them with values",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg := config.Load()
	if generatorName != "" {
		cfg.Generator = generatorName
	}
	if mergeMode != "" {
		if err := cfg.SetMergeRuns(mergeMode); err != nil {
			return cfg, err
		}
	}
	if rulesPath != "" {
		cfg.MappingRules = rulesPath
	}
	if debug {
		cfg.Debug = true
	}
	return cfg, cfg.Validate()
}

func newEngine(cmd *cobra.Command) (*engine.Engine, *engine.Collaborators, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	eng, collab, err := engine.FromConfig(cfg, newLogger(cmd))
	if err != nil {
		return nil, nil, cfg, err
	}
	return eng, collab, cfg, nil
}

// readInputs loads a values file (flat or structured) and an optional
// records file.
func readInputs(valuesPath, recordsPath, tableID string) (engine.Inputs, error) {
	var in engine.Inputs
	if valuesPath != "" {
		data, err := os.ReadFile(valuesPath)
		if err != nil {
			return in, err
		}
		if in, err = pipeline.ParseInputs(string(data)); err != nil {
			return in, fmt.Errorf("%s: %w", valuesPath, err)
		}
	}
	if recordsPath != "" {
		data, err := os.ReadFile(recordsPath)
		if err != nil {
			return in, err
		}
		var records []map[string]string
		if err := json.Unmarshal(data, &records); err != nil {
			return in, fmt.Errorf("%s: records must be an array of string objects: %w", recordsPath, err)
		}
		in.Records = records
	}
	if tableID != "" {
		in.TableID = tableID
	}
	return in, nil
}

func writeJSONOut(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
