package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docslot/internal/pipeline"
)

var (
	injectValues  string
	injectRecords string
	injectTable   string
	injectOut     string
)

func init() {
	injectCmd.Flags().StringVar(&injectValues, "values", "", "JSON file with slot values")
	injectCmd.Flags().StringVar(&injectRecords, "records", "", "JSON file with table records")
	injectCmd.Flags().StringVar(&injectTable, "table", "", "Schema id of the table to expand")
	injectCmd.Flags().StringVarP(&injectOut, "out", "o", "", "Output file (default: <name>_Processed_<timestamp>.docx)")
	rootCmd.AddCommand(injectCmd)
}

var injectCmd = &cobra.Command{
	Use:   "inject [file.docx]",
	Short: "Fill placeholders from supplied values without generating content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := readInputs(injectValues, injectRecords, injectTable)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		eng, collab, _, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer collab.Close()

		res, err := pipeline.Run(cmd.Context(), eng, pipeline.ModeManual, data, in, nil)
		if err != nil {
			return err
		}
		out := injectOut
		if out == "" {
			out = filepath.Join(filepath.Dir(args[0]), pipeline.OutputName(args[0], time.Now()))
		}
		if err := os.WriteFile(out, res.Document, 0o644); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d injected", out, res.Stats.Injected)
		if res.Stats.Table != nil {
			fmt.Fprintf(cmd.OutOrStdout(), ", table %s", res.Stats.Table.Status)
		}
		fmt.Fprintln(cmd.OutOrStdout(), ")")
		for _, v := range res.Violations {
			fmt.Fprintf(cmd.ErrOrStderr(), "violation: %s: %s\n", v.Location, v.Description)
		}
		return nil
	},
}
