package main

import (
	"os"

	"github.com/spf13/cobra"
)

var detectOut string

func init() {
	detectCmd.Flags().StringVarP(&detectOut, "out", "o", "", "Also write the tagged document here")
	rootCmd.AddCommand(detectCmd)
}

var detectCmd = &cobra.Command{
	Use:   "detect [file.docx]",
	Short: "Tag placeholders and print them as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		eng, collab, _, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer collab.Close()

		det, err := eng.DetectSlots(cmd.Context(), data)
		if err != nil {
			return err
		}
		if detectOut != "" {
			if err := os.WriteFile(detectOut, det.Document, 0o644); err != nil {
				return err
			}
		}
		return writeJSONOut(cmd, det)
	},
}
