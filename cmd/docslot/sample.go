package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docslot/internal/container"
)

var sampleCmd = &cobra.Command{
	Use:   "sample [path.docx]",
	Short: "Write the sample template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := container.Sample()
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], doc, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample template to %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
}
