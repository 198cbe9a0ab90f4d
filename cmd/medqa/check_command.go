package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BegaDeveloper/medqa/internal/dataset"
	"github.com/BegaDeveloper/medqa/internal/dedupe"
	"github.com/BegaDeveloper/medqa/internal/pipeline"
	"github.com/BegaDeveloper/medqa/internal/report"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the raw split files exist and parse, without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := ctx.pathSetting(cmd, "data-dir", dataDir, "MEDQA_DATA_DIR", "data")
			if err != nil {
				return err
			}
			if err := pipeline.CheckInputs(dir, dataset.Catalogue); err != nil {
				return err
			}
			collection, loaded, err := pipeline.LoadAll(dir, dataset.Catalogue, ctx.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := report.WriteDuplicates(out, dedupe.Scan(collection)); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nDataset sizes (as loaded):\n")
			return report.WriteSizes(out, report.Sizes(collection, loaded, nil))
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory with the raw split files (env MEDQA_DATA_DIR)")
	return cmd
}
