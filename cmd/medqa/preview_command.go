package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/BegaDeveloper/medqa/internal/dataset"
)

var previewOrder = []struct {
	split string
	label string
}{
	{split: dataset.SplitTrain, label: "Train example:"},
	{split: dataset.SplitDev, label: "Dev example:"},
	{split: dataset.SplitTest, label: "Test example:"},
	{split: dataset.SplitUSQBank, label: "US QBank example:"},
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	flags := &targetFlags{}
	var outputDir string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the first record of every published split",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := ctx.pathSetting(cmd, "output-dir", outputDir, "MEDQA_OUTPUT_DIR", "output")
			if err != nil {
				return err
			}
			resolved, err := ctx.resolveTarget(cmd, flags, filepath.Join(dir, "hub.db"))
			if err != nil {
				return err
			}
			repo, err := resolved.open()
			if err != nil {
				return err
			}
			defer repo.Close()

			for _, entry := range previewOrder {
				record, found, err := repo.FetchFirst(cmd.Context(), resolved.target, entry.split)
				if err != nil {
					return err
				}
				if err := writePreview(cmd.OutOrStdout(), entry.label, record, found); err != nil {
					return err
				}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory holding the default bolt repository file (env MEDQA_OUTPUT_DIR)")
	return cmd
}

func writePreview(output io.Writer, label string, record dataset.Record, found bool) error {
	if !found {
		_, err := fmt.Fprintf(output, "%s\n(split not published)\n\n", label)
		return err
	}
	raw, err := record.MarshalJSON()
	if err != nil {
		return err
	}
	indented := bytes.Buffer{}
	if err := json.Indent(&indented, raw, "", "  "); err != nil {
		return err
	}
	_, err = fmt.Fprintf(output, "%s\n%s\n\n", label, indented.String())
	return err
}
