package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/BegaDeveloper/medqa/internal/pipeline"
	"github.com/BegaDeveloper/medqa/internal/prune"
	"github.com/BegaDeveloper/medqa/internal/publish"
	"github.com/BegaDeveloper/medqa/internal/runtimeconfig"
)

type publishFlags struct {
	targetFlags
	dataDir        string
	outputDir      string
	policyPath     string
	skipDuplicates bool
	skipFilter     bool
	noPublish      bool
}

func newPublishCommand(ctx *commandContext) *cobra.Command {
	flags := &publishFlags{}

	cmd := &cobra.Command{
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, ctx, flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.dataDir, "data-dir", "", "Directory with the raw split files (env MEDQA_DATA_DIR)")
	cmd.Flags().StringVar(&flags.outputDir, "output-dir", "", "Directory for the normalized split files (env MEDQA_OUTPUT_DIR)")
	cmd.Flags().StringVar(&flags.policyPath, "policy", "", "YAML file listing record indices to drop per split")
	cmd.Flags().BoolVar(&flags.skipDuplicates, "skip-duplicates", false, "Do not print the duplicate question report")
	cmd.Flags().BoolVar(&flags.skipFilter, "skip-filter", false, "Keep every record instead of applying the drop policy")
	cmd.Flags().BoolVar(&flags.noPublish, "no-publish", false, "Write the normalized splits without publishing them")

	return cmd
}

func runPublish(cmd *cobra.Command, ctx *commandContext, flags *publishFlags) error {
	dataDir, err := ctx.pathSetting(cmd, "data-dir", flags.dataDir, "MEDQA_DATA_DIR", "data")
	if err != nil {
		return err
	}
	outputDir, err := ctx.pathSetting(cmd, "output-dir", flags.outputDir, "MEDQA_OUTPUT_DIR", "output")
	if err != nil {
		return err
	}

	policy := prune.DefaultPolicy()
	if flags.policyPath != "" {
		policyPath, err := runtimeconfig.ExpandPath(flags.policyPath)
		if err != nil {
			return fmt.Errorf("--policy: %w", err)
		}
		policy, err = prune.LoadPolicy(policyPath)
		if err != nil {
			return fmt.Errorf("load drop policy: %w", err)
		}
	}

	config := pipeline.Config{
		DataDir:          dataDir,
		OutputDir:        outputDir,
		Policy:           policy,
		ReportDuplicates: !flags.skipDuplicates,
		DropRecords:      !flags.skipFilter,
	}

	var resolved resolvedTarget
	var publisher publish.Publisher
	if !flags.noPublish {
		resolved, err = ctx.resolveTarget(cmd, &flags.targetFlags, filepath.Join(outputDir, "hub.db"))
		if err != nil {
			return err
		}
		repo, err := resolved.open()
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				ctx.logger.Warn("close publisher failed", "err", closeErr)
			}
		}()
		publisher = repo
		config.Target = resolved.target
	}

	result, err := pipeline.New(config, publisher, ctx.logger, cmd.OutOrStdout()).Run(cmd.Context())
	if err != nil {
		return err
	}
	if result.Published {
		fmt.Fprintf(cmd.OutOrStdout(), "\nDataset pushed to %s\n", resolved.location())
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nNormalized splits written to %s\n", outputDir)
	return nil
}
