package main

import (
	"github.com/spf13/cobra"

	"github.com/BegaDeveloper/medqa/internal/runtimeconfig"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := newPublishCommand(ctx)
	rootCmd.Use = "medqa"
	rootCmd.Short = "Clean up the MedQA-USMLE splits and publish them as a dataset repository"
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return ctx.prepare(cmd)
	}

	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env-file", runtimeconfig.DefaultEnvFile, "Dotenv file with default settings")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Log level: debug, info, warn or error (env MEDQA_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&ctx.logFormat, "log-format", "", "Log format: text or json (env MEDQA_LOG_FORMAT)")

	publishCmd := newPublishCommand(ctx)
	publishCmd.Use = "publish"
	publishCmd.Short = "Normalize the splits, write them locally and publish them (default action)"
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(newCheckCommand(ctx))
	rootCmd.AddCommand(newPreviewCommand(ctx))

	return rootCmd
}
