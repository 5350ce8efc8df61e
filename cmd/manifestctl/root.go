package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "manifestctl",
		Short:         "Upload, review and finalize dangerous goods manifests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.baseURL, "api-url", "", "Manifest API base URL (default SAFESHIPPER_API_URL)")
	flags.StringVar(&ctx.token, "token", "", "API token (default SAFESHIPPER_API_TOKEN)")
	flags.BoolVar(&ctx.jsonOutput, "json", false, "Print raw JSON instead of tables")
	flags.BoolVarP(&ctx.verbose, "verbose", "v", false, "Log requests")

	rootCmd.AddCommand(newShipmentCommand(ctx))
	rootCmd.AddCommand(newManifestCommand(ctx))
	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newConfirmCommand(ctx))
	rootCmd.AddCommand(newFinalizeCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))

	return rootCmd
}
