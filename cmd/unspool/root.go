package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var jsonFlag bool

	ctx := newCommandContext(&configFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "unspool",
		Short:         "Unlock encrypted music containers and ingest them into a library",
		Version:       buildVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		// Config loads once here so subcommands can assume it. Commands
		// that must run without a config opt out via annotation.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Emit machine-readable JSON where supported")

	rootCmd.AddCommand(newDaemonCommands(ctx)...)
	rootCmd.AddCommand(
		newDaemonRunCommand(ctx),
		newAddCommand(ctx),
		newUnlockCommand(ctx),
		newShowCommand(ctx),
		newQueueCommand(ctx),
		newCatalogCommand(ctx),
		newHealthCommand(ctx),
		newTestNotifyCommand(ctx),
		newConfigCommand(ctx),
		newVersionCommand(),
	)

	return rootCmd
}
