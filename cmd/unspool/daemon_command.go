package main

import (
	"github.com/spf13/cobra"

	"unspool/internal/daemonrun"
)

// newDaemonRunCommand is the hidden `unspool daemon` entry the start
// command re-execs into; operators use `unspool start` instead.
func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var diagnostic bool
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the unspool daemon (internal)",
		Hidden:       true,
		SilenceUsage: true,
		Annotations:  map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx.diagnostic = &diagnostic
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := daemonrun.Options{
				LogLevel:    ctx.resolvedLogLevel(cfg),
				Development: ctx.logDevelopment(cfg),
				Diagnostic:  ctx.diagnosticMode(),
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Enable diagnostic mode with separate DEBUG logs")
	return cmd
}
