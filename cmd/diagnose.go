// File: cmd/diagnose.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/formbridge/internal/grid"
)

func newDiagnoseCmd(a *app) *cobra.Command {
	var (
		page   pageFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Report the framework accessors each grid row exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			target, err := a.openPage(ctx, page, false)
			if err != nil {
				return err
			}
			defer target.close()

			diags, err := grid.NewService(target.realm, a.cfg.Grid(), a.logger).Diagnose(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), diags)
			}
			return writeDiagnostics(cmd.OutOrStdout(), diags)
		},
	}

	page.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the diagnostics as JSON")
	return cmd
}
