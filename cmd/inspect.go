// File: cmd/inspect.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/formbridge/internal/formfill"
)

func newInspectCmd(a *app) *cobra.Command {
	var (
		page   pageFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List the editable elements a fill would resolve against",
		Long: `Inspect prints every editable element in document order. The INDEX column is
the position a numeric identifier selects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			target, err := a.openPage(ctx, page, false)
			if err != nil {
				return err
			}
			defer target.close()

			elements, err := formfill.Inspect(ctx, target.doc)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), elements)
			}
			return writeElements(cmd.OutOrStdout(), elements)
		},
	}

	page.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the elements as JSON")
	return cmd
}
