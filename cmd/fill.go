// File: cmd/fill.go
package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formbridge/api/schemas"
	"github.com/xkilldash9x/formbridge/internal/formfill"
)

var errNothingFilled = errors.New("no fields were filled")

func newFillCmd(a *app) *cobra.Command {
	var (
		page     pageFlags
		dataFile string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill form fields by id, name or position",
		Long: `Fill writes each value into the first editable element whose id, then name,
then position among all editable elements matches the identifier, and fires
input, change and blur so framework bindings pick the value up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readInput(cmd, dataFile)
			if err != nil {
				return err
			}
			assignments, err := schemas.ParseAssignments(raw)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			target, err := a.openPage(ctx, page, false)
			if err != nil {
				return err
			}
			defer target.close()

			orchestrator := formfill.NewOrchestrator(a.cfg.FormFill(), a.logger,
				formfill.WithNotifier(a.notifier(target)),
				formfill.WithHooks(formfill.Hooks{
					AfterAssignment: func(index int, res schemas.FieldResult) {
						a.logger.Debug("Assignment done.", zap.Int("index", index), zap.String("outcome", string(res.Outcome)))
					},
				}),
			)
			report := orchestrator.FillForm(ctx, target.doc, assignments)

			if asJSON {
				err = writeJSON(cmd.OutOrStdout(), report)
			} else {
				err = writeFillReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			if report.Total() > 0 && report.Filled == 0 {
				return errNothingFilled
			}
			return nil
		},
	}

	page.register(cmd)
	cmd.Flags().StringVarP(&dataFile, "data", "d", "", `assignments JSON file ("-" for stdin)`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}
