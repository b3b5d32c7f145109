// File: cmd/grid.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/formbridge/api/schemas"
	"github.com/xkilldash9x/formbridge/internal/bridge"
	"github.com/xkilldash9x/formbridge/internal/grid"
)

var errNoRowsInserted = errors.New("no rows were inserted")

func newGridCmd(a *app) *cobra.Command {
	var (
		page      pageFlags
		rowsFile  string
		selector  string
		gridIndex int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Insert rows into a framework-managed data grid",
		Long: `Grid sends one insertion request per row across the page's message channel
and waits for each result before sending the next. The first row goes into an
existing row; every later row is appended with the grid's insert control.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readInput(cmd, rowsFile)
			if err != nil {
				return err
			}
			rows, err := schemas.ParseRows(raw)
			if err != nil {
				return err
			}
			if gridIndex < 0 {
				return fmt.Errorf("--grid-index must not be negative")
			}

			ctx := cmd.Context()
			target, err := a.openPage(ctx, page, true)
			if err != nil {
				return err
			}
			defer target.close()

			report, err := a.insertRows(ctx, target, bridge.RowTarget{GridIndex: gridIndex, Selector: selector}, rows)
			if err != nil {
				return err
			}

			message, severity := grid.Summary(report)
			if err := a.notifier(target).Notify(context.WithoutCancel(ctx), message, severity); err != nil {
				a.logger.Warn("Failed to deliver summary notification.", zap.Error(err))
			}

			if asJSON {
				err = writeJSON(cmd.OutOrStdout(), report)
			} else {
				err = writeRowReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			if len(rows) > 0 && report.Succeeded == 0 {
				return errNoRowsInserted
			}
			return nil
		},
	}

	page.register(cmd)
	cmd.Flags().StringVarP(&rowsFile, "rows", "r", "", `rows JSON file ("-" for stdin)`)
	cmd.Flags().StringVarP(&selector, "selector", "s", "", "row selector overriding grid.row_selector")
	cmd.Flags().IntVar(&gridIndex, "grid-index", 0, "which matching table to use")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	_ = cmd.MarkFlagRequired("rows")
	return cmd
}

// insertRows runs the page-side server and the automation-side client on the
// page's transport until every row has a result.
func (a *app) insertRows(ctx context.Context, target *pageTarget, rt bridge.RowTarget, rows []map[string]string) (schemas.RowBatchReport, error) {
	server := bridge.NewServer(target.transport, grid.NewService(target.realm, a.cfg.Grid(), a.logger), a.logger)
	client := bridge.NewClient(target.transport, a.cfg.Bridge(), a.logger)
	defer client.Close()

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServe := context.WithCancel(gctx)
	defer stopServe()

	g.Go(func() error {
		err := server.Serve(serveCtx)
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil
		}
		return err
	})

	var report schemas.RowBatchReport
	g.Go(func() error {
		defer stopServe()
		report = client.InsertRows(gctx, rt, rows)
		return nil
	})

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("grid insertion aborted: %w", err)
	}
	return report, nil
}
