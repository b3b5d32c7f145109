// File: cmd/output.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/formbridge/api/schemas"
)

// readInput reads a batch file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func newTable(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func writeFillReport(w io.Writer, report schemas.FillReport) error {
	tw := newTable(w, "ID", "VALUE", "OUTCOME", "REASON")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Assignment.Identifier, r.Assignment.Value, r.Outcome, r.Reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nfilled=%d not_found=%d errored=%d\n", report.Filled, report.NotFound, report.Errored)
	return err
}

func writeRowReport(w io.Writer, report schemas.RowBatchReport) error {
	tw := newTable(w, "ROW", "CORRELATION", "STATUS", "METHOD", "MESSAGE")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", r.RowIndex, r.CorrelationID, r.Status, r.Method, r.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nsucceeded=%d failed=%d\n", report.Succeeded, report.Failed)
	return err
}

func writeElements(w io.Writer, elements []schemas.ElementInfo) error {
	tw := newTable(w, "INDEX", "TAG", "TYPE", "ID", "NAME", "PLACEHOLDER", "CLASS", "VALUE", "VISIBLE", "ENABLED")
	for _, e := range elements {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\t%t\n",
			e.Index, e.TagName, e.Type, e.ID, e.Name, e.Placeholder, e.ClassName, e.Value, e.Visible, e.Enabled)
	}
	return tw.Flush()
}

func writeDiagnostics(w io.Writer, diags []schemas.RowDiagnostic) error {
	tw := newTable(w, "INDEX", "CLASS", "ACCESSORS")
	for _, d := range diags {
		var exposed []string
		for name, ok := range d.Accessors {
			if ok {
				exposed = append(exposed, name)
			}
		}
		sort.Strings(exposed)
		accessors := strings.Join(exposed, ", ")
		if accessors == "" {
			accessors = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", d.Index, d.ClassName, accessors)
	}
	return tw.Flush()
}
