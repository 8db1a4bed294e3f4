package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/perdiem/internal/expense"
	"github.com/sells-group/perdiem/internal/perdiem"
)

var expenseCmd = &cobra.Command{
	Use:   "expense",
	Short: "Inspect and export logged expenses",
}

// -- expense list --

var expenseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List expenses with their reimbursable totals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		filter, err := expenseFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.List(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "expense list")
		}

		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No expenses found.")
			return nil
		}

		formatExpenseList(os.Stdout, list)
		return nil
	},
}

// -- expense export --

var expenseExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export expenses as CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")

		var write func(io.Writer, []expense.Expense) error
		switch format {
		case "csv":
			write = expense.WriteCSV
		case "xlsx":
			write = expense.WriteXLSX
		default:
			return eris.Errorf("unsupported export format %q (want csv or xlsx)", format)
		}

		filter, err := expenseFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		list, err := st.List(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "expense export")
		}

		var out io.Writer = os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrap(err, "create export file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if err := write(out, list); err != nil {
			return err
		}
		if outPath != "" {
			fmt.Fprintf(os.Stderr, "Exported %d expenses to %s\n", len(list), outPath)
		}
		return nil
	},
}

// -- expense delete --

var expenseDeleteCmd = &cobra.Command{
	Use:   "delete [expense-id]",
	Short: "Delete one expense, or every expense with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return eris.New("pass either an expense id or --all")
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if all {
			n, err := st.DeleteAll(ctx)
			if err != nil {
				return eris.Wrap(err, "expense delete")
			}
			fmt.Fprintf(os.Stderr, "Deleted %d expenses.\n", n)
			return nil
		}

		if err := st.Delete(ctx, args[0]); err != nil {
			return eris.Wrap(err, "expense delete")
		}
		fmt.Fprintf(os.Stderr, "Deleted expense %s.\n", args[0])
		return nil
	},
}

func expenseFilterFromFlags(cmd *cobra.Command) (expense.Filter, error) {
	typ, _ := cmd.Flags().GetString("type")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	limit, _ := cmd.Flags().GetInt("limit")

	f := expense.Filter{Type: expense.Type(typ), Limit: limit}
	if typ != "" && !f.Type.Valid() {
		return f, eris.Errorf("unknown expense type %q", typ)
	}
	if from != "" {
		d, err := perdiem.ParseDate(from)
		if err != nil {
			return f, eris.Wrap(err, "--from")
		}
		f.From = d
	}
	if to != "" {
		d, err := perdiem.ParseDate(to)
		if err != nil {
			return f, eris.Wrap(err, "--to")
		}
		f.To = d
	}
	return f, nil
}

// formatExpenseList writes a tabular list of expenses and their totals to w.
func formatExpenseList(out io.Writer, list []expense.Expense) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tTYPE\tESTABLISHMENT\tRECEIPT\tPER_DIEM\tREIMBURSABLE\tLOCATION")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t-------------\t-------\t--------\t------------\t--------")

	for _, e := range list {
		name := e.Establishment
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s, %s\n",
			truncateID(e.ID),
			e.Date.Format(perdiem.DateLayout),
			e.Type,
			name,
			e.ReceiptAmount.StringFixed(2),
			e.PerDiemAmount.StringFixed(2),
			e.ReimbursableAmount.StringFixed(2),
			e.City,
			e.State,
		)
	}

	s := expense.Summarize(list)
	_, _ = fmt.Fprintln(w, "\t\t\t\t\t\t\t")
	_, _ = fmt.Fprintf(w, "TOTAL\t\t\t%d expenses\t%s\t%s\t%s\t\n",
		s.Count, s.Receipt.StringFixed(2), s.PerDiem.StringFixed(2), s.Reimbursable.StringFixed(2))
	_, _ = fmt.Fprintf(w, "  lodging\t\t\t\t\t\t%s\t\n", s.Lodging.StringFixed(2))
	_, _ = fmt.Fprintf(w, "  food\t\t\t\t\t\t%s\t\n", s.Food.StringFixed(2))
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	for _, c := range []*cobra.Command{expenseListCmd, expenseExportCmd} {
		c.Flags().String("type", "", "filter by type (lodging or food)")
		c.Flags().String("from", "", "earliest date (YYYY-MM-DD)")
		c.Flags().String("to", "", "latest date (YYYY-MM-DD)")
		c.Flags().Int("limit", 0, "max expenses (default 1000)")
	}
	expenseExportCmd.Flags().String("format", "csv", "export format: csv or xlsx")
	expenseExportCmd.Flags().String("out", "", "output file (default stdout)")
	expenseDeleteCmd.Flags().Bool("all", false, "delete every expense")

	expenseCmd.AddCommand(expenseListCmd, expenseExportCmd, expenseDeleteCmd)
	rootCmd.AddCommand(expenseCmd)
}
