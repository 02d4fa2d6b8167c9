package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/analytics"
	"fintrack/internal/backend"
	"fintrack/internal/core"
	"fintrack/internal/services"
)

const (
	formatHuman = "human"
	formatJSON  = "json"
)

// adminApp carries what the subcommands need. The backend is opened lazily
// so commands that never touch storage work without a database.
type adminApp struct {
	backendName string
	dedupWindow time.Duration
	open        func(ctx context.Context) (*backend.BackendResult, error)

	output string
	result *backend.BackendResult
}

func (a *adminApp) connect(ctx context.Context) (*backend.BackendResult, error) {
	if a.result != nil {
		return a.result, nil
	}
	result, err := a.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", a.backendName, err)
	}
	a.result = result
	return result, nil
}

func (a *adminApp) close() error {
	if a.result == nil || a.result.Cleanup == nil {
		return nil
	}
	err := a.result.Cleanup()
	a.result = nil
	return err
}

func newRootCmd(app *adminApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fintrack-admin",
		Short:         "Maintenance commands for the fintrack backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.output = strings.ToLower(strings.TrimSpace(app.output))
			if app.output != formatHuman && app.output != formatJSON {
				return fmt.Errorf("invalid --output value %q: supported values are %s|%s", app.output, formatHuman, formatJSON)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.close(); err != nil {
				return fmt.Errorf("close backend: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&app.output, "output", formatHuman, "Output format: human|json")

	cmd.AddCommand(
		newMigrateCmd(app),
		newEvaluateCmd(app),
		newReportCmd(app),
		newCategoriesCmd(app),
	)
	return cmd
}

func newMigrateCmd(app *adminApp) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening a sql backend applies its migrations.
			if _, err := app.connect(cmd.Context()); err != nil {
				return err
			}
			message := "Migrations applied"
			if app.backendName == backend.MemoryBackend.String() {
				message = "Memory backend has no schema"
			}
			return app.print(cmd.OutOrStdout(), map[string]string{
				"backend": app.backendName,
				"message": message,
			}, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s)\n", message, app.backendName)
			})
		},
	}
}

func newEvaluateCmd(app *adminApp) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a user's active budgets and raise alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}

			opts := []services.EvaluatorOption{services.WithDedupWindow(app.dedupWindow)}
			if result.AMQP != nil {
				opts = append(opts, services.WithAlertPublisher(result.AMQP))
			}
			alerts, err := services.NewBudgetEvaluator(result.Store, opts...).EvaluateUser(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("evaluate budgets: %w", err)
			}

			return app.print(cmd.OutOrStdout(), map[string]any{"alerts": alerts}, func(w io.Writer) {
				if len(alerts) == 0 {
					fmt.Fprintln(w, "No new alerts")
					return
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tBUDGET\tTYPE\tPERCENT\tMESSAGE")
				for _, a := range alerts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%s\n", a.ID, a.BudgetID, a.Kind, a.Percentage, a.Message)
				}
				tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

type reportFlags struct {
	userID   string
	period   string
	startRaw string
	endRaw   string
}

func newReportCmd(app *adminApp) *cobra.Command {
	flags := &reportFlags{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a user's financial report for a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := flags.periodQuery()
			if err != nil {
				return err
			}
			result, err := app.connect(cmd.Context())
			if err != nil {
				return err
			}

			report, err := services.NewReportService(result.Store, nil, nil).Report(cmd.Context(), flags.userID, q)
			if err != nil {
				return fmt.Errorf("build report: %w", err)
			}
			return app.print(cmd.OutOrStdout(), report, func(w io.Writer) {
				printReport(w, report)
			})
		},
	}

	cmd.Flags().StringVar(&flags.userID, "user", "", "User ID")
	cmd.Flags().StringVar(&flags.period, "period", "month", "Period: today|week|month|year|custom")
	cmd.Flags().StringVar(&flags.startRaw, "start", "", "Custom period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flags.endRaw, "end", "", "Custom period end (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (f *reportFlags) periodQuery() (services.PeriodQuery, error) {
	q := services.PeriodQuery{Period: strings.ToLower(strings.TrimSpace(f.period))}
	var err error
	if f.startRaw != "" {
		if q.Start, err = core.ParseDate(f.startRaw); err != nil {
			return q, fmt.Errorf("invalid --start value %q: %w", f.startRaw, err)
		}
	}
	if f.endRaw != "" {
		if q.End, err = core.ParseDate(f.endRaw); err != nil {
			return q, fmt.Errorf("invalid --end value %q: %w", f.endRaw, err)
		}
	}
	return q, nil
}

func printReport(w io.Writer, r analytics.Report) {
	fmt.Fprintf(w, "Report %s\n\n", r.ReportPeriod)
	fmt.Fprintf(w, "Income:       %s\n", r.Summary.TotalIncome)
	fmt.Fprintf(w, "Expenses:     %s\n", r.Summary.TotalExpenses)
	fmt.Fprintf(w, "Balance:      %s\n", r.Summary.Balance)
	fmt.Fprintf(w, "Transactions: %d\n", r.Summary.TransactionCount)

	if len(r.TopCategories) == 0 {
		return
	}
	fmt.Fprintln(w, "\nTop categories")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range r.TopCategories {
		fmt.Fprintf(tw, "  %s\t%s\n", c.Category, c.Amount)
	}
	tw.Flush()
}

func newCategoriesCmd(app *adminApp) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the predefined categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			categories := core.PredefinedCategories()
			return app.print(cmd.OutOrStdout(), map[string]any{"categories": categories}, func(w io.Writer) {
				for _, c := range categories {
					fmt.Fprintf(w, "%s %s\n", c.Icon, c.Name)
				}
			})
		},
	}
}

func (a *adminApp) print(w io.Writer, v any, human func(io.Writer)) error {
	if a.output == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human(w)
	return nil
}
