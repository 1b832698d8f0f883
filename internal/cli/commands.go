package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/vaultactivity/internal/engine"
	"github.com/lazypower/vaultactivity/internal/report"
)

const commandTimeout = 30 * time.Second

// --- most / least ---

func rankingCmd(use, short, order string, view func(*engine.Engine) engine.ListView) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, false,
				func(ctx context.Context, r *remote) error {
					v, err := r.rankings(ctx, order)
					if err != nil {
						return err
					}
					printList(cmd.OutOrStdout(), v)
					return nil
				},
				func(_ context.Context, a *app) error {
					printList(cmd.OutOrStdout(), view(a.engine))
					return nil
				})
		},
	}
}

var (
	mostCmd  = rankingCmd("most", "Show the most viewed notes", "most", (*engine.Engine).MostViewed)
	leastCmd = rankingCmd("least", "Show the least viewed notes", "least", (*engine.Engine).LeastViewed)
)

func printList(w io.Writer, view engine.ListView) {
	fmt.Fprintf(w, "## %s\n\n", view.Title)
	if len(view.Entries) == 0 {
		fmt.Fprintln(w, "No data available yet.")
		return
	}
	for _, e := range view.Entries {
		fmt.Fprintf(w, "%3d. %-48s %8s views  %s\n", e.Rank, e.Name, humanize.Comma(int64(e.Views)), e.LastAccessed)
	}
}

// --- neglected ---

var neglectedCmd = &cobra.Command{
	Use:   "neglected",
	Short: "Open a random note from the least viewed ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, true,
			func(ctx context.Context, r *remote) error {
				return r.command(ctx, "/api/neglected/open")
			},
			func(ctx context.Context, a *app) error {
				_, err := a.engine.OpenRandomNeglected(ctx)
				if errors.Is(err, engine.ErrNoData) {
					return nil
				}
				return err
			})
	},
}

// --- clear ---

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all activity data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes && !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(),
			"Are you sure you want to clear all activity data? This cannot be undone.") {
			fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
			return nil
		}
		return runCommand(cmd, true,
			func(ctx context.Context, r *remote) error {
				return r.command(ctx, "/api/clear")
			},
			func(ctx context.Context, a *app) error {
				return a.engine.ClearAll(ctx)
			})
	},
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// --- report ---

var reportStdout bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write a Markdown activity report into the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, false,
			func(ctx context.Context, r *remote) error {
				if reportStdout {
					md, err := r.text(ctx, "/api/report")
					if err != nil {
						return err
					}
					fmt.Fprint(cmd.OutOrStdout(), md)
					return nil
				}
				return r.command(ctx, "/api/reports")
			},
			func(ctx context.Context, a *app) error {
				if reportStdout {
					fmt.Fprint(cmd.OutOrStdout(), report.Markdown(a.tracker.Filtered(), time.Now()))
					return nil
				}
				_, err := a.engine.GenerateReport(ctx)
				if errors.Is(err, engine.ErrNoData) {
					return nil
				}
				return err
			})
	},
}

// --- export ---

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export activity data as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		write := func(csv string) error {
			data := csv + "\n"
			if exportOutput == "" || exportOutput == "-" {
				_, err := io.WriteString(cmd.OutOrStdout(), data)
				return err
			}
			if err := os.WriteFile(exportOutput, []byte(data), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported to %s\n", exportOutput)
			return nil
		}
		return runCommand(cmd, false,
			func(ctx context.Context, r *remote) error {
				csv, err := r.text(ctx, "/api/export.csv")
				if err != nil {
					return err
				}
				return write(csv)
			},
			func(_ context.Context, a *app) error {
				return write(a.engine.ExportCSV())
			})
	},
}

// --- dashboard ---

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Print the activity dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, false,
			func(ctx context.Context, r *remote) error {
				d, err := r.dashboard(ctx)
				if err != nil {
					return err
				}
				printDashboard(cmd.OutOrStdout(), d)
				return nil
			},
			func(_ context.Context, a *app) error {
				printDashboard(cmd.OutOrStdout(), a.engine.Dashboard())
				return nil
			})
	},
}

const barWidth = 30

func printDashboard(w io.Writer, d engine.Dashboard) {
	s := d.Summary
	fmt.Fprintln(w, "## Vault activity")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Files tracked            %s\n", humanize.Comma(int64(s.Files)))
	fmt.Fprintf(w, "  Total views              %s\n", humanize.Comma(int64(s.TotalViews)))
	fmt.Fprintf(w, "  Average views per file   %.1f\n", s.AverageView)
	fmt.Fprintf(w, "  Active today             %s (last 24 hours)\n", humanize.Comma(int64(s.ActiveToday)))
	fmt.Fprintln(w)

	printList(w, engine.ListView{Title: "Most viewed", Entries: d.MostViewed})
	fmt.Fprintln(w)
	printList(w, engine.ListView{Title: "Least viewed", Entries: d.LeastViewed})
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Distribution")
	fmt.Fprintln(w)
	for _, b := range d.Distribution {
		bar := strings.Repeat("#", int(b.Percent/100*barWidth))
		fmt.Fprintf(w, "  %-12s %-*s %s\n", b.Label, barWidth, bar, humanize.Comma(int64(b.Count)))
	}
}

// --- track ---

var trackCmd = &cobra.Command{
	Use:       "track open|change <path>",
	Short:     "Report a document event to a running server",
	Long:      "Report a document event to a running server. Meant for editor hooks: when the server is down the event is dropped silently.",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"open", "change"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, path := args[0], args[1]
		if kind != string(engine.KindOpen) && kind != string(engine.KindChange) {
			return fmt.Errorf("unknown event %q: want open or change", kind)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if _, err := serverClient().Track(ctx, kind, path); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "track: %v\n", err)
		}
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Do not ask for confirmation")
	reportCmd.Flags().BoolVar(&reportStdout, "stdout", false, "Print the report instead of writing it into the vault")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write CSV to this file instead of stdout")
}
