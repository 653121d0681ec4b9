package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/keygate/keygate/internal/auditlog"
)

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the access audit log",
	}

	cmd.AddCommand(newLogsQueryCmd())
	cmd.AddCommand(newLogsStatsCmd())
	cmd.AddCommand(newLogsExportCmd())

	return cmd
}

// parseFilterTime accepts RFC3339 or a bare date.
func parseFilterTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want RFC3339 or YYYY-MM-DD)", s)
	}
	return t, nil
}

func buildFilter(start, end, tool, user string) (auditlog.Filter, error) {
	var f auditlog.Filter
	var err error
	if f.Start, err = parseFilterTime(start); err != nil {
		return f, err
	}
	if f.End, err = parseFilterTime(end); err != nil {
		return f, err
	}
	f.ToolID = tool
	f.UserName = user
	return f, nil
}

func newLogsQueryCmd() *cobra.Command {
	var (
		start, end, tool, user string
		limit                  int
		jsonOutput             bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List audit entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			reader, closeStore, err := newReader(cfg, cliLogger())
			if err != nil {
				return err
			}
			defer closeStore()

			f, err := buildFilter(start, end, tool, user)
			if err != nil {
				return err
			}

			entries, err := reader.Query(context.Background(), f, limit)
			if err != nil {
				return fmt.Errorf("query logs: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching entries.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-11s %-16s %s\n", e.Timestamp, e.Action, e.UserName, e.ToolID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries.\n", len(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "earliest timestamp (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "latest timestamp (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&tool, "tool", "", "filter by tool ID")
	cmd.Flags().StringVar(&user, "user", "", "filter by user name")
	cmd.Flags().IntVar(&limit, "limit", auditlog.DefaultQueryLimit, "maximum entries to return")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output entries as JSON")

	return cmd
}

func newLogsStatsCmd() *cobra.Command {
	var (
		days       int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize audit activity over a trailing window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			reader, closeStore, err := newReader(cfg, cliLogger())
			if err != nil {
				return err
			}
			defer closeStore()

			stats, err := reader.Stats(context.Background(), days)
			if err != nil {
				return fmt.Errorf("compute stats: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Last %d day(s):\n", days)
			fmt.Fprintf(cmd.OutOrStdout(), "  accesses:     %d\n", stats.TotalAccesses)
			fmt.Fprintf(cmd.OutOrStdout(), "  unique users: %d\n", stats.UniqueUsers)
			if len(stats.TopTools) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "  top tools:")
				for _, tc := range stats.TopTools {
					fmt.Fprintf(cmd.OutOrStdout(), "    %-24s %d\n", tc.Name, tc.Count)
				}
			}
			if len(stats.DailyCounts) > 0 {
				days := make([]string, 0, len(stats.DailyCounts))
				for d := range stats.DailyCounts {
					days = append(days, d)
				}
				sort.Strings(days)
				fmt.Fprintln(cmd.OutOrStdout(), "  daily entries:")
				for _, d := range days {
					fmt.Fprintf(cmd.OutOrStdout(), "    %s  %d\n", d, stats.DailyCounts[d])
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "window size in days")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output stats as JSON")

	return cmd
}

func newLogsExportCmd() *cobra.Command {
	var (
		start, end, tool, user string
		output                 string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export matching audit entries as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			reader, closeStore, err := newReader(cfg, cliLogger())
			if err != nil {
				return err
			}
			defer closeStore()

			f, err := buildFilter(start, end, tool, user)
			if err != nil {
				return err
			}

			csv, err := reader.ExportCSV(context.Background(), f)
			if err != nil {
				return fmt.Errorf("export logs: %w", err)
			}

			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), csv)
				return nil
			}
			if err := os.WriteFile(output, []byte(csv), 0644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "earliest timestamp (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "latest timestamp (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&tool, "tool", "", "filter by tool ID")
	cmd.Flags().StringVar(&user, "user", "", "filter by user name")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write CSV to file instead of stdout")

	return cmd
}
