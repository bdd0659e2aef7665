package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/headline-dev/headline/pkg/fetchlog"
	"github.com/headline-dev/headline/pkg/models"
)

func newFetchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetches",
		Short: "Query and manage the upstream fetch log",
	}

	cmd.AddCommand(
		newFetchesListCmd(),
		newFetchesStatsCmd(),
		newFetchesCleanupCmd(),
	)
	return cmd
}

func newFetchesListCmd() *cobra.Command {
	var (
		configPath string
		category   string
		outcome    string
		since      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent upstream fetches",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openFetchLog(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.FetchQueryOpts{
				Category: category,
				Outcome:  models.FetchOutcome(outcome),
				Limit:    limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Print(formatFetchEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&category, "category", "", "filter by requested category")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (success, transport, protocol, application, decode)")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")
	return cmd
}

func newFetchesStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show fetch counts by category, outcome and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openFetchLog(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Print(formatFetchStats(stats))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

func newFetchesCleanupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete fetch entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openFetchLog(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %s fetch entries.\n", humanize.Comma(deleted))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

// openFetchLog opens the configured database even when the server runs with the log disabled.
func openFetchLog(configPath string) (*fetchlog.Logger, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	l, err := fetchlog.New(cfg.FetchLog.DBPath, cfg.FetchLog.RetentionDays)
	if err != nil {
		return nil, nil, fmt.Errorf("open fetch log: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func formatFetchEntries(entries []models.FetchEntry) string {
	if len(entries) == 0 {
		return "No fetch entries found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-15s %-8s %-12s %6s %7s %8s %-16s\n",
		"CATEGORY", "COUNTRY", "OUTCOME", "STATUS", "RECORDS", "LATENCY", "WHEN")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, e := range entries {
		category := e.Category
		if category == "" {
			category = "-"
		}
		country := e.Country
		if country == "" {
			country = "-"
		}
		fmt.Fprintf(&b, "%-15s %-8s %-12s %6d %7d %6dms %-16s\n",
			category, country, e.Outcome, e.StatusCode, e.Records,
			e.LatencyMs, humanize.Time(e.CreatedAt))
		if e.Error != "" {
			fmt.Fprintf(&b, "    %s\n", e.Error)
		}
	}
	return b.String()
}

func formatFetchStats(stats []models.FetchStat) string {
	if len(stats) == 0 {
		return "No fetch stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-15s %-12s %-12s %8s\n", "CATEGORY", "OUTCOME", "DAY", "COUNT")
	b.WriteString(strings.Repeat("-", 50) + "\n")
	for _, s := range stats {
		category := s.Category
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(&b, "%-15s %-12s %-12s %8s\n",
			category, s.Outcome, s.Day, humanize.Comma(int64(s.Count)))
	}
	return b.String()
}
