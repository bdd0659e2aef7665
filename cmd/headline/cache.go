package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/headline-dev/headline/pkg/models"
)

// The cache lives in the serving process, so these commands talk to its admin API.
func newCacheCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the cache of a running server",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats models.CacheStats
			if err := adminCall(http.MethodGet, addr, "/api/cache/stats", &stats); err != nil {
				return err
			}
			lookups := stats.Hits + stats.StaleHits + stats.Misses
			fmt.Printf("Entries:    %s\n", humanize.Comma(stats.Entries))
			fmt.Printf("Fresh hits: %s\n", humanize.Comma(stats.Hits))
			fmt.Printf("Stale hits: %s\n", humanize.Comma(stats.StaleHits))
			fmt.Printf("Misses:     %s\n", humanize.Comma(stats.Misses))
			if lookups > 0 {
				fmt.Printf("Hit rate:   %s%%\n", humanize.FtoaWithDigits(float64(stats.Hits)/float64(lookups)*100, 1))
			}
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := adminCall(http.MethodPost, addr, "/api/cache/clear", nil); err != nil {
				return err
			}
			fmt.Println("All cache entries cleared.")
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the running server")
	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func adminCall(method, addr, path string, out any) error {
	req, err := http.NewRequest(method, strings.TrimRight(addr, "/")+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("contact server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
