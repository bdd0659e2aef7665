package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	var (
		configPath string
		country    string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <category>",
		Short: "Fetch news for a category once and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			svc, _, cleanup, err := openService(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			res := svc.Fetch(context.Background(), args[0], country)
			if res.Err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", res.Err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Records)
			}

			if len(res.Records) == 0 {
				fmt.Println("No news found for this category.")
				return nil
			}
			for i, r := range res.Records {
				fmt.Printf("%2d. %s\n", i+1, r.Title)
				if r.Source != "" {
					fmt.Printf("    %s · %s\n", r.Source, r.PublishedAt)
				}
				fmt.Printf("    %s\n", r.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&country, "country", "", "two-letter country code")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func newCategoriesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List the accepted category tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			svc, _, cleanup, err := openService(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, c := range svc.Categories() {
				fmt.Println(c)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}
