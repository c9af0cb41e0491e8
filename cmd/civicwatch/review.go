package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/civicwatch/civicwatch/internal/review"
	"github.com/civicwatch/civicwatch/internal/store"
)

var reviewLimit int

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse ingested issues interactively (TUI)",
	Long:  "Opens a terminal browser over the most recent issue records in the store.",
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", 100, "maximum issues to load")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	issues, err := st.ListRecentIssues(ctx, reviewLimit)
	if err != nil {
		logger.Error("failed to load issues", "error", err)
		os.Exit(1)
	}

	return review.Run(issues)
}
