package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/civicwatch/civicwatch/internal/model"
	"github.com/civicwatch/civicwatch/internal/search"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch mentions once, print them, exit",
	Long:  "One-shot search: fetches recent mentions of the configured account and prints them. Does not classify and does not write to the store.",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("check mode: nothing will be persisted")

	client := search.NewClient(cfg.Search.BaseURL, cfg.Search.BearerToken,
		&http.Client{Timeout: cfg.Search.Timeout})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := client.SearchRecent(ctx, search.MentionQuery(cfg.Search.AccountUsername), model.SearchOptions{
		TweetFields: []string{"text", "author_id", "created_at"},
		Expansions:  []string{"author_id"},
		UserFields:  []string{"name", "username", "verified", "public_metrics"},
		MaxResults:  cfg.Search.MaxResults,
		SortOrder:   "recency",
	})
	if err != nil {
		logger.Error("mention search failed", "error", err)
		os.Exit(1)
	}

	if len(result.Mentions) == 0 {
		fmt.Println("No recent mentions.")
		return nil
	}

	for _, m := range result.Mentions {
		author := result.AuthorFor(m.AuthorID)
		fmt.Printf("@%s (%s) at %s\n  %s\n  %s\n\n",
			author.Username,
			author.Name,
			m.CreatedAt.Format("2006-01-02 15:04"),
			m.Text,
			search.StatusURL(author.Username, m.ID),
		)
	}
	logger.Info("check complete", "mentions", len(result.Mentions))
	return nil
}
