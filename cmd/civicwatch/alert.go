package main

import (
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/civicwatch/civicwatch/internal/alert"
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Alerting subcommands",
}

var alertTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test alert",
	Long:  "Sends a test alert using the configured alerter.",
	RunE:  runAlertTest,
}

func init() {
	rootCmd.AddCommand(alertCmd)
	alertCmd.AddCommand(alertTestCmd)
}

func runAlertTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	a := setupAlerter(cfg, &http.Client{Timeout: cfg.Search.Timeout}, logger)

	if err := alert.SendTestAlert(a); err != nil {
		logger.Error("test alert failed", "error", err)
		os.Exit(1)
	}
	logger.Info("test alert sent successfully")
	return nil
}
