package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/civicwatch/civicwatch/internal/model"
)

// Ensure SlackAlerter implements model.Alerter.
var _ model.Alerter = (*SlackAlerter)(nil)

// SlackAlerter posts operator alerts to a Slack channel via Incoming
// Webhooks.
type SlackAlerter struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSlackAlerter(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackAlerter {
	return &SlackAlerter{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Alert sends one Block Kit message. A rate-limited webhook is retried once
// after the Retry-After window.
func (s *SlackAlerter) Alert(subject, message string) error {
	body, err := json.Marshal(buildPayload(subject, message))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		secs, _ := strconv.Atoi(retryAfter)
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)
		time.Sleep(time.Duration(secs) * time.Second)

		resp2, err := s.httpClient.Post(s.webhookURL, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		defer resp2.Body.Close()

		if resp2.StatusCode != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", resp2.StatusCode)
		}
		s.logger.Info("alert sent", "subject", subject, "retried", true)
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	s.logger.Info("alert sent", "subject", subject)
	return nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildPayload(subject, message string) slackPayload {
	return slackPayload{
		Blocks: []slackBlock{
			{
				Type: "header",
				Text: &slackText{Type: "plain_text", Text: "🚨 " + subject},
			},
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: message},
			},
		},
	}
}

// SendTestAlert pushes a dummy alert to verify the integration works.
func SendTestAlert(a model.Alerter) error {
	return a.Alert("Test Alert — Integration Verified",
		"This is a test alert from civicwatch. If you can read this, alert delivery is working.")
}
