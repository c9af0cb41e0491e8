package ai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/civicwatch/civicwatch/internal/model"
)

// Ensure IssueClassifier implements model.IssueExtractor.
var _ model.IssueExtractor = (*IssueClassifier)(nil)

// IssueClassifier turns a free-text mention into a structured candidate
// issue via the provider. A nil result is a first-class outcome: it means
// the model output was unusable and the mention should be rejected, not
// retried.
type IssueClassifier struct {
	provider Provider
	tmpl     *template.Template
	logger   *slog.Logger
}

// NewIssueClassifier creates a classifier using the given provider.
func NewIssueClassifier(provider Provider, tmpl *template.Template, logger *slog.Logger) *IssueClassifier {
	return &IssueClassifier{
		provider: provider,
		tmpl:     tmpl,
		logger:   logger,
	}
}

// ExtractIssue classifies one mention. Provider failures and unrecoverable
// JSON both yield (nil, nil); the raw response is logged for diagnosis.
func (c *IssueClassifier) ExtractIssue(ctx context.Context, mention model.Mention, author model.Author) (*model.ExtractionResult, error) {
	var promptBuf bytes.Buffer
	err := c.tmpl.Execute(&promptBuf, struct {
		Text     string
		Username string
		Name     string
	}{
		Text:     mention.Text,
		Username: author.Username,
		Name:     author.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("render extraction prompt: %w", err)
	}

	raw, err := c.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		c.logger.Warn("issue extraction failed",
			"mention_id", mention.ID,
			"error", err,
		)
		return nil, nil
	}

	var result model.ExtractionResult
	if err := recoverJSON(raw, &result); err != nil {
		c.logger.Warn("unparseable extraction response",
			"mention_id", mention.ID,
			"raw", truncate(raw, 300),
		)
		return nil, nil
	}

	result.Urgency = normalizeEnum(result.Urgency, []string{model.UrgencyLow, model.UrgencyMedium, model.UrgencyHigh}, model.UrgencyMedium)
	result.Category = normalizeEnum(result.Category, model.Categories, "Other")
	result.ComplaintType = normalizeEnum(result.ComplaintType, model.ComplaintTypes, "Other")

	return &result, nil
}

// normalizeEnum matches value against allowed case-insensitively, falling
// back to def for anything outside the closed set.
func normalizeEnum(value string, allowed []string, def string) string {
	trimmed := strings.TrimSpace(value)
	for _, a := range allowed {
		if strings.EqualFold(trimmed, a) {
			return a
		}
	}
	return def
}
