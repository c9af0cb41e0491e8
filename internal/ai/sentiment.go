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

// Ensure SentimentSummarizer implements model.SentimentAnalyzer.
var _ model.SentimentAnalyzer = (*SentimentSummarizer)(nil)

// commentSeparator joins individual comments inside the sentiment prompt.
const commentSeparator = "\n---\n"

// SentimentSummarizer condenses a reply thread into an overall sentiment and
// a short summary. Same nil-result contract as IssueClassifier.
type SentimentSummarizer struct {
	provider Provider
	tmpl     *template.Template
	logger   *slog.Logger
}

// NewSentimentSummarizer creates a summarizer using the given provider.
func NewSentimentSummarizer(provider Provider, tmpl *template.Template, logger *slog.Logger) *SentimentSummarizer {
	return &SentimentSummarizer{
		provider: provider,
		tmpl:     tmpl,
		logger:   logger,
	}
}

// SummarizeSentiment analyzes the given comments. The result is nil when the
// provider fails, the JSON is unrecoverable, or the sentiment falls outside
// the four enumerated values; a partial summary is never returned.
func (s *SentimentSummarizer) SummarizeSentiment(ctx context.Context, comments []string) (*model.SentimentResult, error) {
	if len(comments) == 0 {
		return nil, nil
	}

	var promptBuf bytes.Buffer
	err := s.tmpl.Execute(&promptBuf, struct{ Comments string }{
		Comments: strings.Join(comments, commentSeparator),
	})
	if err != nil {
		return nil, fmt.Errorf("render sentiment prompt: %w", err)
	}

	raw, err := s.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		s.logger.Warn("sentiment analysis failed", "error", err)
		return nil, nil
	}

	var result model.SentimentResult
	if err := recoverJSON(raw, &result); err != nil {
		s.logger.Warn("unparseable sentiment response", "raw", truncate(raw, 300))
		return nil, nil
	}

	sentiments := []string{
		model.SentimentPositive, model.SentimentNeutral,
		model.SentimentNegative, model.SentimentMixed,
	}
	matched := false
	for _, v := range sentiments {
		if strings.EqualFold(strings.TrimSpace(result.Sentiment), v) {
			result.Sentiment = v
			matched = true
			break
		}
	}
	if !matched {
		s.logger.Warn("sentiment outside enum, discarding", "sentiment", result.Sentiment)
		return nil, nil
	}

	return &result, nil
}
