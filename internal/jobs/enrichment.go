package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/civicwatch/civicwatch/internal/metrics"
	"github.com/civicwatch/civicwatch/internal/model"
	"github.com/civicwatch/civicwatch/internal/ratelimit"
	"github.com/civicwatch/civicwatch/internal/search"
)

// EnrichmentJob walks published posts that have no engagement summary yet,
// fetches their reply threads, and writes a sentiment summary onto each.
// Posts are handled one at a time with a pacing delay in between; a post
// stays eligible until a summary is actually written.
type EnrichmentJob struct {
	searcher model.MentionSearcher
	store    model.IssueStore
	analyzer model.SentimentAnalyzer
	alerter  model.Alerter
	metrics  *metrics.Metrics
	logger   *slog.Logger

	username  string
	batchSize int
	itemDelay time.Duration

	guard Guard
}

// EnrichmentConfig carries the knobs for an enrichment job.
type EnrichmentConfig struct {
	AccountUsername string
	BatchSize       int
	ItemDelay       time.Duration
}

func NewEnrichmentJob(
	searcher model.MentionSearcher,
	store model.IssueStore,
	analyzer model.SentimentAnalyzer,
	alerter model.Alerter,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg EnrichmentConfig,
) *EnrichmentJob {
	return &EnrichmentJob{
		searcher:  searcher,
		store:     store,
		analyzer:  analyzer,
		alerter:   alerter,
		metrics:   m,
		logger:    logger,
		username:  cfg.AccountUsername,
		batchSize: cfg.BatchSize,
		itemDelay: cfg.ItemDelay,
	}
}

// Name identifies the job in logs and metrics.
func (j *EnrichmentJob) Name() string { return "enrichment" }

// Run executes one enrichment pass over at most the configured batch size.
func (j *EnrichmentJob) Run(ctx context.Context) error {
	if !j.guard.TryAcquire() {
		j.logger.Warn("enrichment run still in progress, skipping trigger")
		j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunOverlapSkip).Inc()
		return nil
	}
	defer j.guard.Release()

	runID := uuid.NewString()
	logger := j.logger.With("run_id", runID)

	posts, err := j.store.SelectUnenrichedPosts(ctx, j.batchSize)
	if err != nil {
		logger.Error("failed to select posts for enrichment", "error", err)
		j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunError).Inc()
		return err
	}
	if len(posts) == 0 {
		logger.Debug("no posts awaiting enrichment")
		j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunOK).Inc()
		return nil
	}
	logger.Info("enrichment run started", "posts", len(posts))

	pacer := ratelimit.NewPacer(j.itemDelay)
	for _, post := range posts {
		if err := pacer.Wait(ctx); err != nil {
			j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunError).Inc()
			return err
		}

		rateLimited, err := j.enrichPost(ctx, logger, post)
		if err != nil {
			j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunError).Inc()
			return err
		}
		if rateLimited {
			// The remaining posts stay unenriched and are picked up by
			// the next run, after the limit window has passed.
			logger.Info("reply fetch rate limited, ending run early")
			j.metrics.RateLimitAborts.WithLabelValues(j.Name()).Inc()
			break
		}
	}

	logger.Info("enrichment run finished")
	j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunOK).Inc()
	return nil
}

// enrichPost handles a single post. It returns rateLimited=true when the
// batch should stop, and a non-nil error only for failures that must abort
// the whole run.
func (j *EnrichmentJob) enrichPost(ctx context.Context, logger *slog.Logger, post model.PostRef) (rateLimited bool, err error) {
	tweetID, ok := search.TweetIDFromStatusURL(post.SourceURL)
	if !ok {
		logger.Warn("post has no parseable status link, skipping",
			"post_id", post.PostID,
			"url", post.SourceURL,
		)
		return false, nil
	}

	result, err := j.searcher.SearchRecent(ctx, search.ConversationQuery(tweetID, j.username), model.SearchOptions{
		TweetFields: []string{"text"},
		MaxResults:  100,
		SortOrder:   "recency",
	})
	if err != nil {
		var rateErr *model.RateLimitError
		if errors.As(err, &rateErr) {
			return true, nil
		}

		var authErr *model.AuthError
		if errors.As(err, &authErr) {
			logger.Error("reply fetch rejected credentials", "status", authErr.StatusCode)
			if alertErr := j.alerter.Alert("Reply fetch authentication failed",
				"The recent-search API rejected the configured bearer token during reply collection. Rotate the credential and restart the service."); alertErr != nil {
				logger.Error("failed to send alert", "error", alertErr)
			}
			return false, err
		}

		// Transient per-post failure; the post is retried next run.
		logger.Error("reply fetch failed, skipping post",
			"post_id", post.PostID,
			"error", err,
		)
		return false, nil
	}

	summary, ok := j.summarize(ctx, logger, post, result.Mentions)
	if !ok {
		return false, nil
	}

	if err := j.store.UpdateSentiment(ctx, post.PostID, summary); err != nil {
		logger.Error("failed to write engagement summary",
			"post_id", post.PostID,
			"error", err,
		)
		return false, nil
	}

	logger.Info("engagement summary written",
		"post_id", post.PostID,
		"issue_id", post.IssueID,
		"sentiment", summary.OverallSentiment,
		"replies", len(result.Mentions),
	)
	j.metrics.SentimentUpdates.WithLabelValues(summary.OverallSentiment).Inc()
	return false, nil
}

// summarize turns a reply thread into an engagement summary. A post with no
// replies gets the neutral default; an unusable model response yields ok=false
// so the post stays eligible.
func (j *EnrichmentJob) summarize(ctx context.Context, logger *slog.Logger, post model.PostRef, replies []model.Mention) (model.EngagementSummary, bool) {
	now := time.Now().UTC()

	if len(replies) == 0 {
		return model.EngagementSummary{
			OverallSentiment: model.SentimentNeutral,
			Summary:          "No public comments found for this post.",
			FetchedAt:        now,
		}, true
	}

	comments := make([]string, 0, len(replies))
	for _, r := range replies {
		comments = append(comments, r.Text)
	}

	result, err := j.analyzer.SummarizeSentiment(ctx, comments)
	if err != nil {
		logger.Error("sentiment summarization errored", "post_id", post.PostID, "error", err)
		return model.EngagementSummary{}, false
	}
	if result == nil {
		logger.Warn("sentiment summarization produced no usable result, skipping post",
			"post_id", post.PostID,
		)
		return model.EngagementSummary{}, false
	}

	return model.EngagementSummary{
		OverallSentiment: result.Sentiment,
		Summary:          result.Summary,
		FetchedAt:        now,
	}, true
}
