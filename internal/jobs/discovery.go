// Package jobs holds the periodic pipeline jobs: mention discovery and
// engagement enrichment. Each job is safe to trigger repeatedly; overlapping
// triggers of the same job are skipped.
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

// DiscoveryJob polls recent mentions of the service account, classifies each
// unseen one, and persists the valid issues. One mention is handled at a
// time with a pacing delay in between.
type DiscoveryJob struct {
	searcher  model.MentionSearcher
	ledger    model.Ledger
	store     model.IssueStore
	extractor model.IssueExtractor
	alerter   model.Alerter
	metrics   *metrics.Metrics
	logger    *slog.Logger

	username      string
	maxResults    int
	itemDelay     time.Duration
	serviceUserID string

	guard Guard
}

// DiscoveryConfig carries the knobs for a discovery job.
type DiscoveryConfig struct {
	AccountUsername string
	MaxResults      int
	ItemDelay       time.Duration
	ServiceUserID   string
}

func NewDiscoveryJob(
	searcher model.MentionSearcher,
	ledger model.Ledger,
	store model.IssueStore,
	extractor model.IssueExtractor,
	alerter model.Alerter,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg DiscoveryConfig,
) *DiscoveryJob {
	return &DiscoveryJob{
		searcher:      searcher,
		ledger:        ledger,
		store:         store,
		extractor:     extractor,
		alerter:       alerter,
		metrics:       m,
		logger:        logger,
		username:      cfg.AccountUsername,
		maxResults:    cfg.MaxResults,
		itemDelay:     cfg.ItemDelay,
		serviceUserID: cfg.ServiceUserID,
	}
}

// Name identifies the job in logs and metrics.
func (j *DiscoveryJob) Name() string { return "discovery" }

// Run executes one discovery pass. A rate-limited upstream ends the pass
// quietly; unprocessed mentions are picked up by the next one.
func (j *DiscoveryJob) Run(ctx context.Context) error {
	if !j.guard.TryAcquire() {
		j.logger.Warn("discovery run still in progress, skipping trigger")
		j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunOverlapSkip).Inc()
		return nil
	}
	defer j.guard.Release()

	runID := uuid.NewString()
	logger := j.logger.With("run_id", runID)
	logger.Info("discovery run started", "account", j.username)

	result, err := j.searcher.SearchRecent(ctx, search.MentionQuery(j.username), model.SearchOptions{
		TweetFields: []string{"text", "author_id", "created_at"},
		Expansions:  []string{"author_id"},
		UserFields:  []string{"name", "username", "verified", "public_metrics"},
		MaxResults:  j.maxResults,
		SortOrder:   "recency",
	})
	if err != nil {
		return j.handleSearchError(logger, err)
	}
	if len(result.Mentions) == 0 {
		logger.Info("no new mentions")
		j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunOK).Inc()
		return nil
	}
	logger.Info("mentions fetched", "count", len(result.Mentions))

	pacer := ratelimit.NewPacer(j.itemDelay)
	for _, mention := range result.Mentions {
		if err := pacer.Wait(ctx); err != nil {
			j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunError).Inc()
			return err
		}

		outcome := j.processMention(ctx, logger, mention, result.AuthorFor(mention.AuthorID))
		j.metrics.MentionsProcessed.WithLabelValues(string(outcome)).Inc()

		if outcome.final() {
			if err := j.ledger.MarkProcessed(ctx, mention.ID); err != nil {
				logger.Error("failed to mark mention processed",
					"mention_id", mention.ID,
					"error", err,
				)
			}
		}
	}

	logger.Info("discovery run finished")
	j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunOK).Inc()
	return nil
}

// processMention handles a single mention end to end and reports how it
// fared. It never returns an error: per-item failures are logged and the
// mention is left unmarked so a later run retries it.
func (j *DiscoveryJob) processMention(ctx context.Context, logger *slog.Logger, mention model.Mention, author model.Author) Outcome {
	seen, err := j.ledger.HasProcessed(ctx, mention.ID)
	if err != nil {
		// Fail closed: without a ledger answer the mention might already
		// have an issue, so do nothing this run.
		logger.Error("ledger lookup failed", "mention_id", mention.ID, "error", err)
		return OutcomeErrored
	}
	if seen {
		logger.Debug("mention already processed", "mention_id", mention.ID)
		return OutcomeSkipped
	}

	extraction, err := j.extractor.ExtractIssue(ctx, mention, author)
	if err != nil {
		logger.Error("issue extraction errored", "mention_id", mention.ID, "error", err)
		return OutcomeErrored
	}
	if extraction == nil || !extraction.IsValidIssue {
		logger.Info("mention rejected as non-issue",
			"mention_id", mention.ID,
			"author", author.Username,
		)
		return OutcomeRejected
	}

	record := model.IssueRecord{
		Title:            extraction.Title,
		Description:      extraction.Description,
		Location:         extraction.Location,
		Status:           model.StatusPending,
		Urgency:          extraction.Urgency,
		Category:         extraction.Category,
		ComplaintType:    extraction.ComplaintType,
		ReportedBy:       author.Name,
		ReporterUsername: author.Username,
		ReporterContact:  extraction.ContactInfo,
		Source:           model.SourceTwitterMention,
		SourceURL:        search.StatusURL(author.Username, mention.ID),
		SourceData: model.SourceData{
			TweetID:      mention.ID,
			TweetText:    mention.Text,
			UserID:       mention.AuthorID,
			CreatedAt:    mention.CreatedAt,
			VerifiedUser: author.Verified,
			Followers:    author.Followers,
		},
		CreatedBy: j.serviceUserID,
		CreatedAt: time.Now().UTC(),
	}

	issueID, err := j.store.InsertIssue(ctx, record)
	if err != nil {
		logger.Error("failed to persist issue", "mention_id", mention.ID, "error", err)
		return OutcomeErrored
	}

	logger.Info("issue created",
		"issue_id", issueID,
		"mention_id", mention.ID,
		"category", record.Category,
		"urgency", record.Urgency,
	)
	j.metrics.IssuesCreated.Inc()
	return OutcomePersisted
}

// handleSearchError maps a failed recent-search call to a run result.
func (j *DiscoveryJob) handleSearchError(logger *slog.Logger, err error) error {
	var rateErr *model.RateLimitError
	if errors.As(err, &rateErr) {
		logger.Info("mention search rate limited", "reset", rateErr.Reset)
		j.metrics.RateLimitAborts.WithLabelValues(j.Name()).Inc()
		j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunOK).Inc()
		return nil
	}

	var authErr *model.AuthError
	if errors.As(err, &authErr) {
		logger.Error("mention search rejected credentials", "status", authErr.StatusCode)
		if alertErr := j.alerter.Alert("Mention search authentication failed",
			"The recent-search API rejected the configured bearer token. Rotate the credential and restart the service."); alertErr != nil {
			logger.Error("failed to send alert", "error", alertErr)
		}
		j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunError).Inc()
		return err
	}

	logger.Error("mention search failed", "error", err)
	j.metrics.JobRuns.WithLabelValues(j.Name(), metrics.RunError).Inc()
	return err
}
