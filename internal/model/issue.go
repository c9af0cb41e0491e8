package model

import (
	"context"
	"time"
)

// Urgency levels assigned by the extraction model.
const (
	UrgencyLow    = "Low"
	UrgencyMedium = "Medium"
	UrgencyHigh   = "High"
)

// Categories is the closed set of issue categories the extractor may assign.
var Categories = []string{
	"Roads", "Water", "Electricity", "Garbage", "Public Safety", "Parks", "Other",
}

// ComplaintTypes is the closed set of complaint classifications.
var ComplaintTypes = []string{
	"Request", "Complaint", "Emergency", "Inquiry", "Other",
}

// Sentiment values an engagement summary may carry.
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
	SentimentMixed    = "Mixed"
)

// SourceTwitterMention tags issues ingested through this pipeline, as opposed
// to citizen-submitted ones.
const SourceTwitterMention = "Twitter Mention"

// StatusPending is the initial triage status of every ingested issue.
const StatusPending = "pending"

// ExtractionResult is the structured output of classifying one mention.
// Transient; persisted as an IssueRecord only when IsValidIssue is true.
type ExtractionResult struct {
	IsValidIssue  bool   `json:"is_valid_issue"`
	Title         string `json:"issue_title"`
	Description   string `json:"issue_description"`
	Location      string `json:"location"`
	Urgency       string `json:"urgency"`
	Category      string `json:"category"`
	ContactInfo   string `json:"contact_info"`
	ComplaintType string `json:"complaint_type"`
}

// SourceData is the opaque audit blob stored alongside an ingested issue.
type SourceData struct {
	TweetID      string    `json:"tweet_id"`
	TweetText    string    `json:"tweet_text"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	VerifiedUser bool      `json:"verified_user"`
	Followers    int       `json:"followers_count"`
}

// IssueRecord is the durable civic-issue row created from a valid mention.
type IssueRecord struct {
	ID               string
	Title            string
	Description      string
	Location         string
	Status           string
	Urgency          string
	Category         string
	ComplaintType    string
	ReportedBy       string // author display name
	ReporterUsername string
	ReporterContact  string
	Source           string
	SourceURL        string
	SourceData       SourceData
	CreatedBy        string // service identity, never a citizen account
	CreatedAt        time.Time
}

// PostRef identifies a published issue post eligible for enrichment.
type PostRef struct {
	PostID    string
	IssueID   string
	SourceURL string // deep link back to the published post
}

// SentimentResult is the raw output of the sentiment summarization model.
type SentimentResult struct {
	Sentiment string `json:"overall_sentiment"`
	Summary   string `json:"summary"`
}

// EngagementSummary is the enrichment written onto a published post. It is
// always patched as a single record update so a post never carries a
// partially written summary.
type EngagementSummary struct {
	OverallSentiment string
	Summary          string
	FetchedAt        time.Time
}

// Ledger is the persistent idempotency set of already-processed mention ids.
// MarkProcessed is itself idempotent: marking a marked id is a no-op.
type Ledger interface {
	HasProcessed(ctx context.Context, externalID string) (bool, error)
	MarkProcessed(ctx context.Context, externalID string) error
}

// IssueStore appends ingested issues and patches enrichment fields on
// published posts. Deduplication is the Ledger's job, not the store's.
type IssueStore interface {
	InsertIssue(ctx context.Context, issue IssueRecord) (string, error)
	SelectUnenrichedPosts(ctx context.Context, limit int) ([]PostRef, error)
	UpdateSentiment(ctx context.Context, postID string, summary EngagementSummary) error
}

// IssueExtractor classifies one mention into a structured candidate issue.
// A (nil, nil) return means the model output could not be used; callers treat
// that as a rejection, not an error.
type IssueExtractor interface {
	ExtractIssue(ctx context.Context, mention Mention, author Author) (*ExtractionResult, error)
}

// SentimentAnalyzer summarizes a reply thread into an overall sentiment.
// Same nil-result contract as IssueExtractor.
type SentimentAnalyzer interface {
	SummarizeSentiment(ctx context.Context, comments []string) (*SentimentResult, error)
}

// Alerter delivers operator-facing alerts for fatal configuration errors.
type Alerter interface {
	Alert(subject, message string) error
}
