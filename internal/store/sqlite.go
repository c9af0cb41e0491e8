package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/civicwatch/civicwatch/internal/model"
)

// sqliteSchema creates the three tables the pipeline touches. The issues and
// issue_posts tables are owned by the wider application; the pipeline only
// ever inserts issues and ledger rows and patches enrichment fields.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS processed_mentions (
	tweet_id     TEXT PRIMARY KEY,
	processed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS issues (
	id                TEXT PRIMARY KEY,
	issue_title       TEXT NOT NULL,
	issue_description TEXT,
	address_component TEXT,
	status            TEXT NOT NULL DEFAULT 'pending',
	priority          TEXT,
	department        TEXT,
	complaint_type    TEXT,
	reported_by       TEXT,
	reporter_username TEXT,
	reporter_contact  TEXT,
	source            TEXT,
	source_url        TEXT,
	source_data       TEXT,
	created_by        TEXT NOT NULL,
	created_at        DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS issue_posts (
	post_id             TEXT PRIMARY KEY,
	issue_id            TEXT NOT NULL REFERENCES issues(id),
	x_post_url          TEXT,
	posted_to_x         INTEGER NOT NULL DEFAULT 0,
	overall_sentiment   TEXT,
	sentiment_summary   TEXT,
	comments_fetched_at DATETIME
)`

// sqb builds queries with SQLite-style ? placeholders.
var sqb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore backs the ledger and record store with a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// HasProcessed returns true if the given mention id is already in the ledger.
// Lookup failures propagate; callers must not treat them as "not processed".
func (s *SQLiteStore) HasProcessed(ctx context.Context, externalID string) (bool, error) {
	query, args, err := sqb.Select("1").
		From("processed_mentions").
		Where(sq.Eq{"tweet_id": externalID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building ledger lookup: %w", err)
	}

	var exists int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking ledger for %s: %w", externalID, err)
	}
	return true, nil
}

// MarkProcessed records a mention id in the ledger. Marking an already-marked
// id is a no-op.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, externalID string) error {
	query, args, err := sqb.Insert("processed_mentions").
		Options("OR IGNORE").
		Columns("tweet_id", "processed_at").
		Values(externalID, time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("building ledger mark: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("marking %s processed: %w", externalID, err)
	}
	return nil
}

// InsertIssue appends one ingested issue and returns its id.
func (s *SQLiteStore) InsertIssue(ctx context.Context, issue model.IssueRecord) (string, error) {
	id := issue.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := issue.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	sourceData, err := json.Marshal(issue.SourceData)
	if err != nil {
		return "", fmt.Errorf("marshal source data: %w", err)
	}

	query, args, err := sqb.Insert("issues").
		Columns(
			"id", "issue_title", "issue_description", "address_component",
			"status", "priority", "department", "complaint_type",
			"reported_by", "reporter_username", "reporter_contact",
			"source", "source_url", "source_data", "created_by", "created_at",
		).
		Values(
			id, issue.Title, issue.Description, issue.Location,
			issue.Status, issue.Urgency, issue.Category, issue.ComplaintType,
			issue.ReportedBy, issue.ReporterUsername, issue.ReporterContact,
			issue.Source, issue.SourceURL, string(sourceData), issue.CreatedBy, createdAt,
		).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building issue insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("inserting issue: %w", err)
	}
	return id, nil
}

// SelectUnenrichedPosts returns up to limit published posts that have no
// sentiment data yet, oldest first.
func (s *SQLiteStore) SelectUnenrichedPosts(ctx context.Context, limit int) ([]model.PostRef, error) {
	query, args, err := sqb.Select("post_id", "issue_id", "x_post_url").
		From("issue_posts").
		Where(sq.Eq{"posted_to_x": true}).
		Where(sq.Eq{"comments_fetched_at": nil}).
		OrderBy("post_id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building post selection: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting unenriched posts: %w", err)
	}
	defer rows.Close()

	var posts []model.PostRef
	for rows.Next() {
		var p model.PostRef
		var sourceURL sql.NullString
		if err := rows.Scan(&p.PostID, &p.IssueID, &sourceURL); err != nil {
			return nil, fmt.Errorf("scanning post row: %w", err)
		}
		p.SourceURL = sourceURL.String
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating post rows: %w", err)
	}
	return posts, nil
}

// UpdateSentiment patches all three enrichment columns in a single statement
// so a post never carries a partially written summary.
func (s *SQLiteStore) UpdateSentiment(ctx context.Context, postID string, summary model.EngagementSummary) error {
	query, args, err := sqb.Update("issue_posts").
		Set("overall_sentiment", summary.OverallSentiment).
		Set("sentiment_summary", summary.Summary).
		Set("comments_fetched_at", summary.FetchedAt).
		Where(sq.Eq{"post_id": postID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building sentiment update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating sentiment for %s: %w", postID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking sentiment update for %s: %w", postID, err)
	}
	if affected == 0 {
		return fmt.Errorf("updating sentiment for %s: %w", postID, ErrPostNotFound)
	}
	return nil
}

// ListRecentIssues returns the newest ingested issues for the review view.
func (s *SQLiteStore) ListRecentIssues(ctx context.Context, limit int) ([]model.IssueRecord, error) {
	query, args, err := sqb.Select(
		"id", "issue_title", "issue_description", "address_component",
		"status", "priority", "department", "complaint_type",
		"reported_by", "reporter_username", "reporter_contact",
		"source", "source_url", "source_data", "created_by", "created_at",
	).
		From("issues").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building issue listing: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	defer rows.Close()

	var issues []model.IssueRecord
	for rows.Next() {
		rec, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating issue rows: %w", err)
	}
	return issues, nil
}

func scanIssue(rows *sql.Rows) (model.IssueRecord, error) {
	var rec model.IssueRecord
	var description, location, priority, department, complaintType sql.NullString
	var reportedBy, reporterUsername, reporterContact sql.NullString
	var source, sourceURL, sourceData sql.NullString

	err := rows.Scan(
		&rec.ID, &rec.Title, &description, &location,
		&rec.Status, &priority, &department, &complaintType,
		&reportedBy, &reporterUsername, &reporterContact,
		&source, &sourceURL, &sourceData, &rec.CreatedBy, &rec.CreatedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("scanning issue row: %w", err)
	}

	rec.Description = description.String
	rec.Location = location.String
	rec.Urgency = priority.String
	rec.Category = department.String
	rec.ComplaintType = complaintType.String
	rec.ReportedBy = reportedBy.String
	rec.ReporterUsername = reporterUsername.String
	rec.ReporterContact = reporterContact.String
	rec.Source = source.String
	rec.SourceURL = sourceURL.String
	if sourceData.Valid && sourceData.String != "" {
		// Audit blob is best-effort on read; a bad blob should not hide the row.
		_ = json.Unmarshal([]byte(sourceData.String), &rec.SourceData)
	}
	return rec, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
