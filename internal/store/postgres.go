package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicwatch/civicwatch/internal/model"
	"github.com/civicwatch/civicwatch/migrations"
)

// pgb builds queries with Postgres-style $n placeholders.
var pgb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Ensure PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore backs the ledger and record store with a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database, runs the embedded migrations,
// and returns the store.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := runMigrations(dsn); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func runMigrations(dsn string) error {
	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// HasProcessed returns true if the given mention id is already in the ledger.
func (s *PostgresStore) HasProcessed(ctx context.Context, externalID string) (bool, error) {
	query, args, err := pgb.Select("1").
		From("processed_mentions").
		Where(sq.Eq{"tweet_id": externalID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building ledger lookup: %w", err)
	}

	var exists int
	err = s.pool.QueryRow(ctx, query, args...).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking ledger for %s: %w", externalID, err)
	}
	return true, nil
}

// MarkProcessed records a mention id in the ledger; duplicates are no-ops.
func (s *PostgresStore) MarkProcessed(ctx context.Context, externalID string) error {
	query, args, err := pgb.Insert("processed_mentions").
		Columns("tweet_id", "processed_at").
		Values(externalID, time.Now().UTC()).
		Suffix("ON CONFLICT (tweet_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("building ledger mark: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("marking %s processed: %w", externalID, err)
	}
	return nil
}

// InsertIssue appends one ingested issue and returns its id.
func (s *PostgresStore) InsertIssue(ctx context.Context, issue model.IssueRecord) (string, error) {
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

	query, args, err := pgb.Insert("issues").
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
			issue.Source, issue.SourceURL, sourceData, issue.CreatedBy, createdAt,
		).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building issue insert: %w", err)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return "", fmt.Errorf("inserting issue: %w", err)
	}
	return id, nil
}

// SelectUnenrichedPosts returns up to limit published posts without sentiment data.
func (s *PostgresStore) SelectUnenrichedPosts(ctx context.Context, limit int) ([]model.PostRef, error) {
	query, args, err := pgb.Select("post_id", "issue_id", "x_post_url").
		From("issue_posts").
		Where(sq.Eq{"posted_to_x": true}).
		Where(sq.Eq{"comments_fetched_at": nil}).
		OrderBy("post_id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building post selection: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting unenriched posts: %w", err)
	}
	defer rows.Close()

	var posts []model.PostRef
	for rows.Next() {
		var p model.PostRef
		var sourceURL *string
		if err := rows.Scan(&p.PostID, &p.IssueID, &sourceURL); err != nil {
			return nil, fmt.Errorf("scanning post row: %w", err)
		}
		if sourceURL != nil {
			p.SourceURL = *sourceURL
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating post rows: %w", err)
	}
	return posts, nil
}

// UpdateSentiment patches all three enrichment columns in one statement.
func (s *PostgresStore) UpdateSentiment(ctx context.Context, postID string, summary model.EngagementSummary) error {
	query, args, err := pgb.Update("issue_posts").
		Set("overall_sentiment", summary.OverallSentiment).
		Set("sentiment_summary", summary.Summary).
		Set("comments_fetched_at", summary.FetchedAt).
		Where(sq.Eq{"post_id": postID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building sentiment update: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating sentiment for %s: %w", postID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating sentiment for %s: %w", postID, ErrPostNotFound)
	}
	return nil
}

// ListRecentIssues returns the newest ingested issues for the review view.
func (s *PostgresStore) ListRecentIssues(ctx context.Context, limit int) ([]model.IssueRecord, error) {
	query, args, err := pgb.Select(
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

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	defer rows.Close()

	var issues []model.IssueRecord
	for rows.Next() {
		var rec model.IssueRecord
		var description, location, priority, department, complaintType *string
		var reportedBy, reporterUsername, reporterContact *string
		var source, sourceURL *string
		var sourceData []byte

		err := rows.Scan(
			&rec.ID, &rec.Title, &description, &location,
			&rec.Status, &priority, &department, &complaintType,
			&reportedBy, &reporterUsername, &reporterContact,
			&source, &sourceURL, &sourceData, &rec.CreatedBy, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning issue row: %w", err)
		}

		rec.Description = deref(description)
		rec.Location = deref(location)
		rec.Urgency = deref(priority)
		rec.Category = deref(department)
		rec.ComplaintType = deref(complaintType)
		rec.ReportedBy = deref(reportedBy)
		rec.ReporterUsername = deref(reporterUsername)
		rec.ReporterContact = deref(reporterContact)
		rec.Source = deref(source)
		rec.SourceURL = deref(sourceURL)
		if len(sourceData) > 0 {
			_ = json.Unmarshal(sourceData, &rec.SourceData)
		}
		issues = append(issues, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating issue rows: %w", err)
	}
	return issues, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
