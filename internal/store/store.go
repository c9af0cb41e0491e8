package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/civicwatch/civicwatch/internal/config"
	"github.com/civicwatch/civicwatch/internal/model"
)

// ErrPostNotFound is returned when a sentiment patch targets a missing post.
var ErrPostNotFound = errors.New("post not found")

// Store is the full persistence surface of the pipeline: the idempotency
// ledger, the issue/record operations, and the review listing.
type Store interface {
	model.Ledger
	model.IssueStore
	ListRecentIssues(ctx context.Context, limit int) ([]model.IssueRecord, error)
	Close() error
}

// Open creates the store backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
