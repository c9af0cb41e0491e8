package model

import (
	"context"
	"time"
)

// Mention is a single discovered post referencing the monitored account.
// Mentions are ephemeral: they are processed once and never stored as-is.
type Mention struct {
	ID             string    // stable external id, unique per platform
	Text           string    // raw post body
	AuthorID       string    // external author id
	ConversationID string    // thread root id (replies share it)
	CreatedAt      time.Time // platform timestamp
}

// Author is the snapshot of a mention's author taken at discovery time.
type Author struct {
	ID        string
	Username  string // handle without the leading @
	Name      string // display name
	Verified  bool
	Followers int
}

// UnknownAuthor is the fallback snapshot used when the search response
// carries no user expansion for a mention.
func UnknownAuthor(authorID string) Author {
	return Author{
		ID:       authorID,
		Username: "unknown",
		Name:     "Unknown User",
	}
}

// SearchOptions are the API-specific parameters for a recent-search call.
// The client fills defaults for zero values; it never builds the query itself.
type SearchOptions struct {
	TweetFields []string
	Expansions  []string
	UserFields  []string
	MaxResults  int
	SortOrder   string // "recency" or "relevancy"
}

// SearchResult is one page of recent-search output: the mentions plus the
// author expansions the API returned alongside them.
type SearchResult struct {
	Mentions []Mention
	Authors  map[string]Author // keyed by author id; may be missing entries
}

// AuthorFor returns the expanded author for the given id, or the unknown
// fallback when the expansion was absent.
func (r *SearchResult) AuthorFor(authorID string) Author {
	if a, ok := r.Authors[authorID]; ok {
		return a
	}
	return UnknownAuthor(authorID)
}

// MentionSearcher performs recent-search calls against the external platform.
type MentionSearcher interface {
	SearchRecent(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error)
}
