package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/civicwatch/civicwatch/internal/model"
)

const recentSearchPath = "/tweets/search/recent"

// Ensure Client implements model.MentionSearcher.
var _ model.MentionSearcher = (*Client)(nil)

// Client calls the X recent-search API. It classifies responses into typed
// outcomes (rate-limited, auth failure, transient) and never retries; retry
// policy belongs to the orchestrators.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
}

// NewClient creates a search client against the given API base URL.
func NewClient(baseURL, bearerToken string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		bearerToken: bearerToken,
		httpClient:  httpClient,
	}
}

// MentionQuery builds the discovery query: mentions of the account, excluding
// self-authored posts and retweets.
func MentionQuery(username string) string {
	u := strings.TrimPrefix(username, "@")
	return fmt.Sprintf("@%s -from:%s -is:retweet", u, u)
}

// ConversationQuery builds the reply-thread query for a published post.
func ConversationQuery(tweetID, username string) string {
	u := strings.TrimPrefix(username, "@")
	return fmt.Sprintf("conversation_id:%s -from:%s -is:retweet", tweetID, u)
}

// StatusURL builds the public deep link for a post.
func StatusURL(username, tweetID string) string {
	return fmt.Sprintf("https://x.com/%s/status/%s", strings.TrimPrefix(username, "@"), tweetID)
}

var statusURLPattern = regexp.MustCompile(`status/(\d+)`)

// TweetIDFromStatusURL extracts the numeric post id from a status deep link.
// Returns false when the URL does not match the expected shape.
func TweetIDFromStatusURL(link string) (string, bool) {
	m := statusURLPattern.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// tweetObject mirrors one tweet in the recent-search response.
type tweetObject struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	AuthorID       string `json:"author_id"`
	ConversationID string `json:"conversation_id"`
	CreatedAt      string `json:"created_at"`
}

// userObject mirrors one entry of the user expansion lookup.
type userObject struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Username      string `json:"username"`
	Verified      bool   `json:"verified"`
	PublicMetrics struct {
		FollowersCount int `json:"followers_count"`
	} `json:"public_metrics"`
}

// searchResponse mirrors the relevant fields of the recent-search response.
type searchResponse struct {
	Data     []tweetObject `json:"data"`
	Includes *struct {
		Users []userObject `json:"users"`
	} `json:"includes"`
}

// SearchRecent performs one GET against /tweets/search/recent. The query is
// built by the caller; opts carry the API-specific parameters. Status mapping:
// 429 returns *model.RateLimitError with the server's reset hint, 401 returns
// *model.AuthError, everything else non-200 (including 400 for malformed or
// deleted targets) returns *model.APIError.
func (c *Client) SearchRecent(ctx context.Context, query string, opts model.SearchOptions) (*model.SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)
	if len(opts.TweetFields) > 0 {
		params.Set("tweet.fields", strings.Join(opts.TweetFields, ","))
	}
	if len(opts.Expansions) > 0 {
		params.Set("expansions", strings.Join(opts.Expansions, ","))
	}
	if len(opts.UserFields) > 0 {
		params.Set("user.fields", strings.Join(opts.UserFields, ","))
	}
	if opts.MaxResults > 0 {
		params.Set("max_results", strconv.Itoa(opts.MaxResults))
	}
	if opts.SortOrder != "" {
		params.Set("sort_order", opts.SortOrder)
	}

	reqURL := c.baseURL + recentSearchPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.APIError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &model.RateLimitError{Reset: parseRateLimitReset(resp.Header.Get("x-rate-limit-reset"))}
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &model.AuthError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &model.APIError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &model.APIError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode search response: %w", err)}
	}

	result := &model.SearchResult{
		Mentions: make([]model.Mention, 0, len(sr.Data)),
		Authors:  make(map[string]model.Author),
	}
	for _, t := range sr.Data {
		m := model.Mention{
			ID:             t.ID,
			Text:           t.Text,
			AuthorID:       t.AuthorID,
			ConversationID: t.ConversationID,
		}
		if t.CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, t.CreatedAt); err == nil {
				m.CreatedAt = ts
			}
		}
		result.Mentions = append(result.Mentions, m)
	}
	if sr.Includes != nil {
		for _, u := range sr.Includes.Users {
			result.Authors[u.ID] = model.Author{
				ID:        u.ID,
				Username:  u.Username,
				Name:      u.Name,
				Verified:  u.Verified,
				Followers: u.PublicMetrics.FollowersCount,
			}
		}
	}

	return result, nil
}

// parseRateLimitReset parses the x-rate-limit-reset header (epoch seconds).
// Returns the zero time if absent or unparseable.
func parseRateLimitReset(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	epoch, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(epoch, 0)
}
