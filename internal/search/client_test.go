package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/civicwatch/civicwatch/internal/model"
)

func TestMentionQuery(t *testing.T) {
	want := "@CityDesk -from:CityDesk -is:retweet"
	if got := MentionQuery("CityDesk"); got != want {
		t.Errorf("MentionQuery = %q, want %q", got, want)
	}
	if got := MentionQuery("@CityDesk"); got != want {
		t.Errorf("MentionQuery with @ = %q, want %q", got, want)
	}
}

func TestConversationQuery(t *testing.T) {
	want := "conversation_id:12345 -from:CityDesk -is:retweet"
	if got := ConversationQuery("12345", "@CityDesk"); got != want {
		t.Errorf("ConversationQuery = %q, want %q", got, want)
	}
}

func TestStatusURL(t *testing.T) {
	want := "https://x.com/resident1/status/999"
	if got := StatusURL("@resident1", "999"); got != want {
		t.Errorf("StatusURL = %q, want %q", got, want)
	}
}

func TestTweetIDFromStatusURL(t *testing.T) {
	tests := []struct {
		link   string
		wantID string
		wantOK bool
	}{
		{"https://x.com/someone/status/1234567890", "1234567890", true},
		{"https://twitter.com/someone/status/42?s=20", "42", true},
		{"https://x.com/someone", "", false},
		{"", "", false},
		{"https://x.com/someone/status/abc", "", false},
	}
	for _, tt := range tests {
		id, ok := TweetIDFromStatusURL(tt.link)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("TweetIDFromStatusURL(%q) = (%q, %v), want (%q, %v)", tt.link, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestSearchRecent_Success(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"id": "111", "text": "pothole on elm street", "author_id": "u1", "conversation_id": "111", "created_at": "2026-08-01T12:00:00Z"},
				{"id": "222", "text": "thanks for fixing it", "author_id": "u2", "conversation_id": "111"}
			],
			"includes": {
				"users": [
					{"id": "u1", "name": "Jane Resident", "username": "jane", "verified": true, "public_metrics": {"followers_count": 150}}
				]
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", srv.Client())
	result, err := c.SearchRecent(context.Background(), MentionQuery("city"), model.SearchOptions{
		TweetFields: []string{"text", "author_id"},
		MaxResults:  10,
	})
	if err != nil {
		t.Fatalf("SearchRecent: %v", err)
	}

	if gotQuery != "@city -from:city -is:retweet" {
		t.Errorf("query param = %q", gotQuery)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(result.Mentions) != 2 {
		t.Fatalf("got %d mentions, want 2", len(result.Mentions))
	}
	if result.Mentions[0].ID != "111" || result.Mentions[0].Text != "pothole on elm street" {
		t.Errorf("mention[0] = %+v", result.Mentions[0])
	}
	if result.Mentions[0].CreatedAt.IsZero() {
		t.Error("created_at not parsed")
	}

	a := result.AuthorFor("u1")
	if a.Username != "jane" || !a.Verified || a.Followers != 150 {
		t.Errorf("author u1 = %+v", a)
	}
	unknown := result.AuthorFor("u2")
	if unknown.Username != "unknown" {
		t.Errorf("missing expansion should fall back, got %+v", unknown)
	}
}

func TestSearchRecent_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta": {"result_count": 0}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", srv.Client())
	result, err := c.SearchRecent(context.Background(), "q", model.SearchOptions{})
	if err != nil {
		t.Fatalf("SearchRecent: %v", err)
	}
	if len(result.Mentions) != 0 {
		t.Errorf("got %d mentions, want 0", len(result.Mentions))
	}
}

func TestSearchRecent_RateLimited(t *testing.T) {
	reset := time.Now().Add(10 * time.Minute).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", srv.Client())
	_, err := c.SearchRecent(context.Background(), "q", model.SearchOptions{})

	var rateErr *model.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected *model.RateLimitError, got %T: %v", err, err)
	}
	if rateErr.Reset.Unix() != reset {
		t.Errorf("Reset = %v, want epoch %d", rateErr.Reset, reset)
	}
}

func TestSearchRecent_RateLimitedWithoutResetHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", srv.Client())
	_, err := c.SearchRecent(context.Background(), "q", model.SearchOptions{})

	var rateErr *model.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected *model.RateLimitError, got %T: %v", err, err)
	}
	if !rateErr.Reset.IsZero() {
		t.Errorf("Reset = %v, want zero time", rateErr.Reset)
	}
}

func TestSearchRecent_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-token", srv.Client())
	_, err := c.SearchRecent(context.Background(), "q", model.SearchOptions{})

	var authErr *model.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *model.AuthError, got %T: %v", err, err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", authErr.StatusCode)
	}
}

func TestSearchRecent_BadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors": [{"message": "invalid query"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", srv.Client())
	_, err := c.SearchRecent(context.Background(), "q", model.SearchOptions{})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
}

func TestSearchRecent_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	c := NewClient(srv.URL, "tok", &http.Client{Timeout: time.Second})
	_, err := c.SearchRecent(context.Background(), "q", model.SearchOptions{})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport failure", apiErr.StatusCode)
	}
}
