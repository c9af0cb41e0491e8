package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/civicwatch/civicwatch/internal/metrics"
	"github.com/civicwatch/civicwatch/internal/model"
)

func mentionResult(ids ...string) *model.SearchResult {
	r := &model.SearchResult{
		Authors: map[string]model.Author{
			"u1": {ID: "u1", Username: "jane", Name: "Jane Resident", Verified: true, Followers: 42},
		},
	}
	for _, id := range ids {
		r.Mentions = append(r.Mentions, model.Mention{
			ID:        id,
			Text:      "@city pothole near the library",
			AuthorID:  "u1",
			CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		})
	}
	return r
}

func validExtraction(m model.Mention) (*model.ExtractionResult, error) {
	return &model.ExtractionResult{
		IsValidIssue:  true,
		Title:         "Pothole near the library",
		Description:   "Citizen reports a pothole near the library",
		Location:      "library",
		Urgency:       model.UrgencyMedium,
		Category:      "Roads",
		ComplaintType: "Complaint",
	}, nil
}

func newTestDiscovery(s *fakeSearcher, l *fakeLedger, st *fakeStore, e *fakeExtractor, a *fakeAlerter) *DiscoveryJob {
	return NewDiscoveryJob(s, l, st, e, a, metrics.New(), discardLogger(), DiscoveryConfig{
		AccountUsername: "city",
		MaxResults:      10,
		ItemDelay:       0,
		ServiceUserID:   "svc-001",
	})
}

func TestDiscovery_PersistsValidMention(t *testing.T) {
	searcher := &fakeSearcher{respond: func(string) (*model.SearchResult, error) {
		return mentionResult("111"), nil
	}}
	ledger := newFakeLedger()
	store := newFakeStore()
	extractor := &fakeExtractor{respond: validExtraction}
	alerter := &fakeAlerter{}

	job := newTestDiscovery(searcher, ledger, store, extractor, alerter)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.inserted) != 1 {
		t.Fatalf("got %d inserts, want 1", len(store.inserted))
	}
	rec := store.inserted[0]
	if rec.Title != "Pothole near the library" || rec.Status != model.StatusPending {
		t.Errorf("record = %+v", rec)
	}
	if rec.Source != model.SourceTwitterMention {
		t.Errorf("Source = %q", rec.Source)
	}
	if rec.SourceURL != "https://x.com/jane/status/111" {
		t.Errorf("SourceURL = %q", rec.SourceURL)
	}
	if rec.ReportedBy != "Jane Resident" || rec.ReporterUsername != "jane" {
		t.Errorf("reporter fields = %q / %q", rec.ReportedBy, rec.ReporterUsername)
	}
	if rec.CreatedBy != "svc-001" {
		t.Errorf("CreatedBy = %q, want the service identity", rec.CreatedBy)
	}
	if rec.SourceData.TweetID != "111" || !rec.SourceData.VerifiedUser || rec.SourceData.Followers != 42 {
		t.Errorf("SourceData = %+v", rec.SourceData)
	}

	if len(ledger.marked) != 1 || ledger.marked[0] != "111" {
		t.Errorf("marked = %v, want [111]", ledger.marked)
	}

	wantQuery := "@city -from:city -is:retweet"
	if calls := searcher.calls(); len(calls) != 1 || calls[0] != wantQuery {
		t.Errorf("search calls = %v, want [%q]", calls, wantQuery)
	}
}

func TestDiscovery_SkipsAlreadyProcessed(t *testing.T) {
	searcher := &fakeSearcher{respond: func(string) (*model.SearchResult, error) {
		return mentionResult("111", "222"), nil
	}}
	ledger := newFakeLedger("111")
	store := newFakeStore()
	extracted := 0
	extractor := &fakeExtractor{respond: func(m model.Mention) (*model.ExtractionResult, error) {
		extracted++
		return validExtraction(m)
	}}

	job := newTestDiscovery(searcher, ledger, store, extractor, &fakeAlerter{})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if extracted != 1 {
		t.Errorf("extractor called %d times, want 1 (skip must not classify)", extracted)
	}
	if len(store.inserted) != 1 {
		t.Errorf("got %d inserts, want 1", len(store.inserted))
	}
	if len(ledger.marked) != 1 || ledger.marked[0] != "222" {
		t.Errorf("marked = %v, want [222] only", ledger.marked)
	}
}

func TestDiscovery_RejectionIsMarkedNotPersisted(t *testing.T) {
	searcher := &fakeSearcher{respond: func(string) (*model.SearchResult, error) {
		return mentionResult("111"), nil
	}}
	ledger := newFakeLedger()
	store := newFakeStore()
	extractor := &fakeExtractor{respond: func(model.Mention) (*model.ExtractionResult, error) {
		return nil, nil // model output unusable
	}}

	job := newTestDiscovery(searcher, ledger, store, extractor, &fakeAlerter{})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.inserted) != 0 {
		t.Errorf("rejected mention must not be persisted, got %d inserts", len(store.inserted))
	}
	if len(ledger.marked) != 1 || ledger.marked[0] != "111" {
		t.Errorf("marked = %v, want the rejection recorded", ledger.marked)
	}
}

func TestDiscovery_InvalidIssueIsMarkedNotPersisted(t *testing.T) {
	searcher := &fakeSearcher{respond: func(string) (*model.SearchResult, error) {
		return mentionResult("111"), nil
	}}
	ledger := newFakeLedger()
	store := newFakeStore()
	extractor := &fakeExtractor{respond: func(model.Mention) (*model.ExtractionResult, error) {
		return &model.ExtractionResult{IsValidIssue: false}, nil
	}}

	job := newTestDiscovery(searcher, ledger, store, extractor, &fakeAlerter{})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.inserted) != 0 {
		t.Error("non-issue must not be persisted")
	}
	if len(ledger.marked) != 1 {
		t.Errorf("marked = %v, want non-issue recorded", ledger.marked)
	}
}

func TestDiscovery_ExtractorErrorLeavesMentionUnmarked(t *testing.T) {
	searcher := &fakeSearcher{respond: func(string) (*model.SearchResult, error) {
		return mentionResult("111"), nil
	}}
	ledger := newFakeLedger()
	store := newFakeStore()
	extractor := &fakeExtractor{respond: func(model.Mention) (*model.ExtractionResult, error) {
		return nil, errors.New("render failure")
	}}

	job := newTestDiscovery(searcher, ledger, store, extractor, &fakeAlerter{})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("per-item errors must not fail the run, got %v", err)
	}

	if len(ledger.marked) != 0 {
		t.Errorf("marked = %v, errored mention must stay eligible for retry", ledger.marked)
	}
	if len(store.inserted) != 0 {
		t.Error("errored mention must not be persisted")
	}
}

func TestDiscovery_LedgerLookupFailureFailsClosed(t *testing.T) {
	searcher := &fakeSearcher{respond: func(string) (*model.SearchResult, error) {
		return mentionResult("111"), nil
	}}
	ledger := newFakeLedger()
	ledger.hasErr = errors.New("db locked")
	store := newFakeStore()
	extracted := 0
	extractor := &fakeExtractor{respond: func(m model.Mention) (*model.ExtractionResult, error) {
		extracted++
		return validExtraction(m)
	}}

	job := newTestDiscovery(searcher, ledger, store, extractor, &fakeAlerter{})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if extracted != 0 {
		t.Error("must not classify when the ledger cannot answer")
	}
	if len(store.inserted) != 0 || len(ledger.marked) != 0 {
		t.Error("must not write anything when the ledger cannot answer")
	}
}

func TestDiscovery_InsertFailureLeavesMentionUnmarked(t *testing.T) {
	searcher := &fakeSearcher{respond: func(string) (*model.SearchResult, error) {
		return mentionResult("111"), nil
	}}
	ledger := newFakeLedger()
	store := newFakeStore()
	store.insertErr = errors.New("disk full")
	extractor := &fakeExtractor{respond: validExtraction}

	job := newTestDiscovery(searcher, ledger, store, extractor, &fakeAlerter{})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(ledger.marked) != 0 {
		t.Errorf("marked = %v, failed insert must stay eligible for retry", ledger.marked)
	}
}

func TestDiscovery_RateLimitedSearchEndsRunQuietly(t *testing.T) {
	searcher := &fakeSearcher{respond: func(string) (*model.SearchResult, error) {
		return nil, &model.RateLimitError{Reset: time.Now().Add(10 * time.Minute)}
	}}
	ledger := newFakeLedger()
	store := newFakeStore()
	alerter := &fakeAlerter{}

	job := newTestDiscovery(searcher, ledger, store, &fakeExtractor{respond: validExtraction}, alerter)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("rate limit must not surface as run failure, got %v", err)
	}

	if alerter.count() != 0 {
		t.Error("rate limit must not alert the operator")
	}
	if len(store.inserted) != 0 || len(ledger.marked) != 0 {
		t.Error("nothing should be written on a rate-limited run")
	}
}

func TestDiscovery_AuthFailureAlertsOperator(t *testing.T) {
	searcher := &fakeSearcher{respond: func(string) (*model.SearchResult, error) {
		return nil, &model.AuthError{StatusCode: 401}
	}}
	alerter := &fakeAlerter{}

	job := newTestDiscovery(searcher, newFakeLedger(), newFakeStore(), &fakeExtractor{respond: validExtraction}, alerter)
	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("auth failure should fail the run")
	}

	if alerter.count() != 1 {
		t.Fatalf("got %d alerts, want 1", alerter.count())
	}
	if !strings.Contains(alerter.subjects[0], "authentication") {
		t.Errorf("alert subject = %q", alerter.subjects[0])
	}
}

func TestDiscovery_TransientSearchFailureDoesNotAlert(t *testing.T) {
	searcher := &fakeSearcher{respond: func(string) (*model.SearchResult, error) {
		return nil, &model.APIError{StatusCode: 500, Err: errors.New("oops")}
	}}
	alerter := &fakeAlerter{}

	job := newTestDiscovery(searcher, newFakeLedger(), newFakeStore(), &fakeExtractor{respond: validExtraction}, alerter)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("transient search failure should fail the run")
	}
	if alerter.count() != 0 {
		t.Error("transient failure must not alert the operator")
	}
}

func TestDiscovery_SecondRunIsIdempotent(t *testing.T) {
	searcher := &fakeSearcher{respond: func(string) (*model.SearchResult, error) {
		return mentionResult("111", "222"), nil
	}}
	ledger := newFakeLedger()
	store := newFakeStore()
	extractor := &fakeExtractor{respond: validExtraction}

	job := newTestDiscovery(searcher, ledger, store, extractor, &fakeAlerter{})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(store.inserted) != 2 {
		t.Errorf("got %d inserts across two runs, want 2 (no duplicates)", len(store.inserted))
	}
}

func TestDiscovery_OverlappingTriggerSkipped(t *testing.T) {
	searcher := &fakeSearcher{
		respond: func(string) (*model.SearchResult, error) {
			return mentionResult("111"), nil
		},
		delay: 200 * time.Millisecond,
	}
	ledger := newFakeLedger()
	store := newFakeStore()

	job := newTestDiscovery(searcher, ledger, store, &fakeExtractor{respond: validExtraction}, &fakeAlerter{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = job.Run(context.Background())
	}()

	time.Sleep(50 * time.Millisecond) // first run is inside the slow search
	start := time.Now()
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("overlapping trigger should be a quiet skip, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("overlapping trigger took %v, should return immediately", elapsed)
	}
	wg.Wait()

	if calls := searcher.calls(); len(calls) != 1 {
		t.Errorf("got %d search calls, want 1 (overlap must not search)", len(calls))
	}
	if len(store.inserted) != 1 {
		t.Errorf("got %d inserts, want 1", len(store.inserted))
	}
}

func TestDiscovery_EmptyResultIsQuiet(t *testing.T) {
	searcher := &fakeSearcher{respond: func(string) (*model.SearchResult, error) {
		return &model.SearchResult{}, nil
	}}
	extracted := 0
	extractor := &fakeExtractor{respond: func(m model.Mention) (*model.ExtractionResult, error) {
		extracted++
		return validExtraction(m)
	}}

	job := newTestDiscovery(searcher, newFakeLedger(), newFakeStore(), extractor, &fakeAlerter{})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if extracted != 0 {
		t.Error("nothing to classify on an empty result")
	}
}
