package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/civicwatch/civicwatch/internal/model"
)

// fakeProvider returns a canned response or error, recording the prompt.
type fakeProvider struct {
	response string
	err      error
	prompt   string
}

func (f *fakeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleMention() model.Mention {
	return model.Mention{
		ID:        "111",
		Text:      "@city the streetlight on 5th and Main has been out for a week",
		AuthorID:  "u1",
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sampleAuthor() model.Author {
	return model.Author{ID: "u1", Username: "jane", Name: "Jane Resident"}
}

func TestIssueClassifier_ValidIssue(t *testing.T) {
	provider := &fakeProvider{response: `{
		"is_valid_issue": true,
		"issue_title": "Streetlight outage",
		"issue_description": "Streetlight out at 5th and Main for a week",
		"location": "5th and Main",
		"urgency": "Medium",
		"category": "Electricity",
		"contact_info": "",
		"complaint_type": "Complaint"
	}`}

	c := NewIssueClassifier(provider, IssueExtractionTemplate, discardLogger())
	result, err := c.ExtractIssue(context.Background(), sampleMention(), sampleAuthor())
	if err != nil {
		t.Fatalf("ExtractIssue: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}
	if !result.IsValidIssue || result.Title != "Streetlight outage" {
		t.Errorf("result = %+v", result)
	}
	if !strings.Contains(provider.prompt, "streetlight on 5th and Main") {
		t.Error("prompt does not contain the mention text")
	}
	if !strings.Contains(provider.prompt, "jane") {
		t.Error("prompt does not contain the author username")
	}
}

func TestIssueClassifier_FencedResponse(t *testing.T) {
	provider := &fakeProvider{response: "```json\n{\"is_valid_issue\": true, \"issue_title\": \"T\", \"urgency\": \"High\", \"category\": \"Water\", \"complaint_type\": \"Complaint\"}\n```"}

	c := NewIssueClassifier(provider, IssueExtractionTemplate, discardLogger())
	result, err := c.ExtractIssue(context.Background(), sampleMention(), sampleAuthor())
	if err != nil || result == nil {
		t.Fatalf("ExtractIssue = (%+v, %v)", result, err)
	}
	if result.Urgency != model.UrgencyHigh {
		t.Errorf("Urgency = %q", result.Urgency)
	}
}

func TestIssueClassifier_ProviderFailureYieldsNil(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream down")}

	c := NewIssueClassifier(provider, IssueExtractionTemplate, discardLogger())
	result, err := c.ExtractIssue(context.Background(), sampleMention(), sampleAuthor())
	if err != nil {
		t.Fatalf("provider failure must not surface as error, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
}

func TestIssueClassifier_GarbageResponseYieldsNil(t *testing.T) {
	provider := &fakeProvider{response: "I am unable to classify this tweet."}

	c := NewIssueClassifier(provider, IssueExtractionTemplate, discardLogger())
	result, err := c.ExtractIssue(context.Background(), sampleMention(), sampleAuthor())
	if err != nil {
		t.Fatalf("unparseable response must not surface as error, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
}

func TestIssueClassifier_NormalizesEnums(t *testing.T) {
	provider := &fakeProvider{response: `{
		"is_valid_issue": true,
		"issue_title": "T",
		"urgency": "CRITICAL",
		"category": "something made up",
		"complaint_type": "emergency"
	}`}

	c := NewIssueClassifier(provider, IssueExtractionTemplate, discardLogger())
	result, err := c.ExtractIssue(context.Background(), sampleMention(), sampleAuthor())
	if err != nil || result == nil {
		t.Fatalf("ExtractIssue = (%+v, %v)", result, err)
	}

	if result.Urgency != model.UrgencyMedium {
		t.Errorf("unknown urgency should fall back to Medium, got %q", result.Urgency)
	}
	if result.Category != "Other" {
		t.Errorf("unknown category should fall back to Other, got %q", result.Category)
	}
	if result.ComplaintType != "Emergency" {
		t.Errorf("complaint type should match case-insensitively, got %q", result.ComplaintType)
	}
}

func TestNormalizeEnum(t *testing.T) {
	allowed := []string{"Low", "Medium", "High"}
	tests := []struct {
		in   string
		want string
	}{
		{"High", "High"},
		{"high", "High"},
		{"  LOW ", "Low"},
		{"urgent", "Medium"},
		{"", "Medium"},
	}
	for _, tt := range tests {
		if got := normalizeEnum(tt.in, allowed, "Medium"); got != tt.want {
			t.Errorf("normalizeEnum(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
