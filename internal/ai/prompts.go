package ai

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/issue_extraction.md
var issueExtractionPromptRaw string

//go:embed prompts/sentiment_summary.md
var sentimentSummaryPromptRaw string

// IssueExtractionTemplate is the parsed prompt template for classifying a
// mention into a structured issue. Parsed once at package init.
var IssueExtractionTemplate = template.Must(template.New("issue_extraction").Parse(issueExtractionPromptRaw))

// SentimentSummaryTemplate is the parsed prompt template for summarizing a
// reply thread into an overall sentiment.
var SentimentSummaryTemplate = template.Must(template.New("sentiment_summary").Parse(sentimentSummaryPromptRaw))
