package jobs

// Outcome describes how a single mention fared inside a discovery run. It
// decides whether the mention is marked processed: rejections and persisted
// issues are final, while skips and errors leave the mention eligible for a
// later run.
type Outcome string

const (
	// OutcomeSkipped means the ledger already held the mention.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRejected means classification decided this is not an issue.
	OutcomeRejected Outcome = "rejected"
	// OutcomePersisted means an issue record was written.
	OutcomePersisted Outcome = "persisted"
	// OutcomeErrored means a transient failure; the mention is retried on
	// the next run.
	OutcomeErrored Outcome = "errored"
)

// final reports whether the outcome should be recorded in the ledger.
func (o Outcome) final() bool {
	return o == OutcomeRejected || o == OutcomePersisted
}
