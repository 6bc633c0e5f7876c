package portal

// OutcomeKind tags the result of one submission attempt.
type OutcomeKind string

const (
	OutcomeAccepted OutcomeKind = "ACCEPTED"
	OutcomeRejected OutcomeKind = "REJECTED"
	OutcomeTimedOut OutcomeKind = "TIMED_OUT"
)

// Outcome is the single bounded-wait result of a candidate submission: the
// portal either acknowledged the upload, rejected it with a reason, or the
// deadline expired before a terminal signal arrived.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

func Accepted() Outcome { return Outcome{Kind: OutcomeAccepted} }

func Rejected(reason string) Outcome {
	return Outcome{Kind: OutcomeRejected, Reason: reason}
}

func TimedOut() Outcome {
	return Outcome{Kind: OutcomeTimedOut, Reason: "submission timed out waiting for portal response"}
}
