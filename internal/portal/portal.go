package portal

import "context"

// Credential is a resolved plaintext portal login. It is handed to Open and
// must not be retained, logged, or persisted beyond that call.
type Credential struct {
	Username string
	Password string
}

// MarkEntry is one NOS score pair within a submission.
type MarkEntry struct {
	NOSIdentifier  string `json:"nosIdentifier"`
	TheoryMarks    *int   `json:"theoryMarks,omitempty"`
	PracticalMarks *int   `json:"practicalMarks,omitempty"`
}

// Submission is the payload for one candidate's marks upload.
type Submission struct {
	ExternalID    string
	PortalBatchID string
	Marks         []MarkEntry
}

// Session is one authenticated, stateful connection to the portal, valid for
// the duration of one batch pass. Implementations are not safe for concurrent
// use; the dispatcher guarantees a single owner.
type Session interface {
	// Submit attempts exactly one marks upload for a candidate and resolves
	// within a bounded deadline to a tagged outcome. Timeouts surface as
	// OutcomeTimedOut, never as a hang.
	Submit(ctx context.Context, sub Submission) Outcome

	// Recover brings the session back to a known state after an item failure.
	// An error here means the session is unusable and the batch must abort.
	Recover(ctx context.Context) error

	// Close releases the session. Idempotent; errors are advisory only.
	Close() error
}

// Opener establishes portal sessions. Open failures are classified via
// SessionError as auth or connectivity.
type Opener interface {
	Open(ctx context.Context, cred Credential) (Session, error)
}
