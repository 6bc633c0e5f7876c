package domain

import "testing"

func TestParseCandidateStatusFromString(t *testing.T) {
	t.Parallel()

	if got, err := ParseCandidateStatusFromString(" success "); err != nil || got != CandidateStatusSuccess {
		t.Fatalf("got %v, %v", got, err)
	}
	if _, err := ParseCandidateStatusFromString("processing"); err == nil {
		t.Fatal("candidates have no processing state")
	}
}

func TestCandidateStatusIsTerminal(t *testing.T) {
	t.Parallel()

	if CandidateStatusPending.IsTerminal() {
		t.Fatal("pending is not terminal")
	}
	if !CandidateStatusSuccess.IsTerminal() || !CandidateStatusFailed.IsTerminal() {
		t.Fatal("success and failed are terminal")
	}
}

func TestCandidateValidate(t *testing.T) {
	t.Parallel()

	valid := Candidate{
		BatchID:    "b1",
		ExternalID: "EXT-1",
		Status:     CandidateStatusPending,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	missingExternal := valid
	missingExternal.ExternalID = ""
	if err := missingExternal.Validate(); err == nil {
		t.Fatal("blank external id should fail validation")
	}

	missingBatch := valid
	missingBatch.BatchID = ""
	if err := missingBatch.Validate(); err == nil {
		t.Fatal("blank batch id should fail validation")
	}
}
