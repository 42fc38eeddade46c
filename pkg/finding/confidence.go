package finding

// Confidence represents how certain the pipeline is about a finding.
// It drives triage ordering, not severity.
type Confidence string

const (
	// Confirmed means the source reported a hard, externally verifiable
	// identifier (an explicit CVE id) together with the finding.
	Confirmed Confidence = "confirmed"

	// Suspected is the default for pattern-matched findings without a
	// hard identifier.
	Suspected Confidence = "suspected"

	// NeedsReview marks findings backed only by a loosely matched
	// vulnerability class, and all correlator suggestions.
	NeedsReview Confidence = "needs-review"
)

// IsValid reports whether c is a recognized confidence level.
func (c Confidence) IsValid() bool {
	switch c {
	case Confirmed, Suspected, NeedsReview:
		return true
	}
	return false
}

// Priority returns numeric priority for sorting (higher = more certain).
func (c Confidence) Priority() int {
	switch c {
	case Confirmed:
		return 3
	case Suspected:
		return 2
	case NeedsReview:
		return 1
	default:
		return 0
	}
}
