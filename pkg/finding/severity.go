package finding

import "strings"

// Severity represents the severity level of a security finding.
// All values are lowercase strings; sources reporting mixed-case
// labels are normalized through Parse.
type Severity string

const (
	// Critical represents immediate compromise (RCE, exposed credentials).
	Critical Severity = "critical"

	// High represents significant impact requiring prompt fix.
	High Severity = "high"

	// Medium represents moderate impact.
	Medium Severity = "medium"

	// Low represents limited impact (verbose errors, minor info leak).
	Low Severity = "low"

	// Info represents informational findings with no direct security impact.
	Info Severity = "info"
)

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, High, Medium, Low, Info:
		return true
	}
	return false
}

// Score returns a numeric score for sorting and comparison.
// Critical=5, High=4, Medium=3, Low=2, Info=1, Unknown=0.
func (s Severity) Score() int {
	switch s {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

// Parse maps a source-native severity label onto the canonical levels.
// Labels are lower-cased before matching; unrecognized or missing
// values default to Medium so an unknown dialect is never silently
// dropped below triage visibility.
func Parse(label string) Severity {
	s := Severity(strings.ToLower(strings.TrimSpace(label)))
	if s.IsValid() {
		return s
	}
	return Medium
}

// FromScore derives a severity from a CVSS-like numeric score for
// sources that report only a number instead of a label.
// Thresholds: >=9 critical, >=7 high, >=4 medium, >0 low, else info.
func FromScore(score float64) Severity {
	switch {
	case score >= 9:
		return Critical
	case score >= 7:
		return High
	case score >= 4:
		return Medium
	case score > 0:
		return Low
	default:
		return Info
	}
}
