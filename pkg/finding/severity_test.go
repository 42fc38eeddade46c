package finding

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"critical", Critical},
		{"CRITICAL", Critical},
		{" High ", High},
		{"medium", Medium},
		{"low", Low},
		{"info", Info},
		{"informational", Medium}, // unknown dialect defaults to medium
		{"", Medium},
		{"unknown", Medium},
	}
	for _, tt := range tests {
		if got := Parse(tt.in); got != tt.want {
			t.Errorf("Parse(%q) = %v; want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  Severity
	}{
		{9.5, Critical},
		{10, Critical},
		{9, Critical},
		{8.9, High},
		{7.0, High},
		{6.9, Medium},
		{4.0, Medium},
		{3.9, Low},
		{0.1, Low},
		{0, Info},
		{-1, Info},
	}
	for _, tt := range tests {
		if got := FromScore(tt.score); got != tt.want {
			t.Errorf("FromScore(%v) = %v; want %v", tt.score, got, tt.want)
		}
	}
}

func TestSeverityScoreOrdering(t *testing.T) {
	order := []Severity{Info, Low, Medium, High, Critical}
	for i := 1; i < len(order); i++ {
		if order[i].Score() <= order[i-1].Score() {
			t.Errorf("%v should rank above %v", order[i], order[i-1])
		}
	}
	if Severity("bogus").Score() != 0 {
		t.Error("unknown severity should score 0")
	}
	if Severity("bogus").IsValid() {
		t.Error("unknown severity should not be valid")
	}
}

func TestConfidencePriority(t *testing.T) {
	if Confirmed.Priority() <= Suspected.Priority() {
		t.Error("confirmed should outrank suspected")
	}
	if Suspected.Priority() <= NeedsReview.Priority() {
		t.Error("suspected should outrank needs-review")
	}
	if Confidence("nope").IsValid() {
		t.Error("unknown confidence should not be valid")
	}
}
