package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muralikrish9/cyberroomba/pkg/finding"
	"github.com/muralikrish9/cyberroomba/pkg/model"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func TestFindingsFromNuclei(t *testing.T) {
	n := &FindingNormalizer{Now: fixedNow}
	records := lines(`{
		"template-id": "CVE-2021-44228",
		"info": {
			"name": "Apache Log4j2 RCE",
			"severity": "critical",
			"description": "JNDI lookup injection.",
			"classification": {
				"cve-id": ["cve-2021-44228"],
				"cvss-score": 10.0,
				"cvss-metrics": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:C/C:H/I:H/A:H"
			}
		},
		"host": "https://foo.bar",
		"matched-at": "https://foo.bar/api",
		"type": "http"
	}`)

	out := n.Findings("nuclei", "host-1", records)
	require.Len(t, out, 1)

	f := out[0]
	assert.Equal(t, "host-1", f.HostID)
	assert.Equal(t, "nuclei", f.Source)
	assert.Equal(t, "Apache Log4j2 RCE", f.Title)
	assert.Equal(t, finding.Critical, f.Severity)
	assert.Equal(t, finding.Confirmed, f.Confidence, "CVE classification confirms the finding")
	assert.Equal(t, model.FindingOpen, f.Status)
	assert.Equal(t, fixedNow(), f.DiscoveredAt)

	require.Len(t, f.CVEs, 1)
	assert.Equal(t, "CVE-2021-44228", f.CVEs[0].ID, "cve ids are uppercased")
	require.NotNil(t, f.CVEs[0].CVSS)
	assert.Equal(t, 10.0, f.CVEs[0].CVSS.BaseScore)

	assert.Equal(t, "https://foo.bar/api", f.Evidence["matched_at"])
	assert.NotContains(t, f.Evidence, "extracted", "empty evidence values are pruned")
	assert.NotEmpty(t, f.ID)
}

func TestFindingsSeverityResolution(t *testing.T) {
	n := &FindingNormalizer{Now: fixedNow}

	cases := []struct {
		name string
		raw  string
		want finding.Severity
	}{
		{"label wins over score", `{"template-id":"t","info":{"name":"x","severity":"low","classification":{"cvss-score":9.8}}}`, finding.Low},
		{"score derives when label absent", `{"template-id":"t","info":{"name":"x","classification":{"cvss-score":9.8}}}`, finding.Critical},
		{"unknown label defaults medium", `{"template-id":"t","info":{"name":"x","severity":"whatever"}}`, finding.Medium},
		{"nothing defaults medium", `{"template-id":"t","info":{"name":"x"}}`, finding.Medium},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := n.Findings("nuclei", "h", lines(tc.raw))
			require.Len(t, out, 1)
			assert.Equal(t, tc.want, out[0].Severity)
		})
	}
}

func TestFindingsConfidenceTiers(t *testing.T) {
	n := &FindingNormalizer{Now: fixedNow}

	cveRec := `{"template-id":"t1","info":{"name":"a","classification":{"cve-id":["CVE-2020-1"]}}}`
	cweRec := `{"template-id":"t2","info":{"name":"b","classification":{"cwe-id":["CWE-79"]}}}`
	bareRec := `{"template-id":"t3","info":{"name":"c"}}`

	out := n.Findings("nuclei", "h", lines(cveRec, cweRec, bareRec))
	require.Len(t, out, 3)
	assert.Equal(t, finding.Confirmed, out[0].Confidence)
	assert.Equal(t, finding.NeedsReview, out[1].Confidence)
	assert.Equal(t, finding.Suspected, out[2].Confidence)
}

func TestFindingsDropBadRecordsIndividually(t *testing.T) {
	n := &FindingNormalizer{Now: fixedNow}
	records := lines(
		`{"template-id":"ok-1","info":{"name":"first"}}`,
		`{"info":{}}`,
		`not json at all`,
		`{"template-id":"ok-2","info":{"name":"second"}}`,
	)

	out := n.Findings("nuclei", "h", records)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Title)
	assert.Equal(t, "second", out[1].Title)
}

func TestFindingsTitleFallsBackToTemplateID(t *testing.T) {
	n := &FindingNormalizer{Now: fixedNow}
	out := n.Findings("nuclei", "h", lines(`{"template-id":"exposed-panel","info":{}}`))
	require.Len(t, out, 1)
	assert.Equal(t, "exposed-panel", out[0].Title)
}

func TestFindingsGenericTool(t *testing.T) {
	n := &FindingNormalizer{Now: fixedNow}
	out := n.Findings("sslprobe", "h", lines(`{
		"name": "Weak TLS cipher",
		"score": 5.3,
		"cve": "cve-2016-2183",
		"category": "crypto",
		"evidence": {"cipher": "3DES", "empty": ""}
	}`))
	require.Len(t, out, 1)

	f := out[0]
	assert.Equal(t, "sslprobe", f.Source)
	assert.Equal(t, "Weak TLS cipher", f.Title)
	assert.Equal(t, finding.Medium, f.Severity)
	assert.Equal(t, finding.Confirmed, f.Confidence)
	assert.Equal(t, "crypto", f.Category)
	assert.Equal(t, map[string]string{"cipher": "3DES"}, f.Evidence)
	require.Len(t, f.CVEs, 1)
	assert.Equal(t, "CVE-2016-2183", f.CVEs[0].ID)
}

func TestMergeFirstWins(t *testing.T) {
	early := model.Finding{HostID: "h", Source: "nuclei", Title: "Dup", Severity: finding.High}
	late := model.Finding{HostID: "h", Source: "nuclei", Title: "Dup", Severity: finding.Low, Description: "later copy"}
	other := model.Finding{HostID: "h", Source: "nuclei", Title: "Unique"}
	otherHost := model.Finding{HostID: "h2", Source: "nuclei", Title: "Dup"}

	merged := Merge([]model.Finding{early, other}, []model.Finding{late, otherHost})
	require.Len(t, merged, 3)
	assert.Equal(t, finding.High, merged[0].Severity, "first occurrence wins, no field merging")
	assert.Empty(t, merged[0].Description)
	assert.Equal(t, "Unique", merged[1].Title)
	assert.Equal(t, "h2", merged[2].HostID, "same title on another host is not a duplicate")
}

func TestFindingIDStable(t *testing.T) {
	n := &FindingNormalizer{Now: fixedNow}
	rec := `{"template-id":"t","info":{"name":"x"}}`
	a := n.Findings("nuclei", "h", lines(rec))[0].ID
	b := n.Findings("nuclei", "h", lines(rec))[0].ID
	c := n.Findings("nuclei", "h2", lines(rec))[0].ID
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
