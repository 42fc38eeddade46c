package cve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muralikrish9/cyberroomba/pkg/model"
)

const sampleFeed = `{
	"vulnerabilities": [
		{
			"cve": {
				"id": "CVE-2024-0001",
				"metrics": {
					"cvssMetricV31": [
						{"cvssData": {"baseScore": 9.8, "vectorString": "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"}}
					]
				},
				"configurations": [
					{
						"nodes": [
							{
								"cpeMatch": [
									{"vulnerable": true, "criteria": "cpe:2.3:a:openbsd:openssh:9.0:*:*:*:*:*:*:*"},
									{"vulnerable": false, "criteria": "cpe:2.3:o:linux:linux_kernel:*:*:*:*:*:*:*:*"}
								]
							}
						]
					}
				]
			}
		},
		{
			"cve": {
				"id": "CVE-2024-0002",
				"metrics": {
					"cvssMetricV2": [
						{"cvssData": {"baseScore": 5.0, "vectorString": "AV:N/AC:L/Au:N/C:P/I:N/A:N"}}
					]
				},
				"configurations": [
					{
						"nodes": [
							{"cpeMatch": [{"vulnerable": true, "criteria": "cpe:2.3:a:f5:nginx:1.18.0:*:*:*:*:*:*:*"}]}
						]
					}
				]
			}
		},
		{
			"cve": {"id": "CVE-2024-0003", "metrics": {}}
		}
	]
}`

func buildTestIndex(t *testing.T) Index {
	t.Helper()
	feed, err := ParseFeed([]byte(sampleFeed))
	require.NoError(t, err)
	return BuildIndex(feed)
}

func TestBuildIndex(t *testing.T) {
	idx := buildTestIndex(t)
	require.Len(t, idx, 3)

	ssh := idx["CVE-2024-0001"]
	require.NotNil(t, ssh.BaseScore)
	assert.Equal(t, 9.8, *ssh.BaseScore)
	assert.Equal(t, "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", ssh.Vector)
	assert.Equal(t, []string{"cpe:2.3:a:openbsd:openssh:9.0:*:*:*:*:*:*:*"}, ssh.CPEs,
		"only vulnerable criteria are collected")

	bare := idx["CVE-2024-0003"]
	assert.Nil(t, bare.BaseScore, "entry without metrics carries no score")
}

func TestParseFeedRejectsGarbage(t *testing.T) {
	_, err := ParseFeed([]byte("not a feed"))
	assert.Error(t, err)
}

func TestEnrichBackfillsAbsentFields(t *testing.T) {
	idx := buildTestIndex(t)
	findings := []model.Finding{
		{
			Title: "SSH issue",
			CVEs:  []model.CVERef{{ID: "CVE-2024-0001"}},
		},
	}

	n := Enrich(idx, findings)
	assert.Equal(t, 1, n)

	ref := findings[0].CVEs[0]
	require.NotNil(t, ref.CVSS)
	assert.Equal(t, 9.8, ref.CVSS.BaseScore)
	assert.NotEmpty(t, ref.CVSS.Vector)
}

func TestEnrichNeverOverwrites(t *testing.T) {
	idx := buildTestIndex(t)
	findings := []model.Finding{
		{
			CVEs: []model.CVERef{{
				ID:   "CVE-2024-0001",
				CVSS: &model.CVSSInfo{BaseScore: 7.5, Vector: "tool-reported"},
			}},
		},
	}

	n := Enrich(idx, findings)
	assert.Zero(t, n)
	assert.Equal(t, 7.5, findings[0].CVEs[0].CVSS.BaseScore, "tool-reported score must survive enrichment")
	assert.Equal(t, "tool-reported", findings[0].CVEs[0].CVSS.Vector)
}

func TestEnrichUnindexedPassesThrough(t *testing.T) {
	idx := buildTestIndex(t)
	findings := []model.Finding{
		{CVEs: []model.CVERef{{ID: "CVE-1999-9999"}}},
	}

	n := Enrich(idx, findings)
	assert.Zero(t, n)
	assert.Nil(t, findings[0].CVEs[0].CVSS)
}

func TestEnrichFillsVectorOnPartialRef(t *testing.T) {
	idx := buildTestIndex(t)
	findings := []model.Finding{
		{CVEs: []model.CVERef{{ID: "cve-2024-0002", CVSS: &model.CVSSInfo{BaseScore: 5.0}}}},
	}

	n := Enrich(idx, findings)
	assert.Equal(t, 1, n, "lowercase ids still resolve; missing vector is filled")
	assert.Equal(t, 5.0, findings[0].CVEs[0].CVSS.BaseScore)
	assert.NotEmpty(t, findings[0].CVEs[0].CVSS.Vector)
}

func TestSuggestMatchesProductToken(t *testing.T) {
	idx := buildTestIndex(t)

	out := Suggest(idx, []Tech{
		{Name: "OpenSSH", Version: "9.0"},
		{Name: "nginx/1.18.0"},
		{Name: "WordPress"},
	})

	require.Len(t, out, 2, "technologies without matches are omitted")
	assert.Equal(t, "OpenSSH", out[0].Tech.Name)
	assert.Equal(t, []string{"CVE-2024-0001"}, out[0].CVEIDs)
	assert.Equal(t, []string{"CVE-2024-0002"}, out[1].CVEIDs)
}

func TestSuggestDeterministic(t *testing.T) {
	idx := buildTestIndex(t)
	techs := []Tech{{Name: "openssh"}, {Name: "nginx"}}

	first := Suggest(idx, techs)
	second := Suggest(idx, techs)
	assert.Equal(t, first, second)
}

func TestProductToken(t *testing.T) {
	assert.Equal(t, "openssh", productToken("cpe:2.3:a:openbsd:openssh:9.0:*:*:*:*:*:*:*"))
	assert.Empty(t, productToken("cpe:2.3:a:vendor:*:*"))
	assert.Empty(t, productToken("cpe:2.3:a:vendor:-:*"))
	assert.Empty(t, productToken("cpe:/a:legacy:format"))
	assert.Empty(t, productToken("garbage"))
}
