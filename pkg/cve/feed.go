// Package cve builds an in-memory CVE index from NVD 2.0 feed data and
// correlates it against findings and host technology fingerprints. The
// index is immutable once built; a job builds it at start and reads it
// for the rest of the run.
package cve

import (
	"fmt"
	"strings"

	"github.com/muralikrish9/cyberroomba/pkg/jsonutil"
	"github.com/muralikrish9/cyberroomba/pkg/model"
)

// Feed shapes, reduced to the NVD 2.0 fields the index consumes.

type Feed struct {
	Vulnerabilities []FeedVulnerability `json:"vulnerabilities"`
}

type FeedVulnerability struct {
	CVE FeedCVE `json:"cve"`
}

type FeedCVE struct {
	ID             string              `json:"id"`
	Metrics        FeedMetrics         `json:"metrics"`
	Configurations []FeedConfiguration `json:"configurations"`
}

type FeedMetrics struct {
	CVSSMetricV31 []FeedCVSSMetric `json:"cvssMetricV31,omitempty"`
	CVSSMetricV30 []FeedCVSSMetric `json:"cvssMetricV30,omitempty"`
	CVSSMetricV2  []FeedCVSSMetric `json:"cvssMetricV2,omitempty"`
}

type FeedCVSSMetric struct {
	CVSSData FeedCVSSData `json:"cvssData"`
}

type FeedCVSSData struct {
	BaseScore    float64 `json:"baseScore"`
	VectorString string  `json:"vectorString"`
}

type FeedConfiguration struct {
	Nodes []FeedNode `json:"nodes"`
}

type FeedNode struct {
	CPEMatch []FeedCPEMatch `json:"cpeMatch"`
	Children []FeedNode     `json:"children,omitempty"`
}

type FeedCPEMatch struct {
	Vulnerable bool   `json:"vulnerable"`
	Criteria   string `json:"criteria"`
}

// Index maps CVE id to its detail entry. Read-only after BuildIndex.
type Index map[string]model.CveDetail

// ParseFeed decodes one NVD 2.0 feed document.
func ParseFeed(raw []byte) (*Feed, error) {
	var feed Feed
	if err := jsonutil.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("cve: parse feed: %w", err)
	}
	return &feed, nil
}

// BuildIndex flattens feed entries into the lookup index. The highest
// available CVSS version supplies score and vector; only CPE criteria
// marked vulnerable are collected. Entries without an id are skipped.
// Later feeds passed to the same call overwrite earlier ids.
func BuildIndex(feeds ...*Feed) Index {
	idx := make(Index)
	for _, feed := range feeds {
		if feed == nil {
			continue
		}
		for _, vuln := range feed.Vulnerabilities {
			id := strings.ToUpper(strings.TrimSpace(vuln.CVE.ID))
			if id == "" {
				continue
			}
			detail := model.CveDetail{ID: id}
			if data, ok := bestMetric(vuln.CVE.Metrics); ok {
				score := data.BaseScore
				detail.BaseScore = &score
				detail.Vector = data.VectorString
			}
			for _, cfg := range vuln.CVE.Configurations {
				collectCPEs(&detail, cfg.Nodes)
			}
			idx[id] = detail
		}
	}
	return idx
}

func bestMetric(m FeedMetrics) (FeedCVSSData, bool) {
	for _, metrics := range [][]FeedCVSSMetric{m.CVSSMetricV31, m.CVSSMetricV30, m.CVSSMetricV2} {
		if len(metrics) > 0 {
			return metrics[0].CVSSData, true
		}
	}
	return FeedCVSSData{}, false
}

func collectCPEs(detail *model.CveDetail, nodes []FeedNode) {
	for _, node := range nodes {
		for _, match := range node.CPEMatch {
			if match.Vulnerable && match.Criteria != "" {
				detail.CPEs = append(detail.CPEs, match.Criteria)
			}
		}
		collectCPEs(detail, node.Children)
	}
}
