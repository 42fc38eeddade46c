package cve

import (
	"strings"

	"github.com/muralikrish9/cyberroomba/pkg/model"
)

// Enrich backfills CVSS data onto every CVE reference the findings
// carry. Only absent fields are filled: a score or vector the tool
// already reported is never overwritten, and a reference whose id is
// not in the index passes through unchanged. Returns the count of
// references that received new data.
func Enrich(idx Index, findings []model.Finding) int {
	enriched := 0
	for i := range findings {
		for j := range findings[i].CVEs {
			if enrichRef(idx, &findings[i].CVEs[j]) {
				enriched++
			}
		}
	}
	return enriched
}

func enrichRef(idx Index, ref *model.CVERef) bool {
	detail, ok := idx[strings.ToUpper(ref.ID)]
	if !ok {
		return false
	}

	changed := false
	if detail.BaseScore != nil {
		if ref.CVSS == nil {
			ref.CVSS = &model.CVSSInfo{}
		}
		if ref.CVSS.BaseScore == 0 {
			ref.CVSS.BaseScore = *detail.BaseScore
			changed = true
		}
		if ref.CVSS.Vector == "" && detail.Vector != "" {
			ref.CVSS.Vector = detail.Vector
			changed = true
		}
	} else if ref.CVSS == nil && detail.Vector != "" {
		ref.CVSS = &model.CVSSInfo{Vector: detail.Vector}
		changed = true
	}
	return changed
}
