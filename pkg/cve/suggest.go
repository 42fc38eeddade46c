package cve

import (
	"sort"
	"strings"
)

// Tech is one technology fingerprint observed on a host, as reported
// by the probing tools.
type Tech struct {
	Name    string
	Version string
}

// Suggestion links a technology to the CVE ids whose vulnerable CPE
// product tokens match it.
type Suggestion struct {
	Tech   Tech
	CVEIDs []string
}

// Suggest proposes candidate CVEs for each technology by matching the
// normalized technology name against the product token of every
// vulnerable CPE in the index. Matching is a case-insensitive
// substring test in both directions, so "OpenSSH" matches product
// "openssh" and "openssh-server" alike. This is a lead generator, not
// a verdict: suggestions still need version-level triage.
//
// Output is deterministic: technologies keep input order, CVE ids are
// sorted, and technologies with no matches are omitted.
func Suggest(idx Index, techs []Tech) []Suggestion {
	var out []Suggestion
	for _, tech := range techs {
		name := normalizeTechName(tech.Name)
		if name == "" {
			continue
		}

		seen := make(map[string]bool)
		var ids []string
		for id, detail := range idx {
			for _, cpe := range detail.CPEs {
				product := productToken(cpe)
				if product == "" {
					continue
				}
				if strings.Contains(product, name) || strings.Contains(name, product) {
					if !seen[id] {
						seen[id] = true
						ids = append(ids, id)
					}
					break
				}
			}
		}

		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		out = append(out, Suggestion{Tech: tech, CVEIDs: ids})
	}
	return out
}

func normalizeTechName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	// Probe output often suffixes a version ("nginx/1.18.0").
	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(name, " ", "_")
}

// productToken extracts the product field from a 2.3 formatted CPE:
// cpe:2.3:part:vendor:product:version:... Wildcard and NA tokens
// yield empty so they never match.
func productToken(cpe string) string {
	parts := strings.Split(cpe, ":")
	if len(parts) < 5 || parts[0] != "cpe" || parts[1] != "2.3" {
		return ""
	}
	product := strings.ToLower(parts[4])
	if product == "*" || product == "-" {
		return ""
	}
	return product
}
