package normalize

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/muralikrish9/cyberroomba/pkg/finding"
	"github.com/muralikrish9/cyberroomba/pkg/jsonutil"
	"github.com/muralikrish9/cyberroomba/pkg/model"
)

// NucleiRecord mirrors one nuclei JSONL result line, reduced to the
// fields the normalizer consumes.
type NucleiRecord struct {
	TemplateID string     `json:"template-id"`
	Info       NucleiInfo `json:"info"`
	Host       string     `json:"host,omitempty"`
	MatchedAt  string     `json:"matched-at,omitempty"`
	Type       string     `json:"type,omitempty"`
	Extracted  []string   `json:"extracted-results,omitempty"`
}

type NucleiInfo struct {
	Name           string                `json:"name"`
	Severity       string                `json:"severity,omitempty"`
	Description    string                `json:"description,omitempty"`
	Classification *NucleiClassification `json:"classification,omitempty"`
}

type NucleiClassification struct {
	CVEIDs      []string `json:"cve-id,omitempty"`
	CWEIDs      []string `json:"cwe-id,omitempty"`
	CVSSScore   float64  `json:"cvss-score,omitempty"`
	CVSSMetrics string   `json:"cvss-metrics,omitempty"`
}

// GenericRecord is the lowest-common-denominator shape accepted from
// tools without a dedicated decoder: a title plus whatever severity
// and CVE hints the tool emits.
type GenericRecord struct {
	Title       string            `json:"title,omitempty"`
	Name        string            `json:"name,omitempty"`
	Severity    string            `json:"severity,omitempty"`
	Score       float64           `json:"score,omitempty"`
	CVE         string            `json:"cve,omitempty"`
	Category    string            `json:"category,omitempty"`
	Description string            `json:"description,omitempty"`
	Evidence    map[string]string `json:"evidence,omitempty"`
}

// FindingNormalizer converts raw attack tool records into canonical
// findings. Now is a test seam; nil uses the wall clock.
type FindingNormalizer struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// Findings converts every record the tool produced against one host.
// Records that fail to decode or carry no usable title are dropped
// individually; a bad record never discards its siblings. Severity
// resolution: explicit label first (unknown labels fall back to
// medium), numeric score thresholds when no label is present.
func (n *FindingNormalizer) Findings(tool, hostID string, records [][]byte) []model.Finding {
	var out []model.Finding
	for i, raw := range records {
		f, err := n.one(tool, hostID, raw)
		if err != nil {
			n.logger().Debug("dropping record", "tool", tool, "record", i, "error", err)
			continue
		}
		out = append(out, f)
	}
	return out
}

func (n *FindingNormalizer) one(tool, hostID string, raw []byte) (model.Finding, error) {
	switch tool {
	case "nuclei":
		var rec NucleiRecord
		if err := jsonutil.Unmarshal(raw, &rec); err != nil {
			return model.Finding{}, err
		}
		return n.fromNuclei(tool, hostID, rec)
	default:
		var rec GenericRecord
		if err := jsonutil.Unmarshal(raw, &rec); err != nil {
			return model.Finding{}, err
		}
		return n.fromGeneric(tool, hostID, rec)
	}
}

func (n *FindingNormalizer) fromNuclei(tool, hostID string, rec NucleiRecord) (model.Finding, error) {
	title := rec.Info.Name
	if title == "" {
		title = rec.TemplateID
	}
	if title == "" {
		return model.Finding{}, errMissingTitle
	}

	cls := rec.Info.Classification
	var score float64
	var metrics string
	var cveIDs, cweIDs []string
	if cls != nil {
		score = cls.CVSSScore
		metrics = cls.CVSSMetrics
		cveIDs = cls.CVEIDs
		cweIDs = cls.CWEIDs
	}

	f := model.Finding{
		HostID:       hostID,
		Source:       tool,
		Title:        title,
		Severity:     resolveSeverity(rec.Info.Severity, score),
		Confidence:   resolveConfidence(cveIDs, cweIDs),
		Description:  rec.Info.Description,
		Evidence:     pruneEvidence(nucleiEvidence(rec)),
		CVEs:         cveRefs(cveIDs, score, metrics),
		Status:       model.FindingOpen,
		DiscoveredAt: n.now(),
	}
	f.ID = findingID(&f)
	return f, nil
}

func (n *FindingNormalizer) fromGeneric(tool, hostID string, rec GenericRecord) (model.Finding, error) {
	title := rec.Title
	if title == "" {
		title = rec.Name
	}
	if title == "" {
		return model.Finding{}, errMissingTitle
	}

	var cveIDs []string
	if rec.CVE != "" {
		cveIDs = []string{rec.CVE}
	}

	f := model.Finding{
		HostID:       hostID,
		Source:       tool,
		Title:        title,
		Severity:     resolveSeverity(rec.Severity, rec.Score),
		Confidence:   resolveConfidence(cveIDs, nil),
		Category:     rec.Category,
		Description:  rec.Description,
		Evidence:     pruneEvidence(rec.Evidence),
		CVEs:         cveRefs(cveIDs, rec.Score, ""),
		Status:       model.FindingOpen,
		DiscoveredAt: n.now(),
	}
	f.ID = findingID(&f)
	return f, nil
}

var errMissingTitle = fmt.Errorf("missing title")

func (n *FindingNormalizer) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n *FindingNormalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now().UTC()
}

// resolveSeverity prefers the reported label; tools that report only a
// numeric score get threshold-derived severity instead.
func resolveSeverity(label string, score float64) finding.Severity {
	if strings.TrimSpace(label) == "" && score > 0 {
		return finding.FromScore(score)
	}
	return finding.Parse(label)
}

// resolveConfidence: a CVE association confirms the finding, a
// CWE-only classification flags it for review, anything else is a
// suspected result awaiting triage.
func resolveConfidence(cveIDs, cweIDs []string) finding.Confidence {
	if len(cveIDs) > 0 {
		return finding.Confirmed
	}
	if len(cweIDs) > 0 {
		return finding.NeedsReview
	}
	return finding.Suspected
}

func cveRefs(ids []string, score float64, metrics string) []model.CVERef {
	var refs []model.CVERef
	for _, id := range ids {
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		ref := model.CVERef{ID: id}
		if score > 0 {
			ref.CVSS = &model.CVSSInfo{BaseScore: score, Vector: metrics}
		}
		refs = append(refs, ref)
	}
	return refs
}

func nucleiEvidence(rec NucleiRecord) map[string]string {
	return map[string]string{
		"template":   rec.TemplateID,
		"matched_at": rec.MatchedAt,
		"type":       rec.Type,
		"extracted":  strings.Join(rec.Extracted, ", "),
	}
}

// pruneEvidence drops empty values so optional fields stay absent in
// the persisted document.
func pruneEvidence(ev map[string]string) map[string]string {
	out := make(map[string]string, len(ev))
	for k, v := range ev {
		if v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// findingID derives a stable id from the dedup key.
func findingID(f *model.Finding) string {
	h1, h2 := murmur3.Sum128([]byte(f.Key()))
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// Merge concatenates finding lists and deduplicates by the
// (host, source, title) key. The first occurrence wins; later
// duplicates are dropped entirely, their fields are not merged in.
// Output preserves encounter order.
func Merge(lists ...[]model.Finding) []model.Finding {
	seen := make(map[string]bool)
	var out []model.Finding
	for _, list := range lists {
		for _, f := range list {
			key := f.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, f)
		}
	}
	return out
}
