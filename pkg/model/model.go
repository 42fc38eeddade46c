// Package model defines the canonical document shapes persisted by the
// pipeline: scoped targets, fused host records, normalized findings,
// CVE index entries, and job runs.
package model

import (
	"time"

	"github.com/muralikrish9/cyberroomba/pkg/finding"
)

// AssetType classifies what kind of scoped asset a Target describes.
type AssetType string

const (
	AssetDomain   AssetType = "domain"
	AssetHostname AssetType = "hostname"
	AssetIP       AssetType = "ip"
	AssetCIDR     AssetType = "cidr"
	AssetURL      AssetType = "url"
)

// TargetStatus is the lifecycle state of a Target. Targets are never
// deleted, only retired.
type TargetStatus string

const (
	TargetActive  TargetStatus = "active"
	TargetSnoozed TargetStatus = "snoozed"
	TargetRetired TargetStatus = "retired"
)

// Target is a scoped asset owned by a program.
// (Program, Asset.Value) is unique across the targets collection.
type Target struct {
	ID        string       `json:"id"`
	Program   string       `json:"program"`
	Asset     Asset        `json:"asset"`
	Status    TargetStatus `json:"status"`
	FirstSeen time.Time    `json:"first_seen"`
	LastSeen  time.Time    `json:"last_seen"`
}

// Asset is the typed value of a scoped target.
type Asset struct {
	Type  AssetType `json:"type"`
	Value string    `json:"value"`
}

// Port is one open port observed on a host.
type Port struct {
	Number   int    `json:"number"`
	Protocol string `json:"protocol"`
	Service  string `json:"service,omitempty"`
}

// Provenance records which tool contributed an observation to a
// fused host record.
type Provenance struct {
	Tool   string `json:"tool"`
	RunID  string `json:"run_id"`
	Detail string `json:"detail,omitempty"`
}

// HostRecord is the canonical multi-source recon result: one record
// per unique host string observed for a target within a run batch.
// The host key is the literal host/subdomain string as reported by
// the sources; no DNS canonicalization is applied.
type HostRecord struct {
	ID           string            `json:"id"`
	TargetID     string            `json:"target_id"`
	RunID        string            `json:"run_id"`
	Host         string            `json:"host"`
	IPs          []string          `json:"ips,omitempty"`
	Ports        []Port            `json:"ports,omitempty"`
	Technologies []string          `json:"technologies,omitempty"`
	Alive        bool              `json:"alive"`
	Fingerprint  map[string]string `json:"fingerprint,omitempty"`
	Provenance   []Provenance      `json:"provenance,omitempty"`
}

// IP returns a single representative address for display: the first
// address observed, or empty when none resolved.
func (h *HostRecord) IP() string {
	if len(h.IPs) == 0 {
		return ""
	}
	return h.IPs[0]
}

// FindingStatus is the triage state of a Finding. Only the status
// field changes after enrichment; the rest of the record is frozen.
type FindingStatus string

const (
	FindingOpen      FindingStatus = "open"
	FindingTriaged   FindingStatus = "triaged"
	FindingMitigated FindingStatus = "mitigated"
	FindingClosed    FindingStatus = "closed"
)

// CVSSInfo carries the numeric base score and vector for a CVE
// reference. Optional fields stay absent rather than zero-valued.
type CVSSInfo struct {
	BaseScore float64 `json:"baseScore"`
	Vector    string  `json:"vector,omitempty"`
}

// CVERef links a finding to a CVE id, optionally with CVSS data
// backfilled by the correlator.
type CVERef struct {
	ID   string    `json:"id"`
	CVSS *CVSSInfo `json:"cvss,omitempty"`
}

// Finding is the canonical vulnerability/attack record, independent of
// which tool produced it. The dedup key is (HostID, Source, Title).
type Finding struct {
	ID           string             `json:"id"`
	HostID       string             `json:"host_id"`
	Source       string             `json:"source"`
	Title        string             `json:"title"`
	Severity     finding.Severity   `json:"severity"`
	Confidence   finding.Confidence `json:"confidence"`
	Category     string             `json:"category,omitempty"`
	Description  string             `json:"description,omitempty"`
	Evidence     map[string]string  `json:"evidence,omitempty"`
	CVEs         []CVERef           `json:"cves,omitempty"`
	Status       FindingStatus      `json:"status"`
	DiscoveredAt time.Time          `json:"discovered_at"`
}

// Key returns the dedup key for this finding.
func (f *Finding) Key() string {
	return f.HostID + "|" + f.Source + "|" + f.Title
}

// CveDetail is one vulnerability-feed index entry. Immutable for the
// lifetime of a job once the index is built.
type CveDetail struct {
	ID        string   `json:"id"`
	BaseScore *float64 `json:"base_score,omitempty"`
	Vector    string   `json:"vector,omitempty"`
	CPEs      []string `json:"cpes,omitempty"`
}

// JobStatus is the state of a JobRun.
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
)

// JobRun records one execution of a pipeline stage. It is created
// running and mutated exactly once at stage end by a single writer.
type JobRun struct {
	ID         string           `json:"id"`
	Workflow   string           `json:"workflow"`
	Trigger    string           `json:"trigger"`
	Status     JobStatus        `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Stats      map[string]int64 `json:"stats,omitempty"`
	Error      string           `json:"error,omitempty"`
}
