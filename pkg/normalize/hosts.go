// Package normalize fuses heterogeneous tool outputs into the
// canonical host and finding models. It is the only place that knows
// the wire shapes of individual scanners; everything downstream sees
// model types only.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/muralikrish9/cyberroomba/pkg/jsonutil"
	"github.com/muralikrish9/cyberroomba/pkg/model"
)

// Recon source names. Sources are merged in this order so that
// first-source-wins scalar fields are deterministic; unknown sources
// follow in lexical order.
const (
	SourceSubfinder = "subfinder"
	SourceDNSX      = "dnsx"
	SourceHTTPX     = "httpx"
	SourceNaabu     = "naabu"
	SourceShodan    = "shodan"
)

var sourceOrder = []string{SourceSubfinder, SourceDNSX, SourceHTTPX, SourceNaabu, SourceShodan}

// ValidationError reports a source payload that failed schema
// validation. The source contributes nothing; normalization continues
// with the remaining sources.
type ValidationError struct {
	Source string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("normalize: source %q failed validation: %v", e.Source, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// SubfinderRecord is one subdomain enumeration line.
type SubfinderRecord struct {
	Host   string `json:"host"`
	Source string `json:"source,omitempty"`
}

// DNSXRecord is one DNS resolution line.
type DNSXRecord struct {
	Host string   `json:"host"`
	A    []string `json:"a,omitempty"`
}

// HTTPXRecord is one HTTP probe line.
type HTTPXRecord struct {
	Input     string   `json:"input,omitempty"`
	URL       string   `json:"url,omitempty"`
	A         []string `json:"a,omitempty"`
	Tech      []string `json:"tech,omitempty"`
	Title     string   `json:"title,omitempty"`
	WebServer string   `json:"webserver,omitempty"`
	Failed    bool     `json:"failed,omitempty"`
}

// NaabuRecord is one port scan line.
type NaabuRecord struct {
	Host     string `json:"host"`
	IP       string `json:"ip,omitempty"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol,omitempty"`
}

// ShodanRecord is one passive-intel line.
type ShodanRecord struct {
	Host    string   `json:"host"`
	IP      string   `json:"ip,omitempty"`
	Country string   `json:"country,omitempty"`
	Ports   []int    `json:"ports,omitempty"`
	Tech    []string `json:"tech,omitempty"`
}

// HostNormalizer fuses per-source recon outputs into canonical host
// records.
type HostNormalizer struct {
	Logger *slog.Logger
}

// Hosts merges every source's records into one accumulator entry per
// unique host key, the literal host string as reported. Merge policy
// per field:
//
//   - IPs, technologies, ports: set union
//   - provenance: set of (tool, detail) entries
//   - liveness: existing OR newly observed
//   - fingerprint scalars (title, webserver, country): first
//     non-empty value wins, later sources never overwrite
//
// A source whose payload fails schema validation contributes nothing
// and is skipped without failing the batch. Output order is insertion
// order of first host encounter.
func (n *HostNormalizer) Hosts(targetID, runID string, sources map[string][][]byte) []model.HostRecord {
	acc := newAccumulator(targetID, runID)

	for _, source := range orderedSources(sources) {
		if err := n.applySource(acc, source, sources[source]); err != nil {
			n.logger().Debug("skipping source", "source", source, "error", err)
		}
	}

	return acc.records()
}

func (n *HostNormalizer) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// orderedSources returns the known sources in canonical merge order,
// then any remaining sources lexically.
func orderedSources(sources map[string][][]byte) []string {
	known := make(map[string]bool, len(sourceOrder))
	var out []string
	for _, s := range sourceOrder {
		known[s] = true
		if _, ok := sources[s]; ok {
			out = append(out, s)
		}
	}
	var rest []string
	for s := range sources {
		if !known[s] {
			rest = append(rest, s)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// applySource validates the whole payload first, then applies it.
// Decode or structural failure on any record rejects the entire
// source's contribution.
func (n *HostNormalizer) applySource(acc *accumulator, source string, records [][]byte) error {
	var apply []func()

	for i, raw := range records {
		fn, err := n.decodeRecord(acc, source, raw)
		if err != nil {
			return &ValidationError{Source: source, Err: fmt.Errorf("record %d: %w", i, err)}
		}
		apply = append(apply, fn)
	}

	for _, fn := range apply {
		fn()
	}
	return nil
}

var (
	errMissingHost   = errors.New("missing host")
	errMissingPort   = errors.New("missing port")
	errUnknownSource = errors.New("unknown source")
)

func (n *HostNormalizer) decodeRecord(acc *accumulator, source string, raw []byte) (func(), error) {
	switch source {
	case SourceSubfinder:
		var rec SubfinderRecord
		if err := jsonutil.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		if rec.Host == "" {
			return nil, errMissingHost
		}
		return func() {
			h := acc.get(rec.Host)
			h.addProvenance(SourceSubfinder, rec.Source)
		}, nil

	case SourceDNSX:
		var rec DNSXRecord
		if err := jsonutil.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		if rec.Host == "" {
			return nil, errMissingHost
		}
		return func() {
			h := acc.get(rec.Host)
			h.addIPs(rec.A...)
			h.addProvenance(SourceDNSX, "a")
		}, nil

	case SourceHTTPX:
		var rec HTTPXRecord
		if err := jsonutil.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		if rec.Input == "" && rec.URL == "" {
			return nil, errMissingHost
		}
		return func() {
			h := acc.get(httpxHostKey(rec))
			if !rec.Failed {
				h.markAlive()
			}
			h.addIPs(rec.A...)
			h.addTech(rec.Tech...)
			h.setScalar("title", rec.Title)
			h.setScalar("webserver", rec.WebServer)
			h.addProvenance(SourceHTTPX, rec.URL)
		}, nil

	case SourceNaabu:
		var rec NaabuRecord
		if err := jsonutil.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		if rec.Host == "" {
			return nil, errMissingHost
		}
		if rec.Port == 0 {
			return nil, errMissingPort
		}
		return func() {
			h := acc.get(rec.Host)
			h.addIPs(rec.IP)
			h.addPort(rec.Port, rec.Protocol, "")
			h.addProvenance(SourceNaabu, fmt.Sprintf("%d/%s", rec.Port, protocolOr(rec.Protocol)))
		}, nil

	case SourceShodan:
		var rec ShodanRecord
		if err := jsonutil.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		if rec.Host == "" {
			return nil, errMissingHost
		}
		return func() {
			h := acc.get(rec.Host)
			h.addIPs(rec.IP)
			h.addTech(rec.Tech...)
			h.setScalar("country", rec.Country)
			for _, p := range rec.Ports {
				h.addPort(p, "tcp", "")
			}
			h.addProvenance(SourceShodan, rec.IP)
		}, nil

	default:
		return nil, errUnknownSource
	}
}

func httpxHostKey(rec HTTPXRecord) string {
	if rec.Input != "" {
		return stripScheme(rec.Input)
	}
	return stripScheme(rec.URL)
}

func stripScheme(s string) string {
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}

func protocolOr(p string) string {
	if p == "" {
		return "tcp"
	}
	return p
}
