// Package config holds CLI configuration and the YAML pipeline file
// that declares external tools, attack profiles, and integration
// endpoints.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muralikrish9/cyberroomba/pkg/input"
	"github.com/muralikrish9/cyberroomba/pkg/tools"
)

// Config holds all CLI options after flag parsing.
type Config struct {
	// Target settings
	Targets  input.StringSliceFlag // from repeated -t flags
	ListFile string                // file containing scope entries
	Program  string                // bug bounty / engagement program name

	// Pipeline file
	PipelineFile string

	// Execution settings
	Concurrency int           // parallel targets per batch (default: 5)
	Stagger     time.Duration // initial launch spacing (default: 500ms)
	RateLimit   float64       // tool launches per second, 0 = unlimited
	MaxProcs    int           // process-wide cap on tool processes (default: 12)
	Retries     int           // retry attempts per tool invocation (default: 3)

	// Storage
	StoreDir   string // document store root (default: ./data)
	ArchiveDir string // raw tool output archive, empty disables

	// CVE correlation
	FeedFile string // NVD 2.0 feed JSON for enrich/suggest

	// Integrations
	WebhookURL   string // Discord webhook for alerts
	MinSeverity  string // alert threshold (default: high)
	MetricsPort  int    // Prometheus port, 0 disables
	OTelEndpoint string // OTLP gRPC endpoint, empty disables

	// Output settings
	EventsFile string // JSONL event stream path, empty = stderr only
	Verbose    bool
	Silent     bool
}

// Defaults returns a Config with production defaults applied.
func Defaults() Config {
	return Config{
		Concurrency: 5,
		Stagger:     500 * time.Millisecond,
		MaxProcs:    12,
		Retries:     3,
		StoreDir:    "data",
		MinSeverity: "high",
	}
}

// Pipeline is the YAML file declaring tools and attack profiles. All
// sections are optional; absent sections fall back to built-ins.
type Pipeline struct {
	Tools    []tools.Spec `yaml:"tools"`
	Profiles []Profile    `yaml:"profiles"`

	StoreDir     string `yaml:"store_dir"`
	ArchiveDir   string `yaml:"archive_dir"`
	WebhookURL   string `yaml:"webhook_url"`
	MinSeverity  string `yaml:"min_severity"`
	MetricsPort  int    `yaml:"metrics_port"`
	OTelEndpoint string `yaml:"otel_endpoint"`
}

// Profile is one declarative attack pass: which template tags to run
// and how to label what they find.
type Profile struct {
	Name     string   `yaml:"name"`
	Tags     []string `yaml:"tags"`
	Severity string   `yaml:"severity,omitempty"`
	Category string   `yaml:"category,omitempty"`
}

// LoadPipeline reads and validates a pipeline YAML file.
func LoadPipeline(path string) (*Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	var p Pipeline
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Pipeline) validate() error {
	seen := make(map[string]bool)
	for _, spec := range p.Tools {
		if spec.Name == "" {
			return fmt.Errorf("%w: tool name", ErrMissingRequired)
		}
		if spec.Binary == "" {
			return fmt.Errorf("%w: tool %q binary", ErrMissingRequired, spec.Name)
		}
		if seen[spec.Name] {
			return fmt.Errorf("%w: duplicate tool %q", ErrInvalidConfig, spec.Name)
		}
		seen[spec.Name] = true
	}
	for _, prof := range p.Profiles {
		if prof.Name == "" {
			return fmt.Errorf("%w: profile name", ErrMissingRequired)
		}
		if len(prof.Tags) == 0 && prof.Severity == "" {
			return fmt.Errorf("%w: profile %q needs tags or severity", ErrInvalidConfig, prof.Name)
		}
	}
	return nil
}

// Tool returns the named tool spec, or false when undeclared.
func (p *Pipeline) Tool(name string) (tools.Spec, bool) {
	for _, spec := range p.Tools {
		if spec.Name == name {
			return spec, true
		}
	}
	return tools.Spec{}, false
}

// Apply overlays pipeline file values onto CLI config. CLI flags win
// when both are set.
func (c *Config) Apply(p *Pipeline) {
	if p == nil {
		return
	}
	if c.StoreDir == "" || c.StoreDir == "data" {
		if p.StoreDir != "" {
			c.StoreDir = p.StoreDir
		}
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = p.ArchiveDir
	}
	if c.WebhookURL == "" {
		c.WebhookURL = p.WebhookURL
	}
	if p.MinSeverity != "" && c.MinSeverity == "high" {
		c.MinSeverity = p.MinSeverity
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = p.MetricsPort
	}
	if c.OTelEndpoint == "" {
		c.OTelEndpoint = p.OTelEndpoint
	}
}
