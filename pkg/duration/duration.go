// Package duration provides canonical time constants for the pipeline.
// Reference these instead of hardcoding time.Duration literals so
// every timeout can be audited in one place.
package duration

import "time"

// Tool invocation timeouts. These bound a single attempt; the retry
// policy at the adapter boundary multiplies them by max attempts.
const (
	// ToolProbe is for quick liveness/DNS tools (dnsx, httpx probing).
	ToolProbe = 2 * time.Minute

	// ToolEnumerate is for enumeration tools (subfinder, naabu).
	ToolEnumerate = 10 * time.Minute

	// ToolAttack is for template-driven attack scans (nuclei).
	ToolAttack = 30 * time.Minute
)

// Retry backoff bounds applied at the tool-adapter boundary.
const (
	RetryInit = 2 * time.Second
	RetryMax  = 30 * time.Second
)

// Scheduler defaults.
const (
	// Stagger spaces initial batch launches to avoid synchronized
	// bursts against the same external dependency.
	Stagger = 500 * time.Millisecond

	// ProgressInterval is how often streaming progress lines print
	// when stderr is not a terminal.
	ProgressInterval = 5 * time.Second
)

// Notification and telemetry timeouts.
const (
	WebhookTimeout  = 10 * time.Second
	WebhookShutdown = 5 * time.Second
	OTLPExport      = 10 * time.Second
)
