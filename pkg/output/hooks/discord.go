package hooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/muralikrish9/cyberroomba/pkg/duration"
	"github.com/muralikrish9/cyberroomba/pkg/finding"
	"github.com/muralikrish9/cyberroomba/pkg/jsonutil"
	"github.com/muralikrish9/cyberroomba/pkg/output/dispatcher"
	"github.com/muralikrish9/cyberroomba/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*DiscordHook)(nil)

// DiscordHook sends finding alerts and run summaries to a Discord
// incoming webhook as rich embeds. Findings below MinSeverity are
// filtered; summaries always go out.
type DiscordHook struct {
	webhookURL string
	client     *http.Client
	opts       DiscordOptions
	logger     *slog.Logger

	mu       sync.Mutex
	findings int
}

// DiscordOptions configures the Discord hook behavior.
type DiscordOptions struct {
	// Username for the webhook bot (default: "cyberroomba").
	Username string

	// MinSeverity filters finding alerts below this severity.
	MinSeverity events.Severity

	// Timeout for HTTP requests (default: 10s).
	Timeout time.Duration

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// NewDiscordHook creates a Discord hook posting to the given webhook URL.
func NewDiscordHook(webhookURL string, opts DiscordOptions) *DiscordHook {
	if opts.Username == "" {
		opts.Username = "cyberroomba"
	}
	if opts.Timeout == 0 {
		opts.Timeout = duration.WebhookTimeout
	}
	return &DiscordHook{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: opts.Timeout},
		opts:       opts,
		logger:     orDefault(opts.Logger),
	}
}

// EventTypes returns the event types this hook handles.
func (h *DiscordHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeFinding,
		events.EventTypeSummary,
	}
}

// OnEvent sends finding alerts and run summaries.
func (h *DiscordHook) OnEvent(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case *events.FindingEvent:
		return h.handleFinding(ctx, e)
	case *events.SummaryEvent:
		return h.handleSummary(ctx, e)
	default:
		return nil
	}
}

func (h *DiscordHook) handleFinding(ctx context.Context, e *events.FindingEvent) error {
	h.mu.Lock()
	h.findings++
	h.mu.Unlock()

	if h.opts.MinSeverity != "" && e.Severity.Score() < h.opts.MinSeverity.Score() {
		return nil
	}

	f := e.Finding
	em := embed{
		Title:       fmt.Sprintf("[%s] %s", f.Severity, f.Title),
		Description: f.Description,
		Color:       severityColor(f.Severity),
		Fields: []embedField{
			{Name: "Host", Value: f.HostID, Inline: true},
			{Name: "Source", Value: f.Source, Inline: true},
			{Name: "Confidence", Value: string(f.Confidence), Inline: true},
		},
	}
	if len(f.CVEs) > 0 {
		em.Fields = append(em.Fields, embedField{Name: "CVE", Value: f.CVEs[0].ID, Inline: true})
	}
	return h.post(ctx, webhookMessage{Username: h.opts.Username, Embeds: []embed{em}})
}

func (h *DiscordHook) handleSummary(ctx context.Context, e *events.SummaryEvent) error {
	h.mu.Lock()
	count := h.findings
	h.mu.Unlock()

	msg := webhookMessage{
		Username: h.opts.Username,
		Embeds: []embed{{
			Title: fmt.Sprintf("%s run finished", e.Workflow),
			Color: colorInfo,
			Fields: []embedField{
				{Name: "Job", Value: e.JobID(), Inline: true},
				{Name: "Findings", Value: fmt.Sprint(count), Inline: true},
				{Name: "Duration", Value: (time.Duration(e.DurationMS) * time.Millisecond).String(), Inline: true},
			},
		}},
	}
	return h.post(ctx, msg)
}

func (h *DiscordHook) post(ctx context.Context, msg webhookMessage) error {
	body, err := jsonutil.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("discord webhook failed", "error", err)
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("discord webhook status %d", resp.StatusCode)
		h.logger.Warn("discord webhook rejected", "status", resp.StatusCode)
		return err
	}
	return nil
}

// Discord embed colors per severity tier.
const (
	colorCritical = 0x992D22
	colorHigh     = 0xE74C3C
	colorMedium   = 0xE67E22
	colorLow      = 0xF1C40F
	colorInfo     = 0x3498DB
)

func severityColor(s finding.Severity) int {
	switch s {
	case finding.Critical:
		return colorCritical
	case finding.High:
		return colorHigh
	case finding.Medium:
		return colorMedium
	case finding.Low:
		return colorLow
	default:
		return colorInfo
	}
}

type webhookMessage struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}
