package hooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muralikrish9/cyberroomba/pkg/finding"
	"github.com/muralikrish9/cyberroomba/pkg/jsonutil"
	"github.com/muralikrish9/cyberroomba/pkg/model"
	"github.com/muralikrish9/cyberroomba/pkg/output/events"
)

func testFinding(severity finding.Severity) model.Finding {
	return model.Finding{
		ID:       "f1",
		HostID:   "h1",
		Source:   "nuclei",
		Title:    "Exposed admin panel",
		Severity: severity,
		Status:   model.FindingOpen,
	}
}

func TestDiscordSendsHighSeverityFinding(t *testing.T) {
	var mu sync.Mutex
	var payloads []webhookMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg webhookMessage
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, jsonutil.Unmarshal(body, &msg))
		mu.Lock()
		payloads = append(payloads, msg)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := NewDiscordHook(srv.URL, DiscordOptions{MinSeverity: finding.High})

	evt := events.NewFindingEvent("j1", testFinding(finding.Critical))
	require.NoError(t, h.OnEvent(context.Background(), evt))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 1)
	require.Len(t, payloads[0].Embeds, 1)
	assert.Contains(t, payloads[0].Embeds[0].Title, "Exposed admin panel")
	assert.Equal(t, colorCritical, payloads[0].Embeds[0].Color)
}

func TestDiscordFiltersBelowMinSeverity(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := NewDiscordHook(srv.URL, DiscordOptions{MinSeverity: finding.High})
	evt := events.NewFindingEvent("j1", testFinding(finding.Low))
	require.NoError(t, h.OnEvent(context.Background(), evt))
	assert.Zero(t, calls, "low severity must not alert when MinSeverity is high")
}

func TestDiscordSummaryAlwaysSends(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := NewDiscordHook(srv.URL, DiscordOptions{MinSeverity: finding.Critical})
	evt := events.NewSummaryEvent("j1", "attack", map[string]int64{"findings": 3}, 1500)
	require.NoError(t, h.OnEvent(context.Background(), evt))
	assert.Equal(t, 1, calls)
}

func TestDiscordRejectedStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	h := NewDiscordHook(srv.URL, DiscordOptions{})
	evt := events.NewFindingEvent("j1", testFinding(finding.Critical))
	assert.Error(t, h.OnEvent(context.Background(), evt))
}

func TestLoggerHookHandlesAllEvents(t *testing.T) {
	h := NewLoggerHook(nil)
	assert.Nil(t, h.EventTypes())

	all := []events.Event{
		events.NewStartEvent("j", "recon", "cron", 2, 4),
		events.NewProgressEvent("j", "recon", 1, 2, 0, 30),
		events.NewHostEvent("j", model.HostRecord{Host: "a.example.com", Alive: true}),
		events.NewFindingEvent("j", testFinding(finding.Medium)),
		events.NewErrorEvent("j", "a.example.com", "boom", false),
		events.NewSummaryEvent("j", "recon", nil, 10),
		events.NewCompleteEvent("j", false, "store unavailable"),
	}
	for _, evt := range all {
		assert.NoError(t, h.OnEvent(context.Background(), evt))
	}
}

func TestPrometheusHookCountsFindings(t *testing.T) {
	h, err := NewPrometheusHook(PrometheusOptions{Port: 19109})
	if err != nil {
		t.Skipf("metrics server unavailable: %v", err)
	}
	defer h.Close()

	ctx := context.Background()
	require.NoError(t, h.OnEvent(ctx, events.NewFindingEvent("j", testFinding(finding.High))))
	require.NoError(t, h.OnEvent(ctx, events.NewFindingEvent("j", testFinding(finding.High))))
	require.NoError(t, h.OnEvent(ctx, events.NewCompleteEvent("j", true, "")))

	assert.Equal(t, 2.0, testutil.ToFloat64(h.findingsTotal.WithLabelValues("nuclei", "high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.runsTotal.WithLabelValues("success")))
}
