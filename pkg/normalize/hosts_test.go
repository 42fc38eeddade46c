package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muralikrish9/cyberroomba/pkg/model"
)

func lines(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

// TestHostsFusesSourcesIntoOneRecord is the canonical merge case: three
// tools each report a fragment about foo.bar and the normalizer fuses
// them into a single record.
func TestHostsFusesSourcesIntoOneRecord(t *testing.T) {
	n := &HostNormalizer{}
	sources := map[string][][]byte{
		SourceDNSX:  lines(`{"host":"foo.bar","a":["1.2.3.4"]}`),
		SourceHTTPX: lines(`{"input":"foo.bar","url":"https://foo.bar","title":"Login","webserver":"nginx","tech":["Nginx"]}`),
		SourceNaabu: lines(`{"host":"foo.bar","ip":"1.2.3.4","port":443,"protocol":"tcp"}`),
	}

	hosts := n.Hosts("tgt-1", "run-1", sources)
	require.Len(t, hosts, 1)

	h := hosts[0]
	assert.Equal(t, "foo.bar", h.Host)
	assert.Equal(t, "tgt-1", h.TargetID)
	assert.Equal(t, "run-1", h.RunID)
	assert.True(t, h.Alive)
	assert.Equal(t, []string{"1.2.3.4"}, h.IPs, "same IP from two sources unions to one")
	assert.Equal(t, []model.Port{{Number: 443, Protocol: "tcp"}}, h.Ports)
	assert.Equal(t, []string{"Nginx"}, h.Technologies)
	assert.Equal(t, "Login", h.Fingerprint["title"])
	assert.Equal(t, "nginx", h.Fingerprint["webserver"])
	assert.NotEmpty(t, h.ID)
}

func TestHostsFirstScalarWins(t *testing.T) {
	n := &HostNormalizer{}
	sources := map[string][][]byte{
		SourceHTTPX: lines(
			`{"input":"a.example.com","title":"First Title"}`,
			`{"input":"a.example.com","title":"Second Title","webserver":"apache"}`,
		),
	}

	hosts := n.Hosts("t", "r", sources)
	require.Len(t, hosts, 1)
	assert.Equal(t, "First Title", hosts[0].Fingerprint["title"])
	assert.Equal(t, "apache", hosts[0].Fingerprint["webserver"], "unset keys still fill from later records")
}

func TestHostsLivenessNeverDowngrades(t *testing.T) {
	n := &HostNormalizer{}
	sources := map[string][][]byte{
		SourceHTTPX: lines(
			`{"input":"a.example.com"}`,
			`{"input":"a.example.com","failed":true}`,
		),
	}

	hosts := n.Hosts("t", "r", sources)
	require.Len(t, hosts, 1)
	assert.True(t, hosts[0].Alive, "a later failed probe must not clear liveness")
}

func TestHostsInvalidSourceContributesNothing(t *testing.T) {
	n := &HostNormalizer{}
	sources := map[string][][]byte{
		SourceSubfinder: lines(`{"host":"a.example.com"}`),
		// Second dnsx record is missing its host; the whole dnsx
		// payload must be discarded, including the first record.
		SourceDNSX: lines(
			`{"host":"a.example.com","a":["1.2.3.4"]}`,
			`{"a":["5.6.7.8"]}`,
		),
	}

	hosts := n.Hosts("t", "r", sources)
	require.Len(t, hosts, 1)
	assert.Equal(t, "a.example.com", hosts[0].Host)
	assert.Empty(t, hosts[0].IPs, "invalid dnsx payload must contribute nothing")
}

func TestHostsUnknownSourceSkipped(t *testing.T) {
	n := &HostNormalizer{}
	sources := map[string][][]byte{
		"mystery":       lines(`{"host":"x"}`),
		SourceSubfinder: lines(`{"host":"a.example.com","source":"crtsh"}`),
	}

	hosts := n.Hosts("t", "r", sources)
	require.Len(t, hosts, 1)
	require.Len(t, hosts[0].Provenance, 1)
	assert.Equal(t, SourceSubfinder, hosts[0].Provenance[0].Tool)
	assert.Equal(t, "crtsh", hosts[0].Provenance[0].Detail)
	assert.Equal(t, "r", hosts[0].Provenance[0].RunID)
}

func TestHostsIdempotent(t *testing.T) {
	sources := map[string][][]byte{
		SourceSubfinder: lines(`{"host":"a.example.com"}`, `{"host":"b.example.com"}`),
		SourceDNSX:      lines(`{"host":"a.example.com","a":["1.1.1.1","2.2.2.2"]}`),
		SourceNaabu:     lines(`{"host":"b.example.com","port":22}`, `{"host":"b.example.com","port":22}`),
	}

	n := &HostNormalizer{}
	first := n.Hosts("t", "r", sources)
	second := n.Hosts("t", "r", sources)
	assert.Equal(t, first, second, "normalization must be deterministic")

	require.Len(t, first, 2)
	assert.Equal(t, "a.example.com", first[0].Host)
	assert.Equal(t, "b.example.com", first[1].Host)
	assert.Equal(t, []model.Port{{Number: 22, Protocol: "tcp"}}, first[1].Ports, "duplicate port observations union to one")
}

func TestHostsStableIDs(t *testing.T) {
	n := &HostNormalizer{}
	sources := map[string][][]byte{SourceSubfinder: lines(`{"host":"a.example.com"}`)}

	a := n.Hosts("t", "r", sources)[0].ID
	b := n.Hosts("t", "r", sources)[0].ID
	c := n.Hosts("t", "r2", sources)[0].ID
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "different run must produce a different record id")
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "foo.bar", stripScheme("https://foo.bar/login"))
	assert.Equal(t, "foo.bar:8443", stripScheme("http://foo.bar:8443"))
	assert.Equal(t, "foo.bar", stripScheme("foo.bar"))
}
