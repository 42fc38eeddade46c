package normalize

import (
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/muralikrish9/cyberroomba/pkg/model"
)

// accumulator collects merged host state keyed by host string,
// preserving first-encounter order for deterministic output.
type accumulator struct {
	targetID string
	runID    string
	order    []string
	hosts    map[string]*hostState
}

type hostState struct {
	host        string
	runID       string
	alive       bool
	ips         []string
	ipSeen      map[string]bool
	tech        []string
	techSeen    map[string]bool
	ports       []model.Port
	portSeen    map[string]bool
	fingerprint map[string]string
	provenance  []model.Provenance
	provSeen    map[string]bool
}

func newAccumulator(targetID, runID string) *accumulator {
	return &accumulator{
		targetID: targetID,
		runID:    runID,
		hosts:    make(map[string]*hostState),
	}
}

func (a *accumulator) get(host string) *hostState {
	if h, ok := a.hosts[host]; ok {
		return h
	}
	h := &hostState{
		host:        host,
		runID:       a.runID,
		ipSeen:      make(map[string]bool),
		techSeen:    make(map[string]bool),
		portSeen:    make(map[string]bool),
		fingerprint: make(map[string]string),
		provSeen:    make(map[string]bool),
	}
	a.hosts[host] = h
	a.order = append(a.order, host)
	return h
}

func (a *accumulator) records() []model.HostRecord {
	out := make([]model.HostRecord, 0, len(a.order))
	for _, host := range a.order {
		h := a.hosts[host]
		out = append(out, model.HostRecord{
			ID:           hostRecordID(a.targetID, host, a.runID),
			TargetID:     a.targetID,
			RunID:        a.runID,
			Host:         host,
			IPs:          h.ips,
			Ports:        h.ports,
			Technologies: h.tech,
			Alive:        h.alive,
			Fingerprint:  h.fingerprintOrNil(),
			Provenance:   h.provenance,
		})
	}
	return out
}

// hostRecordID derives a stable id from the record's natural key so
// re-normalizing the same observation produces the same id.
func hostRecordID(targetID, host, runID string) string {
	h1, h2 := murmur3.Sum128([]byte(targetID + "|" + host + "|" + runID))
	return fmt.Sprintf("%016x%016x", h1, h2)
}

func (h *hostState) markAlive() { h.alive = true }

func (h *hostState) addIPs(ips ...string) {
	for _, ip := range ips {
		if ip == "" || h.ipSeen[ip] {
			continue
		}
		h.ipSeen[ip] = true
		h.ips = append(h.ips, ip)
	}
}

func (h *hostState) addTech(tech ...string) {
	for _, t := range tech {
		if t == "" || h.techSeen[t] {
			continue
		}
		h.techSeen[t] = true
		h.tech = append(h.tech, t)
	}
}

func (h *hostState) addPort(number int, protocol, service string) {
	if number <= 0 {
		return
	}
	protocol = protocolOr(protocol)
	key := fmt.Sprintf("%d/%s", number, protocol)
	if h.portSeen[key] {
		return
	}
	h.portSeen[key] = true
	h.ports = append(h.ports, model.Port{Number: number, Protocol: protocol, Service: service})
}

// setScalar records a fingerprint value only if the key is still
// unset. Later sources never overwrite.
func (h *hostState) setScalar(key, value string) {
	if value == "" {
		return
	}
	if _, ok := h.fingerprint[key]; ok {
		return
	}
	h.fingerprint[key] = value
}

func (h *hostState) addProvenance(tool, detail string) {
	key := tool + "|" + detail
	if h.provSeen[key] {
		return
	}
	h.provSeen[key] = true
	h.provenance = append(h.provenance, model.Provenance{Tool: tool, RunID: h.runID, Detail: detail})
}

func (h *hostState) fingerprintOrNil() map[string]string {
	if len(h.fingerprint) == 0 {
		return nil
	}
	return h.fingerprint
}
