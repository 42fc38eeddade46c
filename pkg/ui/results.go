package ui

import (
	"fmt"
	"io"

	"github.com/muralikrish9/cyberroomba/pkg/model"
)

// PrintHosts renders fused host records, one line per host.
func PrintHosts(w io.Writer, hosts []model.HostRecord) {
	for _, h := range hosts {
		status := MutedStyle.Render("down")
		if h.Alive {
			status = HostStyle.Render("alive")
		}
		line := fmt.Sprintf("%s  %s", HostStyle.Render(h.Host), status)
		if ip := h.IP(); ip != "" {
			line += "  " + MutedStyle.Render(ip)
		}
		if len(h.Ports) > 0 {
			line += fmt.Sprintf("  %d ports", len(h.Ports))
		}
		fmt.Fprintln(w, line)
	}
}

// PrintFindings renders findings sorted as given, one line per finding.
func PrintFindings(w io.Writer, findings []model.Finding) {
	for _, f := range findings {
		sev := SeverityStyle(f.Severity).Render(fmt.Sprintf("[%s]", f.Severity))
		line := fmt.Sprintf("%s %s  %s", sev, f.Title, MutedStyle.Render(f.HostID))
		if len(f.CVEs) > 0 {
			line += "  " + f.CVEs[0].ID
		}
		fmt.Fprintln(w, line)
	}
}
