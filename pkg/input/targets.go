// Package input consolidates target intake for the CLI: repeated
// flags, scope list files, and stdin pipes.
package input

import (
	"bufio"
	"net"
	"os"
	"strings"

	"github.com/muralikrish9/cyberroomba/pkg/model"
)

// TargetSource consolidates all target input methods.
type TargetSource struct {
	Assets   []string // from repeated -t flags
	ListFile string   // from -l flag
	Stdin    bool     // pipe input when stdin is not a TTY
}

// Resolve returns the deduplicated asset list in encounter order.
// Blank lines and #-comments are skipped.
func (ts *TargetSource) Resolve() ([]model.Asset, error) {
	var assets []model.Asset
	seen := make(map[string]bool)

	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" || strings.HasPrefix(v, "#") {
			return
		}
		if !seen[v] {
			seen[v] = true
			assets = append(assets, model.Asset{Type: ClassifyAsset(v), Value: v})
		}
	}

	for _, a := range ts.Assets {
		add(a)
	}

	if ts.ListFile != "" {
		lines, err := readLines(ts.ListFile)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			add(line)
		}
	}

	if ts.Stdin {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			add(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	return assets, nil
}

// ClassifyAsset infers the asset type from its literal form.
func ClassifyAsset(v string) model.AssetType {
	switch {
	case strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://"):
		return model.AssetURL
	case strings.Contains(v, "/"):
		if _, _, err := net.ParseCIDR(v); err == nil {
			return model.AssetCIDR
		}
		return model.AssetURL
	case net.ParseIP(v) != nil:
		return model.AssetIP
	case strings.Count(v, ".") >= 2:
		return model.AssetHostname
	default:
		return model.AssetDomain
	}
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
