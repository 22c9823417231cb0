package extract

import (
	"sort"
	"strings"
)

// Unit classifies a metric value.
type Unit string

// Metric units used across the parser registry.
const (
	UnitPercent Unit = "pct"
	UnitBytes   Unit = "bytes"
	UnitCount   Unit = "count"
	UnitSeconds Unit = "seconds"
	UnitScore   Unit = "score"
)

// Metric is one typed value extracted from an artifact. RunID is empty at
// extraction time; the ingest layer tags it once the run ID is known.
type Metric struct {
	RunID string
	Key   string
	Value float64
	Unit  Unit
}

// Parser converts one artifact's text into metric fragments. Parsers must be
// total: malformed input returns a shorter (possibly empty) slice, never an
// error. A metric that cannot be located is absent, not zero.
type Parser func(text string) []Metric

// registry maps artifact filename to its parser. Adding a new artifact type
// means adding one entry here plus one parser function — call sites never
// change.
var registry = map[string]Parser{
	"uptime.txt":                   parseUptime,
	"df.txt":                       parseDF,
	"free.txt":                     parseFree,
	"top.txt":                      parseTop,
	"systemd_failed_units.txt":     parseFailedUnits,
	"systemd_running_services.txt": parseRunningServices,
	"log_tail.txt":                 parseLogTail,
	"k8s_nodes.txt":                parseK8sNodes,
	"k8s_pods.txt":                 parseK8sPods,
}

// ArtifactNames returns every artifact filename the registry can parse,
// sorted. The bundle allow-list is built from this set.
func ArtifactNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extract runs every registered parser over its artifact and returns the
// flattened metric list. Artifacts without a parser are ignored, as are
// artifacts holding only the collector's "not found" sentinel. Output order
// follows sorted artifact names, so the same input always yields the same
// metric list.
func Extract(artifacts map[string]string) []Metric {
	var out []Metric
	for _, name := range ArtifactNames() {
		text, ok := artifacts[name]
		if !ok {
			continue
		}
		body := stripHeaders(text)
		if isSentinel(body) {
			continue
		}
		out = append(out, registry[name](body)...)
	}
	return out
}

// stripHeaders removes the collector's "### CMD:" and "### TS:" header lines.
func stripHeaders(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "### CMD:") || strings.HasPrefix(t, "### TS:") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// isSentinel reports whether the artifact body is the collector's placeholder
// for an absent tool ("kubectl not found" and friends): every non-empty line
// carries the "not found" marker.
func isSentinel(body string) bool {
	seen := false
	for _, line := range strings.Split(body, "\n") {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if !strings.Contains(strings.ToLower(t), "not found") {
			return false
		}
		seen = true
	}
	return seen
}
