package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	loadAvgRe = regexp.MustCompile(`load averages?:\s*([0-9.]+)[,\s]+([0-9.]+)[,\s]+([0-9.]+)`)
	idleRe    = regexp.MustCompile(`([0-9.]+)[ %]*id\b`)
	errorRe   = regexp.MustCompile(`(?i)\b(error|fail|failed|failure|panic|critical|segfault)\b`)
	warnRe    = regexp.MustCompile(`(?i)\bwarn(ing)?\b`)
)

// parseUptime reads the "load average:" triple from uptime output.
func parseUptime(text string) []Metric {
	m := loadAvgRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	keys := []string{"load1", "load5", "load15"}
	var out []Metric
	for i, key := range keys {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			continue
		}
		out = append(out, Metric{Key: key, Value: v, Unit: UnitCount})
	}
	return out
}

// parseDF reads `df -P` output: root filesystem usage plus the worst usage
// across all listed filesystems.
func parseDF(text string) []Metric {
	var (
		root    float64
		hasRoot bool
		max     float64
		hasMax  bool
	)
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 6 || strings.EqualFold(fields[0], "Filesystem") {
			continue
		}
		usePct := fields[len(fields)-2]
		mount := fields[len(fields)-1]
		if !strings.HasSuffix(usePct, "%") {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(usePct, "%"), 64)
		if err != nil {
			continue
		}
		if !hasMax || v > max {
			max = v
			hasMax = true
		}
		if mount == "/" {
			root = v
			hasRoot = true
		}
	}

	var out []Metric
	if hasRoot {
		out = append(out, Metric{Key: "disk_used_pct_root", Value: root, Unit: UnitPercent})
	}
	if hasMax {
		out = append(out, Metric{Key: "disk_used_pct_max", Value: max, Unit: UnitPercent})
	}
	return out
}

// parseFree reads `free -b` output. Columns on the Mem line are
// total, used, free, shared, buff/cache, available.
func parseFree(text string) []Metric {
	var out []Metric
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		switch fields[0] {
		case "Mem:":
			if total, err := strconv.ParseFloat(fields[1], 64); err == nil {
				out = append(out, Metric{Key: "mem_total_bytes", Value: total, Unit: UnitBytes})
			}
			if used, err := strconv.ParseFloat(fields[2], 64); err == nil {
				out = append(out, Metric{Key: "mem_used_bytes", Value: used, Unit: UnitBytes})
			}
			if len(fields) >= 7 {
				if avail, err := strconv.ParseFloat(fields[6], 64); err == nil {
					out = append(out, Metric{Key: "mem_available_bytes", Value: avail, Unit: UnitBytes})
				}
			}
		case "Swap:":
			if used, err := strconv.ParseFloat(fields[2], 64); err == nil {
				out = append(out, Metric{Key: "swap_used_bytes", Value: used, Unit: UnitBytes})
			}
		}
	}
	return out
}

// parseTop derives CPU usage from the "%Cpu(s):" summary line as 100 − idle.
func parseTop(text string) []Metric {
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "Cpu(s)") && !strings.Contains(line, "CPU:") {
			continue
		}
		m := idleRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idle, err := strconv.ParseFloat(m[1], 64)
		if err != nil || idle < 0 || idle > 100 {
			continue
		}
		return []Metric{{Key: "cpu_used_pct", Value: 100 - idle, Unit: UnitPercent}}
	}
	return nil
}

// parseFailedUnits counts unit rows in `systemctl --failed` output, skipping
// the column header and the legend/footer lines systemctl appends.
func parseFailedUnits(text string) []Metric {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)
		t = strings.TrimPrefix(t, "● ") // bullet systemctl puts on failed rows
		if t == "" || isFailedUnitsNoise(t) {
			continue
		}
		count++
	}
	return []Metric{{Key: "failed_units_count", Value: float64(count), Unit: UnitCount}}
}

// isFailedUnitsNoise reports whether a systemctl --failed line is header,
// legend, or footer rather than a unit row.
func isFailedUnitsNoise(t string) bool {
	switch {
	case strings.HasPrefix(t, "UNIT "), t == "UNIT":
		return true
	case strings.HasPrefix(t, "LOAD "), strings.HasPrefix(t, "ACTIVE "), strings.HasPrefix(t, "SUB "):
		return true
	case strings.HasPrefix(t, "To show all"):
		return true
	case strings.Contains(t, "loaded units listed"):
		return true
	}
	return false
}

// parseRunningServices counts loaded .service rows in
// `systemctl list-units --type=service --state=running` output.
func parseRunningServices(text string) []Metric {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, ".service") && strings.Contains(line, "loaded") {
			count++
		}
	}
	return []Metric{{Key: "running_services_count", Value: float64(count), Unit: UnitCount}}
}

// parseLogTail counts log lines carrying error and warning keywords.
func parseLogTail(text string) []Metric {
	var errs, warns float64
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if errorRe.MatchString(line) {
			errs++
		}
		if warnRe.MatchString(line) {
			warns++
		}
	}
	return []Metric{
		{Key: "log_error_count", Value: errs, Unit: UnitCount},
		{Key: "log_warning_count", Value: warns, Unit: UnitCount},
	}
}

// parseK8sNodes reads `kubectl get nodes` output. A node whose STATUS column
// does not start with "Ready" (NotReady, Unknown, ...) counts as not ready;
// "Ready,SchedulingDisabled" still counts as ready.
func parseK8sNodes(text string) []Metric {
	rows, statusIdx := tableRows(text)
	if rows == nil {
		return nil
	}
	var notReady float64
	for _, cols := range rows {
		if statusIdx < len(cols) && !strings.HasPrefix(cols[statusIdx], "Ready") {
			notReady++
		}
	}
	return []Metric{
		{Key: "k8s_nodes_total", Value: float64(len(rows)), Unit: UnitCount},
		{Key: "k8s_nodes_not_ready", Value: notReady, Unit: UnitCount},
	}
}

// parseK8sPods reads `kubectl get pods -A` output.
func parseK8sPods(text string) []Metric {
	rows, statusIdx := tableRows(text)
	if rows == nil {
		return nil
	}
	var notRunning float64
	for _, cols := range rows {
		if statusIdx < len(cols) && cols[statusIdx] != "Running" {
			notRunning++
		}
	}
	return []Metric{
		{Key: "k8s_pods_total", Value: float64(len(rows)), Unit: UnitCount},
		{Key: "k8s_pods_not_running", Value: notRunning, Unit: UnitCount},
	}
}

// tableRows splits kubectl tabular output into data rows and locates the
// STATUS column from the header. Returns (nil, 0) when there is no header or
// no data rows.
func tableRows(text string) ([][]string, int) {
	var (
		rows      [][]string
		statusIdx = -1
	)
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if statusIdx < 0 {
			// First non-empty line is the header.
			for i, f := range fields {
				if f == "STATUS" {
					statusIdx = i
					break
				}
			}
			if statusIdx < 0 {
				return nil, 0
			}
			continue
		}
		rows = append(rows, fields)
	}
	if len(rows) == 0 {
		return nil, 0
	}
	return rows, statusIdx
}
