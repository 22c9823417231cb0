package score

import (
	"github.com/jtq-dev/opslens/internal/extract"
)

// Key emitted for the run's own health score when it is stored alongside
// the extracted metrics.
const MetricKey = "health_score"

// Rule thresholds and penalties. These are contract values, not tunables.
const (
	cpuHighPct          = 90.0
	cpuPenalty          = 5.0
	memHighRatio        = 0.90
	memPenalty          = 10.0
	diskHighPct         = 85.0
	diskPenalty         = 15.0
	failedUnitPenalty   = 2.0
	failedUnitCap       = 10.0
	logErrorThreshold   = 10.0
	logErrorPenalty     = 5.0
	nodeNotReadyPenalty = 10.0
	nodeNotReadyCap     = 20.0
)

// Penalty is one triggered rule in the score breakdown.
type Penalty struct {
	// Reason is a stable, human-readable rule identifier.
	Reason string `json:"reason"`

	// Amount is the number of points subtracted, always positive.
	Amount float64 `json:"amount"`
}

// Result is the scored summary of one run's metrics.
type Result struct {
	// Score is the final health score, clamped to [0, 100].
	Score int `json:"score"`

	// Breakdown lists triggered rules in evaluation order.
	Breakdown []Penalty `json:"breakdown"`
}

// rule evaluates one threshold against the present metrics. It returns the
// penalty to apply and whether the rule fired. Rules must be monotonic:
// a worse metric value never yields a smaller penalty.
type rule struct {
	reason string
	eval   func(m map[string]float64) (float64, bool)
}

// rules is the fixed evaluation order. Each rule's penalty is capped on its
// own, so no single signal can dominate the score.
var rules = []rule{
	{"cpu above 90%", func(m map[string]float64) (float64, bool) {
		v, ok := m["cpu_used_pct"]
		return cpuPenalty, ok && v > cpuHighPct
	}},
	{"memory above 90%", func(m map[string]float64) (float64, bool) {
		used, okU := m["mem_used_bytes"]
		total, okT := m["mem_total_bytes"]
		return memPenalty, okU && okT && total > 0 && used/total > memHighRatio
	}},
	{"disk above 85%", func(m map[string]float64) (float64, bool) {
		v, ok := m["disk_used_pct_max"]
		return diskPenalty, ok && v > diskHighPct
	}},
	{"failed systemd units", func(m map[string]float64) (float64, bool) {
		v, ok := m["failed_units_count"]
		if !ok || v <= 0 {
			return 0, false
		}
		return min(failedUnitPenalty*v, failedUnitCap), true
	}},
	{"log errors above threshold", func(m map[string]float64) (float64, bool) {
		v, ok := m["log_error_count"]
		return logErrorPenalty, ok && v > logErrorThreshold
	}},
	{"kubernetes nodes not ready", func(m map[string]float64) (float64, bool) {
		v, ok := m["k8s_nodes_not_ready"]
		if !ok || v <= 0 {
			return 0, false
		}
		return min(nodeNotReadyPenalty*v, nodeNotReadyCap), true
	}},
}

// Compute scores one run's metric set. It is a pure function: the same
// metrics always produce the same result, and absent metrics never fire a
// rule, so a run with fewer collected metrics is not penalized for the gaps.
func Compute(metrics []extract.Metric) Result {
	m := make(map[string]float64, len(metrics))
	for _, metric := range metrics {
		m[metric.Key] = metric.Value
	}

	total := 100.0
	var breakdown []Penalty
	for _, r := range rules {
		penalty, fired := r.eval(m)
		if !fired {
			continue
		}
		total -= penalty
		breakdown = append(breakdown, Penalty{Reason: r.reason, Amount: penalty})
	}

	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return Result{Score: int(total), Breakdown: breakdown}
}
