// Package score reduces a run's metric set to a deterministic 0–100 health
// score via a fixed, ordered table of threshold penalty rules. Missing
// metrics are neutral: a rule only fires when its inputs are present.
package score
