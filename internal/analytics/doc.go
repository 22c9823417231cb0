// Package analytics answers longitudinal queries over committed run history:
// per-day averages with a trailing 7-day rolling mean, and key-wise diffs
// between two runs. Everything here is a pure function over snapshots
// returned by the store, recomputed fresh per query.
package analytics
