// Package extract turns raw collector artifacts into typed metrics. Each
// artifact filename maps to one pure parser in a closed registry; parsers
// never fail — unparsable input simply yields fewer metrics.
package extract
