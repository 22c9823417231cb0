// Package ingest ties the pipeline together: unpack an uploaded archive,
// extract metrics, score the run, and commit everything atomically to the
// store. Each ingestion is a single-pass, request-scoped computation;
// concurrent uploads share nothing but the store.
package ingest
