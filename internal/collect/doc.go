// Package collect gathers host diagnostics by running a fixed set of shell
// commands, wraps each output in a headered artifact, and packages the lot
// as a tar.gz bundle the server ingests.
//
// Tools that are not installed on the host produce a "not found" sentinel
// artifact instead of an error, so a bundle from a minimal host is still
// valid — the server simply scores the missing data as neutral.
package collect
