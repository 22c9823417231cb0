// Package bundle safely unpacks collector diagnostic archives. It is the
// validation gate for untrusted uploads: path traversal, link members, and
// decompression bombs are all rejected before any artifact content is
// handed to the parsers.
package bundle
