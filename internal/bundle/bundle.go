package bundle

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"regexp"
	"strings"
	"time"
)

// Sentinel errors returned by Open. Callers match with errors.Is and map
// them to HTTP statuses at the API boundary.
var (
	// ErrInvalidArchive means the payload is not a readable gzip tar stream.
	ErrInvalidArchive = errors.New("invalid archive")

	// ErrUnsafePath means a member tried to escape the archive's top-level
	// directory (absolute path, ".." segment, or a link member).
	ErrUnsafePath = errors.New("unsafe path in archive")

	// ErrTooLarge means the decompressed size or member count exceeded the
	// configured limits. Extraction is abandoned mid-stream.
	ErrTooLarge = errors.New("archive too large")
)

// Limits bounds how much of an untrusted archive Open is willing to unpack.
type Limits struct {
	// MaxBytes is the maximum total decompressed size across all members.
	MaxBytes int64

	// MaxMembers is the maximum number of tar entries, directories included.
	MaxMembers int
}

// Bundle is the validated, in-memory result of unpacking one diagnostic
// archive. It carries no reference to the raw upload bytes.
type Bundle struct {
	// Host is the reporting hostname, from meta.txt or the archive's
	// top-level directory name.
	Host string

	// Timestamp is the collection time from meta.txt, or the ingest time
	// when the archive carries no usable metadata.
	Timestamp time.Time

	// Artifacts maps artifact filename to its raw text content, exactly as
	// written by the collector (command headers included).
	Artifacts map[string]string
}

// MetaFile is the archive member holding collector metadata as key=value lines.
const MetaFile = "meta.txt"

// timestampSuffix matches the "-<UTC timestamp>" tail the collector appends
// to the archive's top-level directory name, e.g. "web-01-20240301T120000Z".
var timestampSuffix = regexp.MustCompile(`-\d{8}T\d{6}Z?$`)

// Open validates and unpacks a gzip tar archive uploaded by the collector.
//
// Every member is checked before its content is read: absolute paths, ".."
// segments, link members, and members outside the single top-level directory
// reject the entire upload with ErrUnsafePath. The decompressed byte budget
// and member count are enforced as the stream is read, so a crafted bomb
// fails with ErrTooLarge without being fully inflated.
//
// Members whose basename is not in allowed are skipped; their declared size
// still counts against the budget. A missing meta.txt never fails the
// upload: the host falls back to the top-level directory name and the
// timestamp to now.
func Open(data []byte, limits Limits, allowed map[string]struct{}, now time.Time) (*Bundle, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: not a gzip stream", ErrInvalidArchive)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)

	artifacts := make(map[string]string)
	var (
		topDir  string
		members int
	)
	budget := limits.MaxBytes
	if budget <= 0 {
		budget = math.MaxInt64
	}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: bad tar stream", ErrInvalidArchive)
		}

		members++
		if limits.MaxMembers > 0 && members > limits.MaxMembers {
			return nil, fmt.Errorf("%w: more than %d members", ErrTooLarge, limits.MaxMembers)
		}

		name, err := checkMemberPath(hdr, &topDir)
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		if hdr.Size > budget {
			return nil, fmt.Errorf("%w: decompressed size exceeds %d bytes", ErrTooLarge, limits.MaxBytes)
		}

		base := path.Base(name)
		if _, ok := allowed[base]; !ok {
			// Unknown member — collector additions we don't parse yet.
			budget -= hdr.Size
			continue
		}

		// Read one byte beyond the declared size to catch headers that lie.
		text, n, err := readMember(tr, budget)
		if err != nil {
			return nil, err
		}
		budget -= n
		artifacts[base] = text
	}

	if topDir == "" && len(artifacts) == 0 {
		return nil, fmt.Errorf("%w: empty archive", ErrInvalidArchive)
	}

	b := &Bundle{Artifacts: artifacts}
	b.Host, b.Timestamp = metadata(artifacts[MetaFile], topDir, now)
	return b, nil
}

// checkMemberPath validates one tar header against traversal and link
// attacks and enforces that all members share a single top-level directory.
// It returns the cleaned member path.
func checkMemberPath(hdr *tar.Header, topDir *string) (string, error) {
	name := hdr.Name
	if strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: absolute member %q", ErrUnsafePath, name)
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(clean, "/../") {
		return "", fmt.Errorf("%w: traversal in member %q", ErrUnsafePath, name)
	}
	switch hdr.Typeflag {
	case tar.TypeSymlink, tar.TypeLink:
		return "", fmt.Errorf("%w: link member %q", ErrUnsafePath, name)
	}

	top := clean
	if i := strings.IndexByte(clean, '/'); i >= 0 {
		top = clean[:i]
	}
	if *topDir == "" {
		*topDir = top
	} else if top != *topDir {
		return "", fmt.Errorf("%w: member %q outside top-level directory %q", ErrUnsafePath, name, *topDir)
	}
	return clean, nil
}

// readMember reads a single member's content, failing with ErrTooLarge as
// soon as the remaining decompressed budget is exhausted.
func readMember(tr *tar.Reader, budget int64) (string, int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(tr, budget+1))
	if err != nil {
		return "", 0, fmt.Errorf("%w: bad tar stream", ErrInvalidArchive)
	}
	if n > budget {
		return "", 0, fmt.Errorf("%w: decompressed size exceeds budget", ErrTooLarge)
	}
	return buf.String(), n, nil
}

// metadata resolves host and collection timestamp from meta.txt contents,
// with the archive directory name and ingest time as fallbacks.
func metadata(meta, topDir string, now time.Time) (string, time.Time) {
	host := ""
	ts := time.Time{}

	for _, line := range strings.Split(meta, "\n") {
		line = strings.TrimSpace(line)
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		switch strings.TrimSpace(k) {
		case "host":
			host = v
		case "timestamp_utc":
			ts = parseTimestamp(v)
		}
	}

	if host == "" {
		host = hostFromDir(topDir)
	}
	if host == "" {
		host = "unknown"
	}
	if ts.IsZero() {
		ts = now.UTC()
	}
	return host, ts
}

// parseTimestamp accepts the collector's timestamp_utc formats.
func parseTimestamp(v string) time.Time {
	for _, layout := range []string{time.RFC3339, "20060102T150405Z", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// hostFromDir strips the collector's timestamp suffix from the archive's
// top-level directory name, leaving the hostname.
func hostFromDir(dir string) string {
	return timestampSuffix.ReplaceAllString(dir, "")
}
