package collect

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

const commandTimeout = 15 * time.Second

// command describes one diagnostic to capture: the artifact it produces and
// the program that produces it.
type command struct {
	artifact string
	bin      string
	args     []string
}

// commands is the fixed capture set. Artifact names line up with the
// server's ingest allow-list.
var commands = []command{
	{"uptime.txt", "uptime", nil},
	{"df.txt", "df", []string{"-P"}},
	{"free.txt", "free", []string{"-b"}},
	{"top.txt", "top", []string{"-bn1"}},
	{"systemd_failed_units.txt", "systemctl", []string{"list-units", "--state=failed"}},
	{"systemd_running_services.txt", "systemctl", []string{"list-units", "--type=service", "--state=running"}},
	{"log_tail.txt", "journalctl", []string{"-n", "200", "--no-pager"}},
	{"k8s_nodes.txt", "kubectl", []string{"get", "nodes"}},
	{"k8s_pods.txt", "kubectl", []string{"get", "pods", "-A"}},
	{"uname.txt", "uname", []string{"-a"}},
}

// Snapshot is one collection cycle's output, ready to be archived.
type Snapshot struct {
	Host      string
	Timestamp time.Time
	Artifacts map[string]string
}

// Collector runs the capture set against the local host.
type Collector struct {
	host string

	// runCmd and lookPath are injectable for tests.
	runCmd   func(ctx context.Context, bin string, args ...string) ([]byte, error)
	lookPath func(bin string) (string, error)
	now      func() time.Time
}

// New returns a Collector. An empty host falls back to os.Hostname.
func New(host string) *Collector {
	if host == "" {
		host, _ = os.Hostname()
	}
	return &Collector{
		host: host,
		runCmd: func(ctx context.Context, bin string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, bin, args...).CombinedOutput()
		},
		lookPath: exec.LookPath,
		now:      time.Now,
	}
}

// Snapshot captures every artifact in the command set. Individual command
// failures never fail the snapshot: a missing tool yields a sentinel body
// and a failing command keeps whatever output it produced.
func (c *Collector) Snapshot(ctx context.Context) *Snapshot {
	ts := c.now().UTC()
	snap := &Snapshot{
		Host:      c.host,
		Timestamp: ts,
		Artifacts: make(map[string]string, len(commands)+2),
	}

	for _, cmd := range commands {
		snap.Artifacts[cmd.artifact] = c.capture(ctx, cmd, ts)
	}

	if data, err := os.ReadFile("/etc/os-release"); err == nil {
		snap.Artifacts["os_release.txt"] = string(data)
	}
	snap.Artifacts["meta.txt"] = fmt.Sprintf("host=%s\ntimestamp_utc=%s\n",
		snap.Host, ts.Format(time.RFC3339))

	return snap
}

// capture runs one command and returns the headered artifact body.
func (c *Collector) capture(ctx context.Context, cmd command, ts time.Time) string {
	header := fmt.Sprintf("### CMD: %s\n### TS: %s\n",
		strings.Join(append([]string{cmd.bin}, cmd.args...), " "),
		ts.Format(time.RFC3339))

	if _, err := c.lookPath(cmd.bin); err != nil {
		return header + cmd.bin + " not found\n"
	}

	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := c.runCmd(runCtx, cmd.bin, cmd.args...)
	body := string(out)
	if err != nil && len(bytes.TrimSpace(out)) == 0 {
		// No usable output at all; record the failure without breaking
		// the sentinel convention for genuinely absent tools.
		body = fmt.Sprintf("command failed: %v\n", err)
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return header + body
}

// Archive packages a snapshot as a tar.gz bundle under a single top-level
// directory named host-<timestamp>, the layout the server expects. It
// returns the archive bytes and the suggested file name.
func Archive(snap *Snapshot) ([]byte, string, error) {
	topDir := fmt.Sprintf("%s-%s", snap.Host, snap.Timestamp.Format("20060102T150405Z"))

	names := make([]string, 0, len(snap.Artifacts))
	for name := range snap.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, name := range names {
		body := []byte(snap.Artifacts[name])
		hdr := &tar.Header{
			Name:    topDir + "/" + name,
			Mode:    0o644,
			Size:    int64(len(body)),
			ModTime: snap.Timestamp,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, "", fmt.Errorf("collect: write header %q: %w", name, err)
		}
		if _, err := tw.Write(body); err != nil {
			return nil, "", fmt.Errorf("collect: write %q: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, "", fmt.Errorf("collect: close tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, "", fmt.Errorf("collect: close gzip: %w", err)
	}
	return buf.Bytes(), topDir + ".tar.gz", nil
}
