package collect

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 30 * time.Second
)

// payload is one archived snapshot waiting to be uploaded.
type payload struct {
	name string
	data []byte
}

// Shipper buffers archived snapshots and uploads them to the server.
// Ship() is non-blocking; when the buffer is full the oldest bundle is
// evicted. Run() must be called in a goroutine to drain the buffer and
// retry failed uploads with backoff.
type Shipper struct {
	url    string
	client *http.Client
	buf    chan payload
}

// NewShipper creates a Shipper posting to serverURL's upload endpoint.
func NewShipper(serverURL string, bufferSize int) *Shipper {
	if bufferSize <= 0 {
		bufferSize = 8
	}
	return &Shipper{
		url:    serverURL + "/api/v1/runs",
		client: &http.Client{Timeout: sendTimeout},
		buf:    make(chan payload, bufferSize),
	}
}

// Ship enqueues an archive for upload. If the buffer is full the oldest
// entry is evicted to make room.
func (s *Shipper) Ship(name string, data []byte) {
	p := payload{name: name, data: data}
	select {
	case s.buf <- p:
	default:
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest bundle",
				"evicted", old.name, "buffer_cap", cap(s.buf))
		default:
		}
		s.buf <- p
	}
}

// Run drains the buffer until ctx is cancelled, retrying transient upload
// failures with truncated exponential backoff.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		select {
		case <-ctx.Done():
			return

		case p := <-s.buf:
			for {
				err := s.Upload(ctx, p.name, p.data)
				if err == nil {
					bo.reset()
					slog.Info("shipper: bundle delivered", "name", p.name)
					break
				}
				if permanent, msg := asPermanent(err); permanent {
					slog.Error("shipper: server rejected bundle, discarding",
						"name", p.name, "reason", msg)
					break
				}

				wait := bo.next()
				slog.Warn("shipper: upload failed, will retry",
					"name", p.name, "err", err, "retry_in", wait)
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
	}
}

// Upload posts one archive synchronously as a multipart form.
func (s *Shipper) Upload(ctx context.Context, name string, data []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("shipper: build form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("shipper: write form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("shipper: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &body)
	if err != nil {
		return fmt.Errorf("shipper: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("shipper: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: string(msg)}
	}
	return nil
}

// statusError is a non-2xx upload response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.code, e.body)
}

// asPermanent reports whether err means the bundle itself is bad and a
// retry cannot succeed. 4xx responses are permanent; everything else
// (connectivity, 5xx) is transient.
func asPermanent(err error) (bool, string) {
	se, ok := err.(*statusError)
	if !ok {
		return false, ""
	}
	if se.code >= 400 && se.code < 500 {
		return true, se.Error()
	}
	return false, ""
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

func (b *backoff) next() time.Duration {
	d := b.current
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}
	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
