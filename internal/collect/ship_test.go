package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestUploadPostsMultipart(t *testing.T) {
	var gotName string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runs" {
			t.Errorf("path: %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotName = header.Filename
		buf := make([]byte, 64)
		n, _ := file.Read(buf)
		gotBody = buf[:n]
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewShipper(srv.URL, 4)
	if err := s.Upload(context.Background(), "h-20240301T120000Z.tar.gz", []byte("archive-bytes")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotName != "h-20240301T120000Z.tar.gz" || string(gotBody) != "archive-bytes" {
		t.Errorf("received %q / %q", gotName, gotBody)
	}
}

func TestUploadStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewShipper(srv.URL, 4)
	err := s.Upload(context.Background(), "x.tar.gz", []byte("junk"))
	if err == nil {
		t.Fatal("want error on 400")
	}
	if permanent, _ := asPermanent(err); !permanent {
		t.Errorf("400 should be permanent: %v", err)
	}
}

func TestUpload5xxIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewShipper(srv.URL, 4)
	err := s.Upload(context.Background(), "x.tar.gz", []byte("junk"))
	if err == nil {
		t.Fatal("want error on 500")
	}
	if permanent, _ := asPermanent(err); permanent {
		t.Errorf("500 should be transient: %v", err)
	}
}

func TestShipEvictsOldestWhenFull(t *testing.T) {
	s := NewShipper("http://unused", 2)
	s.Ship("a.tar.gz", nil)
	s.Ship("b.tar.gz", nil)
	s.Ship("c.tar.gz", nil) // evicts a

	first := <-s.buf
	second := <-s.buf
	if first.name != "b.tar.gz" || second.name != "c.tar.gz" {
		t.Errorf("buffer order: %s, %s", first.name, second.name)
	}
}

func TestRunDrainsAndRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewShipper(srv.URL, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Ship("h.tar.gz", []byte("data"))

	deadline := time.After(5 * time.Second)
	for calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("shipper never retried, calls=%d", calls.Load())
		case <-time.After(20 * time.Millisecond):
		}
	}
}
