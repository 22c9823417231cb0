package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	p := writeConfig(t, "server:\n  http_port: 8080\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, p, func(cfg *Config) { got <- cfg }) //nolint:errcheck
	}()

	// Give the watcher a moment to arm before touching the file.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(p, []byte("server:\n  http_port: 9999\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-got:
		if cfg.Server.HTTPPort != 9999 {
			t.Errorf("http_port after reload: got %d, want 9999", cfg.Server.HTTPPort)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("onChange never called after write")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not stop on ctx cancel")
	}
}

func TestWatch_CoalescesWriteBursts(t *testing.T) {
	p := writeConfig(t, "server:\n  http_port: 8080\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 8)
	go Watch(ctx, p, func(cfg *Config) { got <- cfg }) //nolint:errcheck

	time.Sleep(100 * time.Millisecond)

	// A save typically lands as several events in quick succession; only
	// one reload should result, carrying the final content.
	for _, port := range []string{"9001", "9002", "9003"} {
		if err := os.WriteFile(p, []byte("server:\n  http_port: "+port+"\n"), 0o600); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
	}

	select {
	case cfg := <-got:
		if cfg.Server.HTTPPort != 9003 {
			t.Errorf("reloaded port: got %d, want 9003 (final write)", cfg.Server.HTTPPort)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("onChange never called after write burst")
	}

	select {
	case cfg := <-got:
		t.Errorf("burst produced a second reload: %+v", cfg)
	case <-time.After(2 * reloadDebounce):
	}
}

func TestWatch_BadReloadKeepsQuiet(t *testing.T) {
	p := writeConfig(t, "server:\n  http_port: 8080\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 4)
	go Watch(ctx, p, func(cfg *Config) { got <- cfg }) //nolint:errcheck

	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(p, []byte("server: [broken\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-got:
		t.Errorf("invalid config triggered onChange: %+v", cfg)
	case <-time.After(reloadDebounce + 500*time.Millisecond):
	}
}
