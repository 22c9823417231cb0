package ws

import (
	"sync"
	"testing"

	"github.com/jtq-dev/opslens/internal/store"
)

// TestRunCreatedDuringDisconnect races a broadcast against clients
// disconnecting. A send must never hit a channel that unregister already
// closed, even with tiny buffers forcing the slow-client path.
func TestRunCreatedDuringDisconnect(t *testing.T) {
	h := New()
	run := store.Run{ID: "r1", Host: "web-01", HealthScore: 85}

	for iter := 0; iter < 200; iter++ {
		clients := make([]*client, 64)
		for i := range clients {
			clients[i] = &client{send: make(chan []byte, 1)}
			if !h.register(clients[i]) {
				t.Fatal("register refused on open hub")
			}
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, c := range clients {
				h.unregister(c)
			}
		}()

		h.RunCreated(run)
		h.RunCreated(run) // second broadcast fills 1-deep buffers, exercising the drop path
		wg.Wait()

		if n := h.Count(); n != 0 {
			t.Fatalf("iteration %d: %d clients left registered", iter, n)
		}
	}
}

func TestUnregisterTwiceIsSafe(t *testing.T) {
	h := New()
	c := &client{send: make(chan []byte, 1)}
	if !h.register(c) {
		t.Fatal("register refused on open hub")
	}
	h.unregister(c)
	h.unregister(c) // dropped as slow and disconnected at the same time
	if h.Count() != 0 {
		t.Errorf("Count: got %d, want 0", h.Count())
	}
}
