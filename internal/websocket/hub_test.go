package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/dto"
)

// Pipeline runs emit from their own goroutines while readPump can be tearing
// the connection down at the same moment. Hammering that interleaving must
// never hit a closed Send channel.
func TestHubEmitDuringUnregisterDoesNotPanic(t *testing.T) {
	hub := NewHub(nil, nopLogger{})
	go hub.Run()

	for i := 0; i < 200; i++ {
		client := &Client{Hub: hub, ConnID: "conn", Send: make(chan []byte, 1)}
		hub.register <- client

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Emit("conn", dto.EventChunkProgress, dto.ChunkProgress{Current: j, Total: 50})
			}
		}()

		hub.unregister <- client
		wg.Wait()
	}
}

func TestHubEmitAfterUnregisterIsDropped(t *testing.T) {
	hub := NewHub(nil, nopLogger{})
	go hub.Run()

	client := &Client{Hub: hub, ConnID: "conn", Send: make(chan []byte, 4)}
	hub.register <- client
	hub.unregister <- client

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients["conn"]
		return !ok
	}, time.Second, time.Millisecond)

	hub.Emit("conn", dto.EventChunkProgress, dto.ChunkProgress{Current: 1, Total: 1})

	_, open := <-client.Send
	assert.False(t, open, "channel must be closed with nothing queued")
}

func TestHubFullBufferDropsConnection(t *testing.T) {
	hub := NewHub(nil, nopLogger{})
	go hub.Run()

	client := &Client{Hub: hub, ConnID: "conn", Send: make(chan []byte, 1)}
	hub.register <- client

	// First frame fills the buffer; the second one evicts the client
	// instead of blocking the emitting pipeline.
	hub.Emit("conn", dto.EventChunkProgress, dto.ChunkProgress{Current: 1, Total: 2})
	hub.Emit("conn", dto.EventChunkProgress, dto.ChunkProgress{Current: 2, Total: 2})

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients["conn"]
		return !ok
	}, time.Second, time.Millisecond)
}
