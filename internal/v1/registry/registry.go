// Package registry maps socket ids to the write ends of open WebSocket
// connections. It is the single process-wide fan-out table: the room engine
// addresses sockets only by id and never touches a connection directly.
package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eratosthenes-game/server/internal/v1/logging"
	"github.com/eratosthenes-game/server/internal/v1/metrics"
)

// SendQueueSize bounds each socket's outbound channel. A slow consumer
// overflowing it loses messages rather than stalling the sender.
const SendQueueSize = 256

// Registry assigns monotonically increasing socket ids and delivers
// outbound messages best-effort.
type Registry struct {
	mu      sync.RWMutex
	writers map[int64]chan []byte
	nextID  atomic.Int64
}

// New returns an empty registry. Socket ids start at 1; id 0 means
// "no socket" throughout the server.
func New() *Registry {
	return &Registry{writers: map[int64]chan []byte{}}
}

// Add registers a new socket and returns its id together with the channel
// the connection's write pump must drain.
func (r *Registry) Add() (int64, <-chan []byte) {
	id := r.nextID.Add(1)
	ch := make(chan []byte, SendQueueSize)

	r.mu.Lock()
	r.writers[id] = ch
	r.mu.Unlock()

	metrics.IncConnection()
	return id, ch
}

// Remove unregisters a socket and closes its channel, which ends the write
// pump. Removing an unknown id is a no-op.
func (r *Registry) Remove(id int64) {
	r.mu.Lock()
	ch, ok := r.writers[id]
	if ok {
		delete(r.writers, id)
		close(ch)
	}
	r.mu.Unlock()

	if ok {
		metrics.DecConnection()
	}
}

// Send queues msg for one socket. Unknown ids and full queues drop the
// message; delivery is never guaranteed.
func (r *Registry) Send(id int64, msg []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.writers[id]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		metrics.DroppedMessages.Inc()
		logging.Warn(context.Background(), "send queue full, dropping message",
			zap.Int64("socket_id", id))
	}
}

// Broadcast queues msg for each listed socket.
func (r *Registry) Broadcast(msg []byte, ids []int64) {
	for _, id := range ids {
		r.Send(id, msg)
	}
}

// Count returns the number of registered sockets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.writers)
}
