package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// mockConn feeds scripted frames to the read pump and records everything
// the write pump emits.
type mockConn struct {
	frames chan []byte

	mu      sync.Mutex
	written [][]byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newMockConn() *mockConn {
	return &mockConn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-m.frames:
		return websocket.TextMessage, frame, nil
	case <-m.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-m.closed:
		return errors.New("connection closed")
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, append([]byte(nil), data...))
	return nil
}

func (m *mockConn) SetWriteDeadline(time.Time) error { return nil }

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConn) writtenFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}
