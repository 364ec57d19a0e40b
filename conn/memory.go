package conn

import (
	"context"
	"fmt"
	"sync"

	"github.com/timewinder-dev/blockcheck/message"
)

// MemoryProvider connects workers inside one process. All connections of
// one call to Connections share a hub; the hub lock gives writes a single
// total order that every reader observes.
type MemoryProvider struct{}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{}
}

func (p *MemoryProvider) Connections(_ context.Context, n int) ([]Connection, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cannot allocate %d connections", n)
	}
	h := &hub{}
	out := make([]Connection, n)
	for i := range out {
		c := &memoryConn{hub: h, box: newMailbox()}
		h.members = append(h.members, c)
		out[i] = c
	}
	return out, nil
}

type hub struct {
	mu      sync.Mutex
	members []*memoryConn
}

func (h *hub) broadcast(m message.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.members {
		c.box.put(m)
	}
}

type memoryConn struct {
	hub *hub
	box *mailbox
}

func (c *memoryConn) Read(ctx context.Context) (message.Message, error) {
	return c.box.take(ctx)
}

func (c *memoryConn) Write(m message.Message) error {
	c.box.mu.Lock()
	closed := c.box.closed
	c.box.mu.Unlock()
	if closed {
		return ErrClosed
	}
	c.hub.broadcast(m)
	return nil
}

func (c *memoryConn) IsEmpty() bool {
	return c.box.empty()
}

func (c *memoryConn) Close() error {
	c.box.close()
	return nil
}
