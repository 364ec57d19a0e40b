package conn

import (
	"context"
	"sync"

	"github.com/timewinder-dev/blockcheck/message"
)

// mailbox is an unbounded FIFO with a blocking read. Writers never block,
// so a broadcast cannot deadlock against a slow reader.
type mailbox struct {
	mu     sync.Mutex
	queue  []message.Message
	signal chan struct{}
	done   chan struct{}
	closed bool
}

func newMailbox() *mailbox {
	return &mailbox{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (b *mailbox) put(m message.Message) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, m)
	b.mu.Unlock()
	select {
	case b.signal <- struct{}{}:
	default:
	}
	return true
}

func (b *mailbox) take(ctx context.Context) (message.Message, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return message.Message{}, ErrClosed
		}
		if len(b.queue) > 0 {
			m := b.queue[0]
			b.queue[0] = message.Message{}
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return m, nil
		}
		b.mu.Unlock()

		// A done context wins only when nothing is queued.
		select {
		case <-b.signal:
		case <-b.done:
		case <-ctx.Done():
			return message.Message{}, ctx.Err()
		}
	}
}

func (b *mailbox) empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue) == 0
}

func (b *mailbox) close() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.closed = true
	b.queue = nil
	close(b.done)
	return true
}
