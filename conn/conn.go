// Package conn provides the channels block workers talk through. Every
// write on a connection is fanned out to all connections of the same
// provider, the writer's own included; receivers filter what concerns them.
package conn

import (
	"context"
	"errors"

	"github.com/timewinder-dev/blockcheck/message"
)

// ErrClosed is returned by Read and Write after Close.
var ErrClosed = errors.New("connection closed")

// Connection is owned by exactly one worker.
type Connection interface {
	// Read blocks until a message is available, ctx is done, or the
	// connection is closed.
	Read(ctx context.Context) (message.Message, error)
	// Write broadcasts m to every peer.
	Write(m message.Message) error
	// IsEmpty reports whether Read would block.
	IsEmpty() bool
	Close() error
}

// Provider allocates a set of mutually connected connections.
type Provider interface {
	Connections(ctx context.Context, n int) ([]Connection, error)
}

// TryRead returns the next buffered message without blocking.
func TryRead(c Connection) (message.Message, bool, error) {
	if c.IsEmpty() {
		return message.Message{}, false, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := c.Read(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return message.Message{}, false, nil
		}
		return message.Message{}, false, err
	}
	return m, true, nil
}
