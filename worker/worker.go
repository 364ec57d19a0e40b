// Package worker implements the actors of a distributed block analysis.
//
// Every worker owns one connection and runs a receive, process, broadcast
// loop on its own goroutine. Workers share no analysis state; they agree on
// a verdict purely through the messages they exchange.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/blockcheck/conn"
	"github.com/timewinder-dev/blockcheck/message"
)

// Actor is the surface the ensemble and its callers see.
type Actor interface {
	ID() string
	// SetConnection hands the worker its connection. It must be called
	// exactly once, before Run.
	SetConnection(c conn.Connection)
	// Run blocks until the worker has finished. Cancelling ctx shuts the
	// worker down.
	Run(ctx context.Context) error
	Shutdown()
	Finished() bool
	Stats() Stats
}

// Stats are diagnostic counters; nothing relies on their exact values.
type Stats struct {
	ID               string
	ForwardAnalyses  int64
	BackwardAnalyses int64
	MessagesSent     int64
	MessagesReceived int64
}

// processor maps one message to the responses to broadcast.
type processor interface {
	processMessage(m message.Message) ([]message.Message, error)
}

// idler is implemented by workers that announce when they run out of work.
type idler interface {
	idle() []message.Message
}

// throttle brackets the processing of a message.
type throttle interface {
	acquire(ctx context.Context) error
	release()
}

// inbox is the retrieval strategy of a worker.
type inbox interface {
	next(ctx context.Context) (message.Message, error)
	pending() bool
}

type connInbox struct {
	c conn.Connection
}

func (i connInbox) next(ctx context.Context) (message.Message, error) { return i.c.Read(ctx) }
func (i connInbox) pending() bool                                      { return !i.c.IsEmpty() }

// Worker is the base every actor embeds. It must be initialized with init
// before use and must not be copied afterwards.
type Worker struct {
	id  string
	log zerolog.Logger

	mu       sync.Mutex
	conn     conn.Connection
	in       inbox
	inboxFor func(conn.Connection) inbox

	ctx          context.Context
	cancel       context.CancelFunc
	finished     atomic.Bool
	shutdownOnce sync.Once

	forwardAnalyses  atomic.Int64
	backwardAnalyses atomic.Int64
	sent             atomic.Int64
	received         atomic.Int64
}

func (w *Worker) init(id string) {
	w.id = id
	w.log = log.With().Str("worker", id).Logger()
	w.ctx, w.cancel = context.WithCancel(context.Background())
}

func (w *Worker) ID() string { return w.id }

func (w *Worker) SetConnection(c conn.Connection) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		panic(fmt.Sprintf("worker %s: connection already assigned", w.id))
	}
	w.conn = c
	if w.inboxFor != nil {
		w.in = w.inboxFor(c)
	} else {
		w.in = connInbox{c: c}
	}
}

func (w *Worker) connection() conn.Connection {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn
}

func (w *Worker) Finished() bool {
	return w.finished.Load()
}

// Shutdown marks the worker finished, closes its connection and unblocks a
// pending receive. Only the first call has any effect.
func (w *Worker) Shutdown() {
	w.shutdownOnce.Do(func() {
		w.finished.Store(true)
		w.cancel()
		if c := w.connection(); c != nil {
			if err := c.Close(); err != nil {
				w.log.Warn().Err(err).Msg("Closing connection")
			}
		}
		w.log.Debug().Msg("Shut down")
	})
}

func (w *Worker) Stats() Stats {
	return Stats{
		ID:               w.id,
		ForwardAnalyses:  w.forwardAnalyses.Load(),
		BackwardAnalyses: w.backwardAnalyses.Load(),
		MessagesSent:     w.sent.Load(),
		MessagesReceived: w.received.Load(),
	}
}

// start ties the worker's life to ctx. The returned function must be
// called when Run returns.
func (w *Worker) start(ctx context.Context) (func() bool, error) {
	if w.connection() == nil {
		return nil, fmt.Errorf("worker %s has no connection", w.id)
	}
	w.log.Debug().Msg("Starting")
	return context.AfterFunc(ctx, w.Shutdown), nil
}

func (w *Worker) broadcast(msgs []message.Message) error {
	c := w.connection()
	for _, m := range msgs {
		if err := c.Write(m); err != nil {
			return fmt.Errorf("worker %s: broadcasting %s: %w", w.id, m.Type, err)
		}
		w.sent.Add(1)
		w.log.Debug().Stringer("msg", m).Msg("Sent")
	}
	return nil
}

// loop runs p until the worker finishes. t may be nil.
func (w *Worker) loop(p processor, t throttle) error {
	idle, _ := p.(idler)
	for !w.Finished() {
		if idle != nil && !w.in.pending() {
			if err := w.broadcast(idle.idle()); err != nil {
				return w.stopped(err)
			}
		}
		m, err := w.in.next(w.ctx)
		if err != nil {
			return w.stopped(err)
		}
		w.received.Add(1)
		w.log.Trace().Stringer("msg", m).Msg("Received")
		if err := w.step(p, t, m); err != nil {
			return w.stopped(err)
		}
	}
	return nil
}

func (w *Worker) step(p processor, t throttle, m message.Message) error {
	if t != nil {
		if err := t.acquire(w.ctx); err != nil {
			return err
		}
		defer t.release()
	}
	out, err := p.processMessage(m)
	if err != nil {
		return err
	}
	return w.broadcast(out)
}

// stopped classifies the error that ended the loop. Cancellation and a
// closed connection are normal exits. Anything else is a failure that is
// announced to the peers before the worker shuts down.
func (w *Worker) stopped(err error) error {
	if w.Finished() || errors.Is(err, context.Canceled) || errors.Is(err, conn.ErrClosed) {
		return nil
	}
	w.log.Error().Err(err).Msg("Worker failed")
	if berr := w.broadcast([]message.Message{message.Failure(w.id, err)}); berr != nil {
		w.log.Warn().Err(berr).Msg("Could not report failure")
	}
	w.Shutdown()
	return err
}

func unknownType(id string, m message.Message) {
	panic(fmt.Sprintf("worker %s: unhandled message type %s", id, m.Type))
}
