package worker

import (
	"context"
	"sync"
	"time"

	"github.com/timewinder-dev/blockcheck/message"
)

const TimeoutID = "timeout"

// TimeoutWorker ends a run that has not converged in time by broadcasting
// an unknown verdict. It is the only guard against non-termination.
type TimeoutWorker struct {
	Worker
	timeout time.Duration
	once    sync.Once
	fired   bool
}

func NewTimeoutWorker(timeout time.Duration) *TimeoutWorker {
	w := &TimeoutWorker{timeout: timeout}
	w.init(TimeoutID)
	return w
}

// Run waits for the deadline. Traffic is drained meanwhile so the
// connection does not grow, and a verdict reached by the other workers
// cancels the deadline.
func (w *TimeoutWorker) Run(ctx context.Context) error {
	stop, err := w.start(ctx)
	if err != nil {
		return err
	}
	defer stop()

	drained := make(chan error, 1)
	go func() { drained <- w.loop(w, nil) }()

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		w.expire()
	case <-w.ctx.Done():
	}
	w.Shutdown()
	return <-drained
}

// expire broadcasts the unknown verdict at most once.
func (w *TimeoutWorker) expire() {
	w.once.Do(func() {
		w.fired = true
		w.log.Warn().Dur("timeout", w.timeout).Msg("Deadline reached")
		if err := w.broadcast([]message.Message{message.Result(w.id, message.Unknown)}); err != nil {
			w.log.Warn().Err(err).Msg("Could not broadcast timeout")
		}
	})
}

// Fired reports whether the deadline expired. Only meaningful after Run
// has returned.
func (w *TimeoutWorker) Fired() bool {
	return w.fired
}

func (w *TimeoutWorker) processMessage(m message.Message) ([]message.Message, error) {
	if m.Type.Terminal() {
		w.Shutdown()
	}
	return nil, nil
}
