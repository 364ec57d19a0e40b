package worker

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/timewinder-dev/blockcheck/conn"
	"github.com/timewinder-dev/blockcheck/message"
)

const VisualizationID = "visualization"

// TraceRecord is one line of a recorded message trace.
type TraceRecord struct {
	Time    time.Time `json:"time"`
	Type    string    `json:"type"`
	Source  string    `json:"source"`
	Target  int       `json:"target"`
	Payload string    `json:"payload,omitempty"`
	First   bool      `json:"first,omitempty"`
}

// VisualizationWorker logs all traffic and optionally records it as JSON
// lines. It never takes part in the analysis.
type VisualizationWorker struct {
	Worker
	trace *json.Encoder
	now   func() time.Time
}

// NewVisualizationWorker records to trace when it is non-nil.
func NewVisualizationWorker(trace io.Writer) *VisualizationWorker {
	w := &VisualizationWorker{now: time.Now}
	if trace != nil {
		w.trace = json.NewEncoder(trace)
	}
	w.init(VisualizationID)
	return w
}

func (w *VisualizationWorker) Run(ctx context.Context) error {
	stop, err := w.start(ctx)
	if err != nil {
		return err
	}
	defer stop()
	return w.loop(w, nil)
}

func (w *VisualizationWorker) processMessage(m message.Message) ([]message.Message, error) {
	terminal := w.record(m)
	for {
		next, ok, err := conn.TryRead(w.connection())
		if err != nil || !ok {
			break
		}
		w.received.Add(1)
		terminal = w.record(next) || terminal
	}
	if terminal {
		w.Shutdown()
	}
	return nil, nil
}

func (w *VisualizationWorker) record(m message.Message) bool {
	w.log.Info().
		Str("type", m.Type.String()).
		Str("from", m.Source).
		Int("target", m.Target).
		Str("payload", m.Payload).
		Msg("Observed")
	if w.trace != nil {
		rec := TraceRecord{
			Time:    w.now(),
			Type:    m.Type.String(),
			Source:  m.Source,
			Target:  m.Target,
			Payload: m.Payload,
			First:   m.First,
		}
		if err := w.trace.Encode(rec); err != nil {
			w.log.Warn().Err(err).Msg("Writing trace")
		}
	}
	return m.Type.Terminal()
}
