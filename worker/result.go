package worker

import (
	"context"

	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/message"
)

// ResultID is the worker id of the result aggregator.
const ResultID = "result"

// ResultWorker watches stale declarations and announces a safe verdict once
// every block has declared itself stale with no traffic in flight towards
// it.
//
// A block is in flight when the result worker has observed more messages
// addressed to it than its latest declaration says it consumed. Delivery
// keeps one total order, so the result worker never observes fewer.
type ResultWorker struct {
	Worker
	graph    *block.Graph
	roster   map[string]bool
	stale    map[string]bool
	observed map[string]int
	emitted  bool
}

func NewResultWorker(g *block.Graph) *ResultWorker {
	w := &ResultWorker{
		graph:  g,
		roster:   make(map[string]bool, g.Len()),
		stale:    make(map[string]bool, g.Len()),
		observed: make(map[string]int, g.Len()),
	}
	for _, id := range g.IDs() {
		w.roster[id] = true
	}
	w.init(ResultID)
	return w
}

func (w *ResultWorker) Run(ctx context.Context) error {
	stop, err := w.start(ctx)
	if err != nil {
		return err
	}
	defer stop()
	return w.loop(w, nil)
}

// StaleCount is the number of blocks currently believed stale.
func (w *ResultWorker) StaleCount() int {
	return len(w.stale)
}

func (w *ResultWorker) processMessage(m message.Message) ([]message.Message, error) {
	switch m.Type {
	case message.Stale:
		return w.declare(m), nil
	case message.BlockPostcondition:
		w.forget(w.graph.Addressees(m.Source, m.Target, true))
		return nil, nil
	case message.ErrorCondition:
		w.forget(w.graph.Addressees(m.Source, m.Target, false))
		return nil, nil
	case message.Error, message.FoundResult:
		w.Shutdown()
		return nil, nil
	case message.ErrorConditionUnreachable:
		return nil, nil
	default:
		unknownType(w.id, m)
		return nil, nil
	}
}

func (w *ResultWorker) declare(m message.Message) []message.Message {
	if !w.roster[m.Source] {
		return nil
	}
	stale, consumed, err := m.Staleness()
	if err != nil {
		w.log.Warn().Err(err).Str("from", m.Source).Msg("Ignoring malformed stale declaration")
		return nil
	}
	if stale && consumed != w.observed[m.Source] {
		w.log.Debug().
			Str("from", m.Source).
			Int("consumed", consumed).
			Int("observed", w.observed[m.Source]).
			Msg("Stale declaration lags addressed traffic")
		stale = false
	}
	if stale {
		w.stale[m.Source] = true
	} else {
		delete(w.stale, m.Source)
	}
	if w.emitted || len(w.stale) != len(w.roster) {
		return nil
	}
	w.emitted = true
	w.log.Info().Int("blocks", len(w.roster)).Msg("Fixpoint reached")
	return []message.Message{message.Result(w.id, message.Safe)}
}

func (w *ResultWorker) forget(ids []string) {
	for _, id := range ids {
		w.observed[id]++
		delete(w.stale, id)
	}
}

// Observed is the number of messages addressed to id seen so far.
func (w *ResultWorker) Observed(id string) int {
	return w.observed[id]
}
