package worker

import (
	"context"
	"fmt"

	"github.com/timewinder-dev/blockcheck/analysis"
	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/message"
)

// AnalysisWorker analyzes one block with a forward and a backward engine.
type AnalysisWorker struct {
	Worker
	node     *block.Node
	forward  analysis.ForwardEngine
	backward analysis.Engine
	stale    staleness
}

func NewAnalysisWorker(n *block.Node, forward analysis.ForwardEngine, backward analysis.Engine) *AnalysisWorker {
	w := &AnalysisWorker{
		node:     n,
		forward:  forward,
		backward: backward,
		stale:    staleness{id: n.ID, node: n},
	}
	w.init(n.ID)
	return w
}

func (w *AnalysisWorker) Run(ctx context.Context) error {
	return w.run(ctx, nil)
}

// run seeds the block's successors with the initial forward result and
// then serves messages until shutdown.
func (w *AnalysisWorker) run(ctx context.Context, t throttle) error {
	stop, err := w.start(ctx)
	if err != nil {
		return err
	}
	defer stop()
	if err := w.initial(t); err != nil {
		return w.stopped(err)
	}
	return w.loop(w, t)
}

func (w *AnalysisWorker) initial(t throttle) error {
	if t != nil {
		if err := t.acquire(w.ctx); err != nil {
			return err
		}
		defer t.release()
	}
	out, err := w.forward.Initial()
	if err != nil {
		return fmt.Errorf("initial analysis of %s: %w", w.id, err)
	}
	return w.broadcast(out)
}

func (w *AnalysisWorker) processMessage(m message.Message) ([]message.Message, error) {
	switch m.Type {
	case message.BlockPostcondition:
		w.stale.observe(m)
		return w.forwardStep(m)
	case message.ErrorCondition:
		w.stale.observe(m)
		return w.backwardStep([]message.Message{m})
	case message.Error, message.FoundResult:
		w.Shutdown()
		return nil, nil
	case message.ErrorConditionUnreachable, message.Stale:
		return nil, nil
	default:
		unknownType(w.id, m)
		return nil, nil
	}
}

func (w *AnalysisWorker) forwardStep(m message.Message) ([]message.Message, error) {
	p, err := w.forward.Proceed(m)
	if err != nil {
		return nil, err
	}
	if p.End {
		return p.Messages, nil
	}
	if err := w.forward.SynchronizeKnowledge(w.backward); err != nil {
		return nil, err
	}
	w.forwardAnalyses.Add(1)
	out, err := w.forward.Analyze([]message.Message{m})
	if err != nil {
		return nil, fmt.Errorf("forward analysis of %s: %w", w.id, err)
	}
	return w.stale.accepted(out), nil
}

func (w *AnalysisWorker) backwardStep(in []message.Message) ([]message.Message, error) {
	if len(in) != 1 {
		panic(fmt.Sprintf("worker %s: backward analysis fed %d messages", w.id, len(in)))
	}
	p, err := w.backward.Proceed(in[0])
	if err != nil {
		return nil, err
	}
	if p.End {
		return p.Messages, nil
	}
	if err := w.backward.SynchronizeKnowledge(w.forward); err != nil {
		return nil, err
	}
	w.backwardAnalyses.Add(1)
	out, err := w.backward.Analyze(in)
	if err != nil {
		return nil, fmt.Errorf("backward analysis of %s: %w", w.id, err)
	}
	return w.stale.accepted(out), nil
}

func (w *AnalysisWorker) idle() []message.Message {
	return w.stale.idle()
}
