package worker

import (
	"context"
	"fmt"

	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/formula"
	"github.com/timewinder-dev/blockcheck/message"
)

// RootWorker stands for the program entry. It starts the forward
// propagation and decides whether error conditions that reach the entry
// are feasible.
type RootWorker struct {
	Worker
	node   *block.Node
	solver formula.Solver
	stale  staleness
}

// NewRootWorker fails unless n has the shape of an entry block: no
// predecessors, no locations, and Last equal to Start.
func NewRootWorker(n *block.Node, solver formula.Solver) (*RootWorker, error) {
	if err := n.ValidateRoot(); err != nil {
		return nil, err
	}
	w := &RootWorker{
		node:   n,
		solver: solver,
		stale:  staleness{id: n.ID, node: n},
	}
	w.init(n.ID)
	return w, nil
}

func (w *RootWorker) Run(ctx context.Context) error {
	stop, err := w.start(ctx)
	if err != nil {
		return err
	}
	defer stop()
	seed := message.Postcondition(w.id, w.node.Last, "True", true)
	if err := w.broadcast([]message.Message{seed}); err != nil {
		return w.stopped(err)
	}
	return w.loop(w, nil)
}

func (w *RootWorker) processMessage(m message.Message) ([]message.Message, error) {
	switch m.Type {
	case message.ErrorCondition:
		w.stale.observe(m)
		if m.Target != w.node.Last || !w.node.HasSuccessor(m.Source) {
			return nil, nil
		}
		return w.adjudicate(m)
	case message.Error, message.FoundResult:
		w.Shutdown()
		return nil, nil
	case message.BlockPostcondition, message.ErrorConditionUnreachable, message.Stale:
		return nil, nil
	default:
		unknownType(w.id, m)
		return nil, nil
	}
}

// adjudicate decides an error condition that reached the program entry.
func (w *RootWorker) adjudicate(m message.Message) ([]message.Message, error) {
	w.backwardAnalyses.Add(1)
	f, err := w.solver.Parse(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("root %s: %w", w.id, err)
	}
	unsat, err := w.solver.IsUnsatisfiable(f)
	if err != nil {
		return nil, fmt.Errorf("root %s: %w", w.id, err)
	}
	if unsat {
		w.log.Debug().Str("condition", m.Payload).Str("from", m.Source).Msg("Error condition infeasible at entry")
		return []message.Message{message.Unreachable(w.id, w.node.Last, m.Payload)}, nil
	}
	w.log.Info().Str("condition", m.Payload).Str("from", m.Source).Msg("Error condition feasible at entry")
	return []message.Message{message.Result(w.id, message.Violated)}, nil
}

func (w *RootWorker) idle() []message.Message {
	return w.stale.idle()
}
