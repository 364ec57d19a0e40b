package propositional

import (
	"fmt"

	"github.com/timewinder-dev/blockcheck/analysis"
	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/formula"
	"github.com/timewinder-dev/blockcheck/message"
)

// Backward pulls error conditions from a block's exit back to its entry.
type Backward struct {
	node  *block.Node
	fm    *formula.Manager
	guard formula.Formula

	seen   map[string][]formula.Formula // conditions admitted per successor
	pre    formula.Formula              // imported from Forward
	parked []formula.Formula
}

func NewBackward(n *block.Node, fm *formula.Manager) (*Backward, error) {
	guard, err := fm.Parse(n.Guard)
	if err != nil {
		return nil, fmt.Errorf("block %s guard: %w", n.ID, err)
	}
	return &Backward{
		node:  n,
		fm:    fm,
		guard: guard,
		seen:  make(map[string][]formula.Formula),
		pre:   fm.False(),
	}, nil
}

// Parked lists conditions that are infeasible under the current
// precondition but may become feasible later.
func (b *Backward) Parked() []formula.Formula {
	return b.parked
}

func (b *Backward) Proceed(m message.Message) (analysis.Processing, error) {
	if m.Type != message.ErrorCondition {
		return analysis.Processing{}, fmt.Errorf("backward engine of %s cannot handle %s", b.node.ID, m.Type)
	}
	if m.Target != b.node.Last || !b.node.HasSuccessor(m.Source) {
		return analysis.Stop(), nil
	}
	cond, err := b.fm.Parse(m.Payload)
	if err != nil {
		return analysis.Processing{}, err
	}
	for _, old := range b.seen[m.Source] {
		same, err := b.fm.Equivalent(old, cond)
		if err != nil {
			return analysis.Processing{}, err
		}
		if same {
			return analysis.Stop(), nil
		}
	}
	b.seen[m.Source] = append(b.seen[m.Source], cond)
	return analysis.Proceed(), nil
}

func (b *Backward) Analyze(msgs []message.Message) ([]message.Message, error) {
	if len(msgs) != 1 {
		return nil, fmt.Errorf("backward analysis of %s expects one condition, got %d", b.node.ID, len(msgs))
	}
	in := msgs[0]
	cond, err := b.fm.Parse(in.Payload)
	if err != nil {
		return nil, err
	}
	entry := b.fm.And(b.guard, cond)

	through, err := b.fm.Satisfiable(entry)
	if err != nil {
		return nil, err
	}
	if !through {
		return []message.Message{message.Unreachable(b.node.ID, b.node.Last, in.Payload)}, nil
	}

	feasible, err := b.fm.Satisfiable(b.fm.And(entry, b.pre))
	if err != nil {
		return nil, err
	}
	if feasible {
		return []message.Message{message.Condition(b.node.ID, b.node.Start, entry.String())}, nil
	}
	b.park(entry)
	return []message.Message{message.Unreachable(b.node.ID, b.node.Last, in.Payload)}, nil
}

func (b *Backward) park(c formula.Formula) {
	for _, p := range b.parked {
		if p.String() == c.String() {
			return
		}
	}
	b.parked = append(b.parked, c)
}

func (b *Backward) SynchronizeKnowledge(other analysis.Engine) error {
	f, ok := other.(*Forward)
	if !ok {
		return fmt.Errorf("backward engine cannot synchronize with %T", other)
	}
	b.pre = f.pre
	kept := b.parked[:0]
	for _, p := range b.parked {
		if !f.released[p.String()] {
			kept = append(kept, p)
		}
	}
	b.parked = kept
	return nil
}

// Factory builds Forward/Backward pairs sharing one formula manager.
type Factory struct {
	fm *formula.Manager
}

func NewFactory(fm *formula.Manager) *Factory {
	return &Factory{fm: fm}
}

func (f *Factory) Engines(n *block.Node) (analysis.ForwardEngine, analysis.Engine, error) {
	fwd, err := NewForward(n, f.fm)
	if err != nil {
		return nil, nil, err
	}
	bwd, err := NewBackward(n, f.fm)
	if err != nil {
		return nil, nil, err
	}
	return fwd, bwd, nil
}
