package worker

import (
	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/message"
)

// staleness tracks what a block worker last told the result worker.
//
// Every declaration carries the number of addressed messages consumed so
// far. The result worker counts the same messages as it observes them and
// drops a declaration whose count lags behind, so the block has to declare
// again once it has caught up, even when the traffic turned out to carry
// nothing new.
type staleness struct {
	id       string
	node     *block.Node
	stale    bool // last declaration sent
	dirty    bool // addressed traffic consumed since that declaration
	consumed int
}

func (s *staleness) addressed(m message.Message) bool {
	switch m.Type {
	case message.BlockPostcondition:
		return m.Target == s.node.Start && s.node.HasPredecessor(m.Source)
	case message.ErrorCondition:
		return m.Target == s.node.Last && s.node.HasSuccessor(m.Source)
	}
	return false
}

func (s *staleness) observe(m message.Message) {
	if s.addressed(m) {
		s.dirty = true
		s.consumed++
	}
}

// accepted is called when an engine takes in new information.
func (s *staleness) accepted(out []message.Message) []message.Message {
	if !s.stale {
		return out
	}
	s.stale = false
	return append([]message.Message{message.StaleDeclaration(s.id, false, s.consumed)}, out...)
}

func (s *staleness) idle() []message.Message {
	if s.stale && !s.dirty {
		return nil
	}
	s.stale, s.dirty = true, false
	return []message.Message{message.StaleDeclaration(s.id, true, s.consumed)}
}
