// Package propositional is a small reference domain over boolean
// variables. Each block carries a guard; the states reaching a block's exit
// are the states reaching its entry that satisfy the guard. Since
// variables are never assigned, a path is feasible iff the conjunction of
// its guards is satisfiable.
package propositional

import (
	"fmt"
	"sort"

	"github.com/timewinder-dev/blockcheck/analysis"
	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/formula"
	"github.com/timewinder-dev/blockcheck/message"
)

// Forward propagates postconditions from a block's entry to its exit.
type Forward struct {
	node  *block.Node
	fm    *formula.Manager
	guard formula.Formula

	posts    map[string]formula.Formula // latest postcondition per predecessor
	pre      formula.Formula
	lastPost formula.Formula // last postcondition broadcast
	reported bool            // error condition for our own error location sent

	parked   []formula.Formula // infeasible conditions imported from Backward
	released map[string]bool
}

func NewForward(n *block.Node, fm *formula.Manager) (*Forward, error) {
	guard, err := fm.Parse(n.Guard)
	if err != nil {
		return nil, fmt.Errorf("block %s guard: %w", n.ID, err)
	}
	return &Forward{
		node:     n,
		fm:       fm,
		guard:    guard,
		posts:    make(map[string]formula.Formula),
		pre:      fm.False(),
		released: make(map[string]bool),
	}, nil
}

// Initial is empty: nothing reaches a block before its predecessors speak.
func (f *Forward) Initial() ([]message.Message, error) {
	return nil, nil
}

func (f *Forward) Proceed(m message.Message) (analysis.Processing, error) {
	if m.Type != message.BlockPostcondition {
		return analysis.Processing{}, fmt.Errorf("forward engine of %s cannot handle %s", f.node.ID, m.Type)
	}
	if m.Target != f.node.Start || !f.node.HasPredecessor(m.Source) {
		return analysis.Stop(), nil
	}
	post, err := f.fm.Parse(m.Payload)
	if err != nil {
		return analysis.Processing{}, err
	}
	if old, ok := f.posts[m.Source]; ok {
		same, err := f.fm.Equivalent(old, post)
		if err != nil {
			return analysis.Processing{}, err
		}
		if same {
			return analysis.Stop(), nil
		}
	}
	f.posts[m.Source] = post
	return analysis.Proceed(), nil
}

func (f *Forward) Analyze(_ []message.Message) ([]message.Message, error) {
	preds := make([]string, 0, len(f.posts))
	for p := range f.posts {
		preds = append(preds, p)
	}
	sort.Strings(preds)
	incoming := make([]formula.Formula, 0, len(preds))
	for _, p := range preds {
		incoming = append(incoming, f.posts[p])
	}
	f.pre = f.fm.Or(incoming...)
	post := f.fm.And(f.pre, f.guard)

	var out []message.Message
	reachable, err := f.fm.Satisfiable(post)
	if err != nil {
		return nil, err
	}
	if reachable {
		changed := f.lastPost == nil
		if !changed {
			same, err := f.fm.Equivalent(f.lastPost, post)
			if err != nil {
				return nil, err
			}
			changed = !same
		}
		if changed {
			f.lastPost = post
			if len(f.node.Successors) > 0 {
				out = append(out, message.Postcondition(f.node.ID, f.node.Last, post.String(), false))
			}
		}
		if f.node.Error && !f.reported {
			f.reported = true
			out = append(out, message.Condition(f.node.ID, f.node.Start, f.guard.String()))
		}
	}

	released, err := f.release()
	if err != nil {
		return nil, err
	}
	return append(out, released...), nil
}

// release re-issues parked conditions that the new precondition admits.
func (f *Forward) release() ([]message.Message, error) {
	var out []message.Message
	for _, c := range f.parked {
		if f.released[c.String()] {
			continue
		}
		sat, err := f.fm.Satisfiable(f.fm.And(c, f.pre))
		if err != nil {
			return nil, err
		}
		if sat {
			f.released[c.String()] = true
			out = append(out, message.Condition(f.node.ID, f.node.Start, c.String()))
		}
	}
	return out, nil
}

func (f *Forward) SynchronizeKnowledge(other analysis.Engine) error {
	b, ok := other.(*Backward)
	if !ok {
		return fmt.Errorf("forward engine cannot synchronize with %T", other)
	}
	f.parked = append(f.parked[:0], b.parked...)
	return nil
}
