// Package analysis declares the contract between block workers and the
// abstract domain that computes block summaries.
package analysis

import (
	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/message"
)

// Processing is the answer of Engine.Proceed. When End is set the worker
// must not run the engine and broadcasts Messages as they are.
type Processing struct {
	End      bool
	Messages []message.Message
}

// Proceed tells the worker to run the engine.
func Proceed() Processing {
	return Processing{}
}

// Stop short-circuits the engine, optionally answering with msgs.
func Stop(msgs ...message.Message) Processing {
	return Processing{End: true, Messages: msgs}
}

// Engine is one direction of the analysis of a single block.
type Engine interface {
	// Proceed admits m into the engine's state.
	Proceed(m message.Message) (Processing, error)
	// Analyze runs the engine over the admitted state.
	Analyze(msgs []message.Message) ([]message.Message, error)
	// SynchronizeKnowledge imports what other has learned about the block.
	SynchronizeKnowledge(other Engine) error
}

// ForwardEngine additionally produces the block's initial summary.
type ForwardEngine interface {
	Engine
	Initial() ([]message.Message, error)
}

// Factory creates the engine pair of a block.
type Factory interface {
	Engines(n *block.Node) (ForwardEngine, Engine, error)
}

type FactoryFunc func(n *block.Node) (ForwardEngine, Engine, error)

func (f FactoryFunc) Engines(n *block.Node) (ForwardEngine, Engine, error) {
	return f(n)
}
