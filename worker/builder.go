package worker

import (
	"context"
	"fmt"

	"github.com/timewinder-dev/blockcheck/analysis"
	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/conn"
	"github.com/timewinder-dev/blockcheck/formula"
)

// Options select the worker variants an ensemble is built from.
type Options struct {
	// Parallelism is the number of analysis permits; 0 leaves analysis
	// workers unthrottled.
	Parallelism int
	// Smart makes analysis workers reorder their pending input.
	Smart bool
	// Spares is the number of extra connections to allocate for observers
	// such as a TimeoutWorker or VisualizationWorker.
	Spares int
}

// Builder wires the workers for one block graph.
type Builder struct {
	graph    *block.Graph
	factory  analysis.Factory
	solver   formula.Solver
	provider conn.Provider
	opts     Options
}

func NewBuilder(g *block.Graph, factory analysis.Factory, solver formula.Solver, provider conn.Provider, opts Options) *Builder {
	return &Builder{graph: g, factory: factory, solver: solver, provider: provider, opts: opts}
}

// Ensemble is a runnable set of connected workers.
type Ensemble struct {
	Actors  []Actor
	Result  *ResultWorker
	Monitor *Monitor          // nil when unthrottled
	Spare   []conn.Connection // connected to the actors, owned by nobody yet
}

// Shutdown stops every actor.
func (e *Ensemble) Shutdown() {
	for _, a := range e.Actors {
		a.Shutdown()
	}
}

func (e *Ensemble) Stats() []Stats {
	out := make([]Stats, 0, len(e.Actors))
	for _, a := range e.Actors {
		out = append(out, a.Stats())
	}
	return out
}

// Build creates a RootWorker for the root block, an analysis worker for
// every other block and a ResultWorker, and connects them.
func (b *Builder) Build(ctx context.Context) (*Ensemble, error) {
	e := &Ensemble{}
	if b.opts.Parallelism > 0 {
		e.Monitor = NewMonitor(b.opts.Parallelism)
	}
	for _, n := range b.graph.Nodes() {
		a, err := b.worker(n, e.Monitor)
		if err != nil {
			return nil, err
		}
		e.Actors = append(e.Actors, a)
	}
	e.Result = NewResultWorker(b.graph)
	e.Actors = append(e.Actors, e.Result)

	conns, err := b.provider.Connections(ctx, len(e.Actors)+b.opts.Spares)
	if err != nil {
		return nil, fmt.Errorf("allocating connections: %w", err)
	}
	for i, a := range e.Actors {
		a.SetConnection(conns[i])
	}
	e.Spare = conns[len(e.Actors):]
	return e, nil
}

func (b *Builder) worker(n *block.Node, m *Monitor) (Actor, error) {
	if n.Root {
		return NewRootWorker(n, b.solver)
	}
	fwd, bwd, err := b.factory.Engines(n)
	if err != nil {
		return nil, fmt.Errorf("engines for block %s: %w", n.ID, err)
	}
	w := NewAnalysisWorker(n, fwd, bwd)
	if b.opts.Smart {
		makeSmart(w)
	}
	switch {
	case m != nil:
		return NewMonitoredAnalysisWorker(w, m), nil
	case b.opts.Smart:
		return &SmartAnalysisWorker{AnalysisWorker: w}, nil
	default:
		return w, nil
	}
}
