package worker

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timewinder-dev/blockcheck/analysis"
	"github.com/timewinder-dev/blockcheck/analysis/propositional"
	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/conn"
	"github.com/timewinder-dev/blockcheck/formula"
	"github.com/timewinder-dev/blockcheck/message"
)

var variants = []struct {
	name string
	opts Options
}{
	{"plain", Options{}},
	{"smart", Options{Smart: true}},
	{"monitored", Options{Parallelism: 1}},
	{"monitored smart", Options{Parallelism: 2, Smart: true}},
}

func build(t *testing.T, g *block.Graph, f analysis.Factory, opts Options) *Ensemble {
	fm := formula.NewManager(0)
	if f == nil {
		f = propositional.NewFactory(fm)
	}
	opts.Spares++
	e, err := NewBuilder(g, f, fm, conn.NewMemoryProvider(), opts).Build(context.Background())
	require.NoError(t, err)
	return e
}

func TestBuilderShapes(t *testing.T) {
	g := chain(t, "x", "")
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			e := build(t, g, nil, v.opts)
			require.Len(t, e.Actors, 4)
			require.Len(t, e.Spare, 1)
			assert.IsType(t, &RootWorker{}, e.Actors[0])
			assert.Same(t, e.Result, e.Actors[3])
			for _, a := range e.Actors[1:3] {
				switch {
				case v.opts.Parallelism > 0:
					assert.IsType(t, &MonitoredAnalysisWorker{}, a)
				case v.opts.Smart:
					assert.IsType(t, &SmartAnalysisWorker{}, a)
				default:
					assert.IsType(t, &AnalysisWorker{}, a)
				}
			}
			assert.Equal(t, v.opts.Parallelism > 0, e.Monitor != nil)
		})
	}
}

func TestBuilderEngineFailure(t *testing.T) {
	g := chain(t, "x and", "")
	fm := formula.NewManager(0)
	_, err := NewBuilder(g, propositional.NewFactory(fm), fm, conn.NewMemoryProvider(), Options{}).Build(context.Background())
	assert.Error(t, err)
}

// verdict runs e until a verdict is announced and checks that every actor
// stops by itself afterwards.
func verdict(t *testing.T, e *Ensemble) message.Verdict {
	stop := launch(t, e.Actors...)
	v := awaitVerdict(t, e.Spare[0], 5*time.Second)
	require.Eventually(t, func() bool {
		for _, a := range e.Actors {
			if !a.Finished() {
				return false
			}
		}
		return true
	}, 5*time.Second, time.Millisecond)
	for _, err := range stop() {
		assert.NoError(t, err)
	}
	return v
}

func TestEnsembleVerdicts(t *testing.T) {
	graphs := []struct {
		name  string
		graph func(t *testing.T) *block.Graph
		want  message.Verdict
	}{
		{
			name:  "infeasible error",
			graph: func(t *testing.T) *block.Graph { return chain(t, "x", "not x") },
			want:  message.Safe,
		},
		{
			name:  "feasible error",
			graph: func(t *testing.T) *block.Graph { return chain(t, "x", "x") },
			want:  message.Violated,
		},
		{
			name: "no error location",
			graph: func(t *testing.T) *block.Graph {
				g, err := block.NewGraph([]*block.Node{
					{ID: "A", Root: true, Successors: []string{"B"}},
					{ID: "B", Start: 0, Last: 1, Locations: []int{0, 1}, Successors: []string{"C"}},
					{ID: "C", Start: 1, Last: 2, Locations: []int{1, 2}},
				})
				require.NoError(t, err)
				return g
			},
			want: message.Safe,
		},
		{
			name: "loop",
			graph: func(t *testing.T) *block.Graph {
				g, err := block.NewGraph([]*block.Node{
					{ID: "A", Root: true, Successors: []string{"B"}},
					{ID: "B", Start: 0, Last: 1, Locations: []int{0, 1}, Successors: []string{"C", "D"}},
					{ID: "C", Start: 1, Last: 0, Locations: []int{1, 0}, Successors: []string{"B"}, Guard: "y"},
					{ID: "D", Start: 1, Last: 2, Locations: []int{1, 2}, Guard: "y and not y", Error: true},
				})
				require.NoError(t, err)
				return g
			},
			want: message.Safe,
		},
	}
	for _, gt := range graphs {
		for _, v := range variants {
			t.Run(gt.name+"/"+v.name, func(t *testing.T) {
				e := build(t, gt.graph(t), nil, v.opts)
				assert.Equal(t, gt.want, verdict(t, e))
			})
		}
	}
}

// runaway never stops producing new postconditions for itself.
func runaway(n *block.Node) (analysis.ForwardEngine, analysis.Engine, error) {
	round := 0
	fwd := &stubEngine{analyze: func([]message.Message) ([]message.Message, error) {
		round++
		time.Sleep(100 * time.Microsecond)
		return []message.Message{message.Postcondition(n.ID, n.Last, strconv.Itoa(round), false)}, nil
	}}
	fwd.initial = []message.Message{message.Postcondition(n.ID, n.Last, "0", false)}
	return fwd, &stubEngine{}, nil
}

func TestEnsembleDeadline(t *testing.T) {
	g, err := block.NewGraph([]*block.Node{
		{ID: "A", Root: true, Successors: []string{"B"}},
		{ID: "B", Start: 0, Last: 0, Locations: []int{0}, Successors: []string{"B"}},
	})
	require.NoError(t, err)
	e := build(t, g, analysis.FactoryFunc(runaway), Options{Spares: 1})

	timeout := NewTimeoutWorker(50 * time.Millisecond)
	timeout.SetConnection(e.Spare[1])
	e.Actors = append(e.Actors, timeout)

	assert.Equal(t, message.Unknown, verdict(t, e))
	assert.True(t, timeout.Fired())
}

func TestEnsembleFailure(t *testing.T) {
	failing := func(n *block.Node) (analysis.ForwardEngine, analysis.Engine, error) {
		fwd := &stubEngine{analyze: func([]message.Message) ([]message.Message, error) {
			return nil, errEngine
		}}
		return fwd, &stubEngine{}, nil
	}
	e := build(t, chain(t, "", ""), analysis.FactoryFunc(failing), Options{})
	stop := launch(t, e.Actors...)

	m := awaitTerminal(t, e.Spare[0], 5*time.Second)
	assert.Equal(t, message.Error, m.Type)
	require.Eventually(t, func() bool {
		for _, a := range e.Actors {
			if !a.Finished() {
				return false
			}
		}
		return true
	}, 5*time.Second, time.Millisecond)

	failed := 0
	for _, err := range stop() {
		if err != nil {
			assert.ErrorIs(t, err, errEngine)
			failed++
		}
	}
	assert.GreaterOrEqual(t, failed, 1)
}
