package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timewinder-dev/blockcheck/analysis/propositional"
	"github.com/timewinder-dev/blockcheck/formula"
	"github.com/timewinder-dev/blockcheck/message"
)

func propositionalWorker(t *testing.T, guardB string) *AnalysisWorker {
	g := chain(t, guardB, "")
	n, ok := g.Node("B")
	require.True(t, ok)
	fwd, bwd, err := propositional.NewFactory(formula.NewManager(0)).Engines(n)
	require.NoError(t, err)
	return NewAnalysisWorker(n, fwd, bwd)
}

func TestAnalysisIdempotent(t *testing.T) {
	w := propositionalWorker(t, "x")
	in := message.Postcondition("A", 0, "True", true)

	out, err := w.processMessage(in)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, message.Postcondition("B", 1, "x", false), out[0])

	out, err = w.processMessage(in)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.EqualValues(t, 1, w.Stats().ForwardAnalyses)
}

func TestAnalysisIgnoresForeignTraffic(t *testing.T) {
	w := propositionalWorker(t, "x")
	for _, m := range []message.Message{
		message.Postcondition("A", 7, "True", true),
		message.Postcondition("C", 0, "True", false),
		message.Condition("A", 1, "x"),
		message.Unreachable("C", 1, "x"),
		message.StaleDeclaration("C", true, 0),
	} {
		out, err := w.processMessage(m)
		require.NoError(t, err, m.String())
		assert.Empty(t, out, m.String())
	}
	assert.Zero(t, w.Stats().ForwardAnalyses)
	assert.Zero(t, w.Stats().BackwardAnalyses)
}

func TestAnalysisStaleDeclarations(t *testing.T) {
	w := propositionalWorker(t, "x")

	assert.Equal(t, []message.Message{message.StaleDeclaration("B", true, 0)}, w.idle())
	assert.Empty(t, w.idle(), "no traffic since the last declaration")

	// Addressed traffic that changes nothing still requires a new
	// declaration.
	_, err := w.processMessage(message.Postcondition("A", 0, "True", true))
	require.NoError(t, err)
	w.idle()
	out, err := w.processMessage(message.Postcondition("A", 0, "True", true))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, []message.Message{message.StaleDeclaration("B", true, 2)}, w.idle())

	// New information revokes the declaration first.
	out, err = w.processMessage(message.Postcondition("A", 0, "y", false))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, message.StaleDeclaration("B", false, 3), out[0])
	assert.Equal(t, message.BlockPostcondition, out[1].Type)
}

func TestAnalysisBackwardStep(t *testing.T) {
	w := propositionalWorker(t, "x")
	_, err := w.processMessage(message.Postcondition("A", 0, "True", true))
	require.NoError(t, err)

	out, err := w.processMessage(message.Condition("C", 1, "x"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, message.ErrorCondition, out[0].Type)
	assert.Equal(t, 0, out[0].Target)
	assert.EqualValues(t, 1, w.Stats().BackwardAnalyses)

	assert.Panics(t, func() { w.backwardStep(nil) })
}

func TestAnalysisFailureBroadcastsError(t *testing.T) {
	w, fwd, _ := newStubWorker(t)
	fwd.analyze = func([]message.Message) ([]message.Message, error) { return nil, errEngine }
	conns := memoryConns(t, 2)
	w.SetConnection(conns[0])
	stop := launch(t, w)

	require.NoError(t, conns[1].Write(message.Postcondition("A", 0, "True", true)))
	m := awaitTerminal(t, conns[1], 2*time.Second)
	assert.Equal(t, message.Error, m.Type)
	assert.Equal(t, "B", m.Source)
	assert.Contains(t, m.Payload, errEngine.Error())

	errs := stop()
	assert.ErrorIs(t, errs[0], errEngine)
	assert.True(t, w.Finished())
}

func TestAnalysisInitialBroadcast(t *testing.T) {
	w, fwd, _ := newStubWorker(t)
	fwd.initial = []message.Message{message.Postcondition("B", 1, "seed", false)}
	conns := memoryConns(t, 2)
	w.SetConnection(conns[0])
	launch(t, w)

	m, err := conns[1].Read(t.Context())
	require.NoError(t, err)
	assert.Equal(t, fwd.initial[0], m)
}
