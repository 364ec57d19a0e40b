package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timewinder-dev/blockcheck/analysis/propositional"
	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/conn"
	"github.com/timewinder-dev/blockcheck/formula"
	"github.com/timewinder-dev/blockcheck/message"
)

// wrapProvider replaces the connection at index with wrap's result.
type wrapProvider struct {
	conn.Provider
	index int
	wrap  func(conn.Connection) conn.Connection
}

func (p wrapProvider) Connections(ctx context.Context, n int) ([]conn.Connection, error) {
	conns, err := p.Provider.Connections(ctx, n)
	if err != nil {
		return nil, err
	}
	conns[p.index] = p.wrap(conns[p.index])
	return conns, nil
}

// heldConn holds back the first write matching hold until open is called,
// like a worker descheduled between checking its inbox and publishing.
type heldConn struct {
	conn.Connection
	hold func(message.Message) bool

	once     sync.Once
	gate     chan struct{}
	openOnce sync.Once
}

func newHeldConn(c conn.Connection, hold func(message.Message) bool) *heldConn {
	return &heldConn{Connection: c, hold: hold, gate: make(chan struct{})}
}

func (c *heldConn) Write(m message.Message) error {
	held := false
	if c.hold(m) {
		c.once.Do(func() { held = true })
	}
	if held {
		<-c.gate
	}
	return c.Connection.Write(m)
}

func (c *heldConn) open() {
	c.openOnce.Do(func() { close(c.gate) })
}

// lateConn hands messages to its reader only after a delay, and IsEmpty
// cannot see the ones still on their way. This is how a subscription pump
// behaves.
type lateConn struct {
	conn.Connection
	delay time.Duration
	ready chan message.Message
	done  chan struct{}
	once  sync.Once
}

func newLateConn(c conn.Connection, delay time.Duration) *lateConn {
	l := &lateConn{
		Connection: c,
		delay:      delay,
		ready:      make(chan message.Message, 4096),
		done:       make(chan struct{}),
	}
	go l.pump()
	return l
}

func (l *lateConn) pump() {
	for {
		m, err := l.Connection.Read(context.Background())
		if err != nil {
			return
		}
		select {
		case <-time.After(l.delay):
		case <-l.done:
			return
		}
		select {
		case l.ready <- m:
		case <-l.done:
			return
		}
	}
}

func (l *lateConn) Read(ctx context.Context) (message.Message, error) {
	select {
	case <-l.done:
		return message.Message{}, conn.ErrClosed
	default:
	}
	select {
	case m := <-l.ready:
		return m, nil
	default:
	}
	select {
	case m := <-l.ready:
		return m, nil
	case <-l.done:
		return message.Message{}, conn.ErrClosed
	case <-ctx.Done():
		return message.Message{}, ctx.Err()
	}
}

func (l *lateConn) IsEmpty() bool {
	return len(l.ready) == 0
}

func (l *lateConn) Close() error {
	l.once.Do(func() { close(l.done) })
	return l.Connection.Close()
}

// buildWrapped builds g with the connection of block id replaced by wrap.
func buildWrapped(t *testing.T, g *block.Graph, id string, opts Options, wrap func(conn.Connection) conn.Connection) *Ensemble {
	index := -1
	for i, n := range g.Nodes() {
		if n.ID == id {
			index = i
		}
	}
	require.GreaterOrEqual(t, index, 0, "no block %s", id)
	fm := formula.NewManager(0)
	opts.Spares++
	p := wrapProvider{Provider: conn.NewMemoryProvider(), index: index, wrap: wrap}
	e, err := NewBuilder(g, propositional.NewFactory(fm), fm, p, opts).Build(context.Background())
	require.NoError(t, err)
	return e
}

func declaresStale(m message.Message, id string) bool {
	if m.Type != message.Stale || m.Source != id {
		return false
	}
	stale, err := m.IsStale()
	return err == nil && stale
}

// B declares itself stale before reading the seed, but its declaration
// reaches the hub only after the seed and after every other block has
// declared. The result worker must not take that for a fixpoint.
func TestStaleDeclarationOvertakenBySeed(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			var held *heldConn
			e := buildWrapped(t, chain(t, "True", "True"), "B", v.opts, func(c conn.Connection) conn.Connection {
				held = newHeldConn(c, func(m message.Message) bool { return declaresStale(m, "B") })
				return held
			})
			stop := launch(t, e.Actors...)
			t.Cleanup(held.open)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			var seeded, rootStale, cStale bool
			var terminal message.Message
			for {
				m, err := e.Spare[0].Read(ctx)
				require.NoError(t, err, "no terminal message observed")
				switch {
				case m.Type == message.BlockPostcondition && m.First:
					seeded = true
				case declaresStale(m, "A"):
					rootStale = true
				case declaresStale(m, "C"):
					cStale = true
				}
				if seeded && rootStale && cStale {
					held.open()
				}
				if m.Type.Terminal() {
					terminal = m
					break
				}
			}
			require.Equal(t, message.FoundResult, terminal.Type, terminal.Payload)
			got, err := terminal.Verdict()
			require.NoError(t, err)
			assert.Equal(t, message.Violated, got)

			held.open()
			for _, err := range stop() {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStaleDeclarationWithLateDelivery(t *testing.T) {
	graphs := []struct {
		name   string
		guardB string
		guardC string
		want   message.Verdict
	}{
		{"feasible error", "True", "True", message.Violated},
		{"infeasible error", "x", "not x", message.Safe},
	}
	for _, gt := range graphs {
		for _, v := range variants {
			t.Run(gt.name+"/"+v.name, func(t *testing.T) {
				e := buildWrapped(t, chain(t, gt.guardB, gt.guardC), "B", v.opts, func(c conn.Connection) conn.Connection {
					return newLateConn(c, 2*time.Millisecond)
				})
				assert.Equal(t, gt.want, verdict(t, e))
			})
		}
	}
}
