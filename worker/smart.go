package worker

import (
	"container/heap"
	"context"

	"github.com/timewinder-dev/blockcheck/analysis"
	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/conn"
	"github.com/timewinder-dev/blockcheck/message"
)

// SmartAnalysisWorker reorders its pending input: postconditions arriving
// at the block entry are handled before anything else, so the forward
// summary settles before backward conditions are checked against it.
type SmartAnalysisWorker struct {
	*AnalysisWorker
}

func NewSmartAnalysisWorker(n *block.Node, forward analysis.ForwardEngine, backward analysis.Engine) *SmartAnalysisWorker {
	w := NewAnalysisWorker(n, forward, backward)
	makeSmart(w)
	return &SmartAnalysisWorker{AnalysisWorker: w}
}

// makeSmart installs the reordering inbox; it must run before
// SetConnection.
func makeSmart(w *AnalysisWorker) {
	start := w.node.Start
	w.inboxFor = func(c conn.Connection) inbox {
		return &priorityInbox{c: c, start: start}
	}
}

type priorityInbox struct {
	c     conn.Connection
	start int
	queue messageHeap
	seq   uint64
}

// next drains everything buffered on the connection into the queue. A
// terminal message found while draining is returned at once.
func (p *priorityInbox) next(ctx context.Context) (message.Message, error) {
	for {
		m, ok, err := conn.TryRead(p.c)
		if err != nil {
			return message.Message{}, err
		}
		if !ok {
			break
		}
		if m.Type.Terminal() {
			return m, nil
		}
		p.seq++
		heap.Push(&p.queue, queued{msg: m, rank: p.rank(m), seq: p.seq})
	}
	if p.queue.Len() > 0 {
		return heap.Pop(&p.queue).(queued).msg, nil
	}
	return p.c.Read(ctx)
}

func (p *priorityInbox) pending() bool {
	return p.queue.Len() > 0 || !p.c.IsEmpty()
}

func (p *priorityInbox) rank(m message.Message) int {
	if m.Type == message.BlockPostcondition && m.Target == p.start {
		return 0
	}
	return 1
}

type queued struct {
	msg  message.Message
	rank int
	seq  uint64
}

// messageHeap orders by rank, then arrival.
type messageHeap []queued

func (h messageHeap) Len() int { return len(h) }
func (h messageHeap) Less(i, j int) bool {
	if h[i].rank != h[j].rank {
		return h[i].rank < h[j].rank
	}
	return h[i].seq < h[j].seq
}
func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *messageHeap) Push(x any)   { *h = append(*h, x.(queued)) }
func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
