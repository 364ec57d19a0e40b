package worker

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Monitor is a counting permit pool shared by a group of
// MonitoredAnalysisWorkers. It bounds how many of them are inside an
// analysis step at once; it does not bound how many exist.
type Monitor struct {
	sem  *semaphore.Weighted
	size int

	active   atomic.Int64
	peak     atomic.Int64
	acquired atomic.Int64
}

// NewMonitor creates a pool of size permits (at least one).
func NewMonitor(size int) *Monitor {
	if size < 1 {
		size = 1
	}
	return &Monitor{sem: semaphore.NewWeighted(int64(size)), size: size}
}

func (m *Monitor) Size() int {
	return m.size
}

// Acquire blocks until a permit is free or ctx is done.
func (m *Monitor) Acquire(ctx context.Context) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	m.acquired.Add(1)
	n := m.active.Add(1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return nil
}

// Active is the number of permits currently held.
func (m *Monitor) Active() int64 {
	return m.active.Load()
}

func (m *Monitor) Release() {
	m.active.Add(-1)
	m.sem.Release(1)
}

type MonitorStats struct {
	Size     int
	Peak     int64
	Acquired int64
}

func (m *Monitor) Stats() MonitorStats {
	return MonitorStats{Size: m.size, Peak: m.peak.Load(), Acquired: m.acquired.Load()}
}

// MonitoredAnalysisWorker is an AnalysisWorker that holds a permit from a
// shared Monitor while it processes a message and broadcasts the result.
//
// The permit is taken once the next message has been received, not before
// the worker starts waiting for it. A worker blocked on an empty inbox thus
// holds no permit, and a pool of one cannot deadlock on idle peers. The
// initial analysis runs under a permit too.
type MonitoredAnalysisWorker struct {
	*AnalysisWorker
	monitor *Monitor
}

func NewMonitoredAnalysisWorker(w *AnalysisWorker, m *Monitor) *MonitoredAnalysisWorker {
	return &MonitoredAnalysisWorker{AnalysisWorker: w, monitor: m}
}

func (w *MonitoredAnalysisWorker) Run(ctx context.Context) error {
	return w.AnalysisWorker.run(ctx, w)
}

func (w *MonitoredAnalysisWorker) acquire(ctx context.Context) error {
	return w.monitor.Acquire(ctx)
}

func (w *MonitoredAnalysisWorker) release() {
	w.monitor.Release()
}
