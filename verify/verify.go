// Package verify runs a complete block analysis: it builds the worker
// ensemble for a graph, attaches the deadline and visualization workers,
// waits for the first verdict and tears everything down again.
package verify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/timewinder-dev/blockcheck/analysis/propositional"
	"github.com/timewinder-dev/blockcheck/block"
	"github.com/timewinder-dev/blockcheck/cas"
	"github.com/timewinder-dev/blockcheck/conn"
	"github.com/timewinder-dev/blockcheck/formula"
	"github.com/timewinder-dev/blockcheck/message"
	"github.com/timewinder-dev/blockcheck/worker"
)

// Result describes how a run ended.
type Result struct {
	// Verdict is empty when a worker failed.
	Verdict message.Verdict
	// Source is the worker that announced the verdict or the failure.
	Source  string
	Reason  string
	Timeout time.Duration
	Elapsed time.Duration

	Workers  []worker.Stats
	Monitor  *worker.MonitorStats
	Formulas cas.CacheStats
}

func (r *Result) Failed() bool {
	return r.Verdict == ""
}

// Run analyzes g and returns once a verdict has been announced and every
// worker has stopped. A failing worker is reported in the Result, not as
// an error; the error return covers setup problems and cancellation of
// ctx.
func Run(ctx context.Context, g *block.Graph, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = SilentReporter{}
	}

	provider, closeProvider, err := newProvider(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer closeProvider()

	var trace io.Writer
	if opts.Trace != "" {
		f, err := os.Create(opts.Trace)
		if err != nil {
			return nil, fmt.Errorf("creating trace: %w", err)
		}
		defer f.Close()
		trace = f
	}
	visualize := opts.Visualize || trace != nil

	fm := formula.NewManager(0)
	engines := opts.Engines
	if engines == nil {
		engines = propositional.NewFactory(fm)
	}
	spares := 2
	if visualize {
		spares++
	}
	e, err := worker.NewBuilder(g, engines, fm, provider, worker.Options{
		Parallelism: opts.Parallelism,
		Smart:       opts.Smart,
		Spares:      spares,
	}).Build(ctx)
	if err != nil {
		return nil, err
	}

	timeout := worker.NewTimeoutWorker(opts.Timeout.Duration)
	timeout.SetConnection(e.Spare[0])
	e.Actors = append(e.Actors, timeout)
	observer := e.Spare[1]
	defer observer.Close()
	if visualize {
		v := worker.NewVisualizationWorker(trace)
		v.SetConnection(e.Spare[2])
		e.Actors = append(e.Actors, v)
	}

	reporter.Started(g, len(e.Actors))
	log.Info().
		Int("blocks", g.Len()).
		Int("parallelism", opts.Parallelism).
		Bool("smart", opts.Smart).
		Str("transport", opts.Transport).
		Msg("Starting analysis")

	start := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, egCtx := errgroup.WithContext(runCtx)
	for _, a := range e.Actors {
		eg.Go(func() error { return a.Run(egCtx) })
	}

	final, readErr := awaitTerminal(egCtx, observer)
	if readErr != nil {
		e.Shutdown()
		cancel()
	}
	runErr := drain(eg, e)
	cancel()

	res := &Result{
		Timeout:  opts.Timeout.Duration,
		Elapsed:  time.Since(start),
		Workers:  e.Stats(),
		Formulas: fm.CacheStats(),
	}
	if e.Monitor != nil {
		st := e.Monitor.Stats()
		res.Monitor = &st
	}
	switch {
	case ctx.Err() != nil:
		return res, ctx.Err()
	case readErr != nil && runErr != nil:
		// A worker failed without its announcement reaching us.
		res.Reason = runErr.Error()
	case readErr != nil:
		return res, readErr
	}
	res.Source = final.Source
	switch final.Type {
	case message.FoundResult:
		v, err := final.Verdict()
		if err != nil {
			return res, err
		}
		res.Verdict = v
		if runErr != nil {
			log.Warn().Err(runErr).Msg("Worker failed after the verdict")
		}
	case message.Error:
		res.Reason = final.Payload
	}
	log.Info().
		Str("verdict", string(res.Verdict)).
		Str("source", res.Source).
		Dur("elapsed", res.Elapsed).
		Msg("Analysis finished")
	reporter.Finished(res)
	return res, nil
}

// ShutdownGrace is how long workers get to stop by themselves once a
// verdict is out. Stragglers are shut down after that.
var ShutdownGrace = 2 * time.Second

func drain(eg *errgroup.Group, e *worker.Ensemble) error {
	done := make(chan error, 1)
	go func() { done <- eg.Wait() }()
	timer := time.NewTimer(ShutdownGrace)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		log.Warn().Dur("grace", ShutdownGrace).Msg("Workers still running after the verdict, stopping them")
		e.Shutdown()
		return <-done
	}
}

// awaitTerminal returns the first FoundResult or Error seen on c.
func awaitTerminal(ctx context.Context, c conn.Connection) (message.Message, error) {
	for {
		m, err := c.Read(ctx)
		if err != nil {
			return message.Message{}, err
		}
		if m.Type.Terminal() {
			return m, nil
		}
	}
}

func newProvider(ctx context.Context, opts Options) (conn.Provider, func(), error) {
	switch opts.Transport {
	case TransportMemory:
		return conn.NewMemoryProvider(), func() {}, nil
	case TransportRedis:
		p, err := conn.NewRedisProvider(ctx, opts.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return p, func() {
			if err := p.Close(); err != nil {
				log.Warn().Err(err).Msg("Closing redis client")
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown transport %q", opts.Transport)
}
