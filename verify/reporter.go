package verify

import (
	"fmt"
	"io"

	"github.com/gookit/color"
	"github.com/timewinder-dev/blockcheck/block"
)

// Reporter is told when a run starts and how it ended.
type Reporter interface {
	Started(g *block.Graph, actors int)
	Finished(r *Result)
}

// SilentReporter does not output anything
type SilentReporter struct{}

func (SilentReporter) Started(*block.Graph, int) {}
func (SilentReporter) Finished(*Result)          {}

// ColorReporter writes colorized progress and the final report to a
// writer, typically stderr.
type ColorReporter struct {
	Writer io.Writer
	// Workers adds the per-worker table to the final report.
	Workers bool
}

func (r *ColorReporter) Started(g *block.Graph, actors int) {
	fmt.Fprintln(r.Writer, color.Cyan.Sprintf("Analyzing %d blocks with %d workers...", g.Len(), actors))
}

func (r *ColorReporter) Finished(res *Result) {
	if r.Workers {
		fmt.Fprint(r.Writer, FormatWorkers(res.Workers))
	}
	fmt.Fprint(r.Writer, FormatStatistics(res))
	fmt.Fprint(r.Writer, FormatVerdict(res))
}
