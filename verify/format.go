package verify

import (
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/timewinder-dev/blockcheck/message"
	"github.com/timewinder-dev/blockcheck/worker"
)

const rule = "================================================================================"

// FormatVerdict formats the outcome of a run for display
func FormatVerdict(r *Result) string {
	var b strings.Builder
	b.WriteString("\n")
	switch {
	case r.Failed():
		b.WriteString(color.Gray.Sprint(rule))
		b.WriteString("\n")
		b.WriteString(color.Red.Sprint("ANALYSIS FAILED"))
		b.WriteString("\n")
		b.WriteString(color.Gray.Sprint(rule))
		b.WriteString("\n")
		b.WriteString(color.Bold.Sprint("Worker:  "))
		b.WriteString(color.Yellow.Sprintf("%s\n", r.Source))
		b.WriteString(color.Bold.Sprint("Reason:  "))
		b.WriteString(color.Red.Sprintf("%s\n", r.Reason))
	case r.Verdict == message.Safe:
		b.WriteString(color.Green.Sprint("✓ Program is safe - no error location is reachable"))
		b.WriteString("\n")
	case r.Verdict == message.Violated:
		b.WriteString(color.Gray.Sprint(rule))
		b.WriteString("\n")
		b.WriteString(color.Red.Sprint("ERROR LOCATION REACHABLE"))
		b.WriteString("\n")
		b.WriteString(color.Gray.Sprint(rule))
		b.WriteString("\n")
		b.WriteString(color.Bold.Sprint("Confirmed by: "))
		b.WriteString(color.Yellow.Sprintf("%s\n", r.Source))
	default:
		b.WriteString(color.Yellow.Sprintf("? Result unknown - no verdict within %s", r.Timeout))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatStatistics formats run statistics
func FormatStatistics(r *Result) string {
	var fwd, bwd, sent int64
	for _, w := range r.Workers {
		fwd += w.ForwardAnalyses
		bwd += w.BackwardAnalyses
		sent += w.MessagesSent
	}
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(color.Cyan.Sprint("=== Analysis statistics ==="))
	b.WriteString("\n")
	b.WriteString(color.Bold.Sprint("Workers: "))
	b.WriteString(fmt.Sprintf("%d\n", len(r.Workers)))
	b.WriteString(color.Bold.Sprint("Forward analyses: "))
	b.WriteString(fmt.Sprintf("%d\n", fwd))
	b.WriteString(color.Bold.Sprint("Backward analyses: "))
	b.WriteString(fmt.Sprintf("%d\n", bwd))
	b.WriteString(color.Bold.Sprint("Messages sent: "))
	b.WriteString(fmt.Sprintf("%d\n", sent))
	if r.Monitor != nil {
		b.WriteString(color.Bold.Sprint("Analysis permits: "))
		b.WriteString(fmt.Sprintf("%d (peak %d in use)\n", r.Monitor.Size, r.Monitor.Peak))
	}
	b.WriteString(color.Bold.Sprint("Formula cache: "))
	b.WriteString(fmt.Sprintf("%d hits, %d misses\n", r.Formulas.Hits, r.Formulas.Misses))
	b.WriteString(color.Bold.Sprint("Elapsed: "))
	b.WriteString(fmt.Sprintf("%s\n", r.Elapsed))
	return b.String()
}

// FormatWorkers formats one line per worker
func FormatWorkers(stats []worker.Stats) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(color.Cyan.Sprint("=== Workers ==="))
	b.WriteString("\n")
	b.WriteString(color.Gray.Sprintf("  %-16s %8s %8s %8s %8s\n", "worker", "forward", "backward", "sent", "received"))
	for _, s := range stats {
		b.WriteString(fmt.Sprintf("  %-16s %8d %8d %8d %8d\n",
			s.ID, s.ForwardAnalyses, s.BackwardAnalyses, s.MessagesSent, s.MessagesReceived))
	}
	return b.String()
}
