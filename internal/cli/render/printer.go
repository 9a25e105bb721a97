package render

import (
	"context"
	"fmt"
	"io"
	"sync"

	"ai-review-be/internal/entity"
	"ai-review-be/internal/review/progress"

	"github.com/fatih/color"
)

// Printer renders progress events as one colored terminal line each.
type Printer struct {
	mu  sync.Mutex
	out io.Writer

	phase   *color.Color
	agent   *color.Color
	ok      *color.Color
	warn    *color.Color
	fail    *color.Color
	finding *color.Color
	dim     *color.Color

	verbose bool
}

func NewPrinter(out io.Writer, verbose bool) *Printer {
	return &Printer{
		out:     out,
		phase:   color.New(color.FgCyan, color.Bold),
		agent:   color.New(color.FgBlue),
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed, color.Bold),
		finding: color.New(color.FgMagenta),
		dim:     color.New(color.Faint),
		verbose: verbose,
	}
}

// Sink adapts the printer to an emitter sink.
func (p *Printer) Sink() progress.Sink {
	return progress.SinkFunc(func(_ context.Context, e progress.Event) error {
		p.Print(e)
		return nil
	})
}

func (p *Printer) Print(e progress.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prefix := p.dim.Sprintf("[%04d]", e.Seq)
	switch e.Kind {
	case progress.KindPhaseStarted:
		fmt.Fprintf(p.out, "%s %s\n", prefix, p.phase.Sprintf("== %s ==", e.Phase))
	case progress.KindPhaseCompleted:
		if p.verbose {
			fmt.Fprintf(p.out, "%s %s\n", prefix, p.dim.Sprintf("%s done", e.Phase))
		}
	case progress.KindAgentStarted:
		fmt.Fprintf(p.out, "%s %s started\n", prefix, p.agent.Sprint(e.Agent))
	case progress.KindAgentCompleted:
		findings := 0
		if e.FindingsCount != nil {
			findings = *e.FindingsCount
		}
		fmt.Fprintf(p.out, "%s %s %s %d findings, %.1fs, $%.4f\n",
			prefix, p.agent.Sprint(e.Agent), p.ok.Sprint("done"), findings, e.TimeMs/1000, e.CostUSD)
	case progress.KindChunkCompleted:
		if !p.verbose {
			return
		}
		status := p.ok.Sprint("ok")
		if e.Failed {
			status = p.warn.Sprint("failed")
		}
		fmt.Fprintf(p.out, "%s %s chunk %d/%d %s\n", prefix, p.agent.Sprint(e.Agent), deref(e.ChunkIndex)+1, deref(e.ChunkTotal), status)
	case progress.KindFindingDiscovered:
		if !p.verbose || e.Finding == nil {
			return
		}
		fmt.Fprintf(p.out, "%s %s [%s] %s\n", prefix, p.finding.Sprint("+"), e.Finding.Severity, e.Finding.Title)
	case progress.KindReviewCompleted:
		c := p.ok
		if e.Status == entity.JobFailed {
			c = p.fail
		}
		line := c.Sprintf("review %s: %d findings", e.Status, deref(e.TotalFindings))
		if e.Metrics != nil {
			line += fmt.Sprintf(" (%d calls, $%.4f)", e.Metrics.TotalCalls, e.Metrics.TotalCostUSD)
		}
		fmt.Fprintf(p.out, "%s %s\n", prefix, line)
	case progress.KindError:
		c := p.warn
		if e.Recoverable != nil && !*e.Recoverable {
			c = p.fail
		}
		fmt.Fprintf(p.out, "%s %s\n", prefix, c.Sprintf("error: %s", e.Message))
	}
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
