// Package console is the terminal front of the job core: it polls the
// controller on a fixed cadence, prints severity-colored output lines
// with timestamps, and reports the terminal outcome of the run.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-tools/pipeman/internal/job"
)

const (
	defaultPoll = 50 * time.Millisecond
	drainBatch  = 256
	ruleWidth   = 60
)

var severityColors = map[job.Severity]*color.Color{
	job.Error:   color.New(color.FgRed),
	job.Warning: color.New(color.FgYellow),
	job.Success: color.New(color.FgGreen),
	job.Info:    color.New(color.FgBlue),
	job.Header:  color.New(color.FgMagenta),
	job.Plain:   color.New(color.Reset),
}

var timestampColor = color.New(color.Faint)

// Console drives one pipeline run to its terminal state, rendering the
// drained output as it arrives.
type Console struct {
	ctrl    *job.Controller
	out     io.Writer
	capture io.Writer
	poll    time.Duration
	now     func() time.Time
}

func New(ctrl *job.Controller, out io.Writer) *Console {
	return &Console{
		ctrl: ctrl,
		out:  out,
		poll: defaultPoll,
		now:  time.Now,
	}
}

// WithCapture copies every printed line, uncolored, to w. Used for
// saving the run log to a file.
func (c *Console) WithCapture(w io.Writer) *Console {
	c.capture = w
	return c
}

// WithPoll changes the drain cadence.
func (c *Console) WithPoll(d time.Duration) *Console {
	c.poll = d
	return c
}

// Run starts the pipeline and drains it until the run reaches a
// terminal state. Cancelling ctx requests a stop but Run still waits
// for the process tree to actually go away; the returned state is
// always terminal unless Start itself failed.
func (c *Console) Run(ctx context.Context, spec job.Spec) (job.State, error) {
	if err := c.ctrl.Start(spec); err != nil {
		return c.ctrl.State(), err
	}

	c.rule()
	c.line(job.Line{Text: "Pipeline started", Severity: job.Success})
	c.line(job.Line{Text: "Command: " + spec.Path + " " + strings.Join(spec.Args, " ")})
	c.rule()

	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			c.ctrl.Stop()
		case <-done:
		}
		return nil
	})

	// Sole consumer of the controller queue.
	g.Go(func() error {
		defer close(done)
		ticker := time.NewTicker(c.poll)
		defer ticker.Stop()
		for range ticker.C {
			for _, line := range c.ctrl.Drain(drainBatch) {
				c.line(line)
			}
			if st := c.ctrl.State(); st.Phase.Terminal() {
				c.summary(st)
				return nil
			}
		}
		return nil
	})

	_ = g.Wait()
	return c.ctrl.State(), nil
}

func (c *Console) line(l job.Line) {
	ts := c.now().Format("15:04:05")
	timestampColor.Fprintf(c.out, "[%s] ", ts)
	severityColors[l.Severity].Fprintln(c.out, l.Text)
	if c.capture != nil {
		fmt.Fprintf(c.capture, "[%s] %s\n", ts, l.Text)
	}
}

func (c *Console) rule() {
	c.line(job.Line{Text: strings.Repeat("=", ruleWidth), Severity: job.Header})
}

func (c *Console) summary(st job.State) {
	c.rule()
	switch st.Phase {
	case job.Completed:
		c.line(job.Line{Text: "Pipeline completed successfully", Severity: job.Success})
	case job.Cancelled:
		c.line(job.Line{Text: "Pipeline cancelled", Severity: job.Warning})
	default:
		c.line(job.Line{
			Text:     fmt.Sprintf("Pipeline exited with code %d", st.ExitCode),
			Severity: job.Error,
		})
	}
	c.line(job.Line{
		Text:     "Total time: " + FormatElapsed(c.ctrl.Elapsed()),
		Severity: job.Info,
	})
	c.rule()
}

// FormatElapsed renders a duration as HH:MM:SS.
func FormatElapsed(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}
