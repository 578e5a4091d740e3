package job

import "time"

// stopwatch measures one run from start to its terminal state. It
// freezes at the instant the run ends and resets on the next start.
type stopwatch struct {
	start   time.Time
	end     time.Time
	running bool
}

func (s *stopwatch) begin() {
	s.start = time.Now()
	s.end = time.Time{}
	s.running = true
}

func (s *stopwatch) freeze() {
	s.end = time.Now()
	s.running = false
}

func (s *stopwatch) elapsed() time.Duration {
	switch {
	case s.start.IsZero():
		return 0
	case s.running:
		return time.Since(s.start)
	default:
		return s.end.Sub(s.start)
	}
}
