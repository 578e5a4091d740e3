package job

import (
	"bufio"
	"io"
)

// Longest single output line the relay accepts. Blender import logs can
// dump very long object lists on one line.
const maxLineBytes = 1024 * 1024

// relay converts the blocking read loop over the merged output stream
// into ordered events on the queue. It runs on its own goroutine for
// the lifetime of one run: read until end of stream, wait for the
// process exit, then push the end-of-run event exactly once.
//
// A read error mid-stream is treated as end of stream: one synthetic
// line describing the failure is pushed, then the normal termination
// path follows.
func relay(r io.Reader, h *handle, q *eventQueue) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	seq := 0
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		q.push(event{text: text, seq: seq})
		seq++
	}
	if err := scanner.Err(); err != nil {
		q.push(event{text: "ERROR: reading pipeline output: " + err.Error(), seq: seq})
		// A child still writing would block forever on the full pipe
		// and wait below would never return. Closing the read end
		// surfaces EPIPE to the child instead.
		_ = h.output.Close()
	}

	q.push(event{end: true, exit: h.wait()})
}
