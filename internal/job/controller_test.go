package job_test

import (
	"fmt"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-tools/pipeman/internal/job"
)

func shPath(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	return sh
}

func shSpec(t *testing.T, script string) job.Spec {
	return job.Spec{Path: shPath(t), Args: []string{"-c", script}}
}

// drainUntilTerminal polls Drain the way an interactive caller would
// and collects every line until the run ends.
func drainUntilTerminal(t *testing.T, ctrl *job.Controller) []job.Line {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	var lines []job.Line
	for time.Now().Before(deadline) {
		lines = append(lines, ctrl.Drain(64)...)
		if ctrl.State().Phase.Terminal() {
			return lines
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run did not reach a terminal state, state: %+v", ctrl.State())
	return nil
}

func TestControllerCompleted(t *testing.T) {
	t.Parallel()
	ctrl := job.NewController()
	require.Equal(t, job.Idle, ctrl.State().Phase)
	require.Zero(t, ctrl.Elapsed())

	err := ctrl.Start(shSpec(t, "echo one; echo two"))
	require.NoError(t, err)

	lines := drainUntilTerminal(t, ctrl)
	require.Len(t, lines, 2)
	require.Equal(t, "one", lines[0].Text)
	require.Equal(t, "two", lines[1].Text)
	require.Equal(t, job.State{Phase: job.Completed, ExitCode: 0}, ctrl.State())

	// elapsed is frozen at the terminal transition
	frozen := ctrl.Elapsed()
	require.Greater(t, frozen, time.Duration(0))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, frozen, ctrl.Elapsed())
}

func TestControllerFailed(t *testing.T) {
	t.Parallel()
	ctrl := job.NewController()
	err := ctrl.Start(shSpec(t, "echo boom; exit 3"))
	require.NoError(t, err)

	lines := drainUntilTerminal(t, ctrl)
	require.Len(t, lines, 1)
	require.Equal(t, "boom", lines[0].Text)
	require.Equal(t, job.State{Phase: job.Failed, ExitCode: 3}, ctrl.State())
}

func TestControllerCancelled(t *testing.T) {
	t.Parallel()
	ctrl := job.NewController()
	err := ctrl.Start(shSpec(t, "echo started; sleep 30"))
	require.NoError(t, err)

	ctrl.Stop()
	drainUntilTerminal(t, ctrl)
	// never Failed, irrespective of the raw exit code of a killed tree
	require.Equal(t, job.Cancelled, ctrl.State().Phase)

	// Stop after the terminal state is a no-op
	ctrl.Stop()
	require.Equal(t, job.Cancelled, ctrl.State().Phase)
}

func TestControllerAlreadyRunning(t *testing.T) {
	t.Parallel()
	ctrl := job.NewController()
	err := ctrl.Start(shSpec(t, "sleep 30"))
	require.NoError(t, err)

	err = ctrl.Start(shSpec(t, "echo second"))
	require.ErrorIs(t, err, job.ErrAlreadyRunning)
	require.Equal(t, job.Running, ctrl.State().Phase)

	ctrl.Stop()
	drainUntilTerminal(t, ctrl)
	require.Equal(t, job.Cancelled, ctrl.State().Phase)
}

func TestControllerSpawnError(t *testing.T) {
	t.Parallel()
	t.Run("missing executable", func(t *testing.T) {
		t.Parallel()
		ctrl := job.NewController()
		err := ctrl.Start(job.Spec{Path: "/does/not/exist/pipeline"})
		require.Error(t, err)
		require.Equal(t, job.Idle, ctrl.State().Phase)
		require.Nil(t, ctrl.Drain(10))
	})
	t.Run("invalid working directory", func(t *testing.T) {
		t.Parallel()
		ctrl := job.NewController()
		err := ctrl.Start(job.Spec{
			Path: shPath(t),
			Args: []string{"-c", "true"},
			Dir:  "/does/not/exist",
		})
		require.Error(t, err)
		require.Equal(t, job.Idle, ctrl.State().Phase)
	})
	t.Run("keeps the terminal state of the last run", func(t *testing.T) {
		t.Parallel()
		ctrl := job.NewController()
		require.NoError(t, ctrl.Start(shSpec(t, "echo ok")))
		drainUntilTerminal(t, ctrl)
		require.Equal(t, job.Completed, ctrl.State().Phase)

		err := ctrl.Start(job.Spec{Path: "/does/not/exist/pipeline"})
		require.Error(t, err)
		require.Equal(t, job.Completed, ctrl.State().Phase)
	})
}

func TestControllerStreamErrorStillTerminates(t *testing.T) {
	t.Parallel()
	ctrl := job.NewController()
	// one line far over the relay's line limit, then more output from
	// a child that keeps writing
	script := `head -c 2200000 /dev/zero | tr '\0' x; echo; echo trailing; exit 0`
	require.NoError(t, ctrl.Start(shSpec(t, script)))

	lines := drainUntilTerminal(t, ctrl)
	require.True(t, ctrl.State().Phase.Terminal(),
		"a stream error must still end in exactly one terminal state")

	var sawReadError bool
	for _, l := range lines {
		if l.Severity == job.Error && strings.Contains(l.Text, "reading pipeline output") {
			sawReadError = true
		}
	}
	require.True(t, sawReadError, "stream error must surface as one Error-classified line")
}

func TestControllerOrderAndSequence(t *testing.T) {
	t.Parallel()
	const n = 100
	ctrl := job.NewController()
	script := fmt.Sprintf(`i=1; while [ "$i" -le %d ]; do echo "line $i"; i=$((i+1)); done`, n)
	err := ctrl.Start(shSpec(t, script))
	require.NoError(t, err)

	// deliberately small batches to exercise repeated drains
	deadline := time.Now().Add(15 * time.Second)
	var lines []job.Line
	for time.Now().Before(deadline) && !ctrl.State().Phase.Terminal() {
		lines = append(lines, ctrl.Drain(7)...)
		time.Sleep(time.Millisecond)
	}
	lines = append(lines, ctrl.Drain(1000)...)

	require.Equal(t, job.Completed, ctrl.State().Phase)
	require.Len(t, lines, n)
	for i, line := range lines {
		require.Equal(t, fmt.Sprintf("line %d", i+1), line.Text)
		require.Equal(t, i, line.Seq)
	}
}

func TestControllerRestartAfterTerminal(t *testing.T) {
	t.Parallel()
	ctrl := job.NewController()

	require.NoError(t, ctrl.Start(shSpec(t, "echo first")))
	drainUntilTerminal(t, ctrl)
	require.Equal(t, job.Completed, ctrl.State().Phase)

	require.NoError(t, ctrl.Start(shSpec(t, "echo again; exit 1")))
	lines := drainUntilTerminal(t, ctrl)
	require.Len(t, lines, 1)
	require.Equal(t, "again", lines[0].Text)
	require.Equal(t, 0, lines[0].Seq, "sequence restarts per run")
	require.Equal(t, job.State{Phase: job.Failed, ExitCode: 1}, ctrl.State())
}

func TestControllerDrainNeverBlocks(t *testing.T) {
	t.Parallel()
	ctrl := job.NewController()

	start := time.Now()
	require.Nil(t, ctrl.Drain(10))
	require.Less(t, time.Since(start), 100*time.Millisecond)

	require.NoError(t, ctrl.Start(shSpec(t, "sleep 30")))
	start = time.Now()
	require.Empty(t, ctrl.Drain(10))
	require.Less(t, time.Since(start), 100*time.Millisecond)

	ctrl.Stop()
	drainUntilTerminal(t, ctrl)
}

func TestControllerClassifiesDrainedLines(t *testing.T) {
	t.Parallel()
	ctrl := job.NewController()
	err := ctrl.Start(shSpec(t, `echo "ERROR: bake failed"; echo "Step 1: importing"`))
	require.NoError(t, err)

	lines := drainUntilTerminal(t, ctrl)
	require.Len(t, lines, 2)
	require.Equal(t, job.Error, lines[0].Severity)
	require.Equal(t, job.Info, lines[1].Severity)
}
