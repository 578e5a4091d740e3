package job

import "strings"

// Severity is the display category assigned to one line of pipeline
// output. It drives visual triage only, it carries no semantic meaning
// about the run outcome.
type Severity int

const (
	Plain Severity = iota
	Header
	Info
	Success
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Header:
		return "header"
	case Info:
		return "info"
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "plain"
	}
}

// Keyword groups checked in a fixed priority order. Error and warning
// signals must never be masked by an incidental "done" elsewhere in the
// same line, so the order of the groups wins over the position of the
// keyword in the text.
var (
	errorWords   = []string{"error", "failed", "exception", "traceback", "exit code"}
	warningWords = []string{"warning", "warn", "not found", "skipped"}
	successWords = []string{"done", "complete", "success", "finished", "merged"}
	infoWords    = []string{"step", "starting", "processing", "importing", "exporting"}
)

// Classify maps one line of pipeline output to its Severity using
// case-insensitive substring matching.
func Classify(line string) Severity {
	l := strings.ToLower(line)
	switch {
	case containsAny(l, errorWords):
		return Error
	case containsAny(l, warningWords):
		return Warning
	case containsAny(l, successWords):
		return Success
	case containsAny(l, infoWords):
		return Info
	case strings.HasPrefix(line, "=") || strings.HasPrefix(line, "-"):
		return Header
	default:
		return Plain
	}
}

func containsAny(l string, words []string) bool {
	for _, w := range words {
		if strings.Contains(l, w) {
			return true
		}
	}
	return false
}
