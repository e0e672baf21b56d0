package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Job describes one toolkit task invocation: the task name and its keyword
// parameters. Stages construct jobs; they never talk to the toolkit directly.
type Job struct {
	// Task is the toolkit task name, e.g. "bandpass", "applycal".
	Task string

	// Vis is the dataset the task operates on (path on disk).
	Vis string

	// Params holds the task's keyword arguments. Values must render
	// meaningfully with %v.
	Params map[string]any
}

// String renders the job as a toolkit call for logs, with parameters in
// stable order.
func (j Job) String() string {
	keys := make([]string, 0, len(j.Params))
	for k := range j.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s(vis=%q", j.Task, j.Vis)
	for _, k := range keys {
		fmt.Fprintf(&b, ", %s=%v", k, j.Params[k])
	}
	b.WriteByte(')')
	return b.String()
}

// JobResult is the outcome of one toolkit task.
type JobResult struct {
	// Tables lists calibration tables the task produced, if any.
	Tables []string

	// Log holds the task's log output, one line per entry.
	Log []string

	// ExitCode is the toolkit process exit status (0 on success).
	ExitCode int
}
