package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ToolkitEngine drives the toolkit through its batch command-line interface.
// One process per job; the toolkit reports produced calibration tables on
// stdout as "table: <path>" lines, everything else is log output.
type ToolkitEngine struct {
	// Bin is the toolkit launcher binary.
	Bin string

	// WorkDir is the directory jobs run in. Relative table paths in job
	// output resolve against it.
	WorkDir string
}

// NewToolkitEngine creates an engine backed by the toolkit binary at the
// given path.
func NewToolkitEngine(bin, workDir string) *ToolkitEngine {
	return &ToolkitEngine{Bin: bin, WorkDir: workDir}
}

// Invoke runs one toolkit task as a child process and blocks until it
// finishes. Cancelling the context kills the process.
func (e *ToolkitEngine) Invoke(ctx context.Context, job Job) (*JobResult, error) {
	args := []string{"--task", job.Task, "--vis", job.Vis}
	for k, v := range job.Params {
		args = append(args, "--param", fmt.Sprintf("%s=%v", k, v))
	}

	cmd := exec.CommandContext(ctx, e.Bin, args...)
	cmd.Dir = e.WorkDir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()

	res := parseJobOutput(out.Bytes())
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, fmt.Errorf("toolkit task %s on %s exited %d", job.Task, job.Vis, res.ExitCode)
		}
		return nil, fmt.Errorf("failed to run toolkit task %s: %w", job.Task, err)
	}
	return res, nil
}

// Summary runs the toolkit's metadata listing task and returns its stdout.
func (e *ToolkitEngine) Summary(ctx context.Context, visPath string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.Bin, "--task", "listobs", "--vis", visPath, "--format", "json")
	cmd.Dir = e.WorkDir

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", visPath, err)
	}
	return out, nil
}

func parseJobOutput(raw []byte) *JobResult {
	res := &JobResult{}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := sc.Text()
		if tbl, ok := strings.CutPrefix(line, "table: "); ok {
			res.Tables = append(res.Tables, strings.TrimSpace(tbl))
			continue
		}
		res.Log = append(res.Log, line)
	}
	return res
}
