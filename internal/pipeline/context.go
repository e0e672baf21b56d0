package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sidereal-data/reduction.report/internal/cal"
	"github.com/sidereal-data/reduction.report/internal/domain"
	"github.com/sidereal-data/reduction.report/internal/timeutil"
)

// SessionState tracks where a Context is in its lifecycle. It is runtime
// bookkeeping only: checkpoints never record it, and a resumed Context is
// always active.
type SessionState string

const (
	StateUninitialized SessionState = "UNINITIALIZED"
	StateActive        SessionState = "ACTIVE"

	// StateCheckpointed means the last mutation has been written to disk.
	// It does not block anything: the next accepted result moves the
	// Context straight back to active.
	StateCheckpointed SessionState = "CHECKPOINTED"

	StateTerminated SessionState = "TERMINATED"
)

// lockFileName marks a working directory as owned by a live session. Two
// sessions resuming "most recent" in a shared directory would otherwise race
// on the same checkpoint files.
const lockFileName = ".reduction.lock"

// Context is the single mutable aggregate for one pipeline run: the domain
// model, the calibration registry, the accumulated result proxies, and run
// metadata. Exactly one stage mutates it at a time; checkpoints snapshot the
// whole object graph.
type Context struct {
	RunID string

	Run      *domain.ObservingRun
	CalState *cal.CalState

	Results      []*ResultProxy
	StageCounter int

	// Directory layout, all under OutputDir.
	OutputDir     string
	ProductsDir   string
	ReportDir     string
	ResultsDir    string
	CheckpointDir string

	CreatedUnixNanos int64

	state SessionState
	clock timeutil.Clock
}

// NewContext initializes a fresh run in the given working directory:
// creates the directory layout, takes the session lock, and returns an
// active Context.
func NewContext(outputDir string, clock timeutil.Clock) (*Context, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	c := &Context{
		RunID:            uuid.NewString(),
		Run:              domain.NewObservingRun(),
		CalState:         cal.NewState(),
		OutputDir:        outputDir,
		ProductsDir:      filepath.Join(outputDir, "products"),
		ReportDir:        filepath.Join(outputDir, "report"),
		ResultsDir:       filepath.Join(outputDir, "results"),
		CheckpointDir:    filepath.Join(outputDir, "checkpoints"),
		CreatedUnixNanos: clock.Now().UnixNano(),
		state:            StateUninitialized,
		clock:            clock,
	}

	for _, dir := range []string{c.OutputDir, c.ProductsDir, c.ReportDir, c.ResultsDir, c.CheckpointDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create run directory %s: %w", dir, err)
		}
	}

	if err := c.acquireLock(); err != nil {
		return nil, err
	}

	c.state = StateActive
	opsf("run %s initialized in %s", c.RunID, outputDir)
	return c, nil
}

// State returns the lifecycle state.
func (c *Context) State() SessionState {
	return c.state
}

// acquireLock takes exclusive ownership of the working directory. A stale
// lock left by a crashed session must be removed by the operator; refusing
// to steal it is deliberate.
func (c *Context) acquireLock() error {
	path := filepath.Join(c.OutputDir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			holder, _ := os.ReadFile(path)
			return fmt.Errorf("working directory %s is locked by session %s",
				c.OutputDir, strings.TrimSpace(string(holder)))
		}
		return fmt.Errorf("failed to lock working directory: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s pid=%d\n", c.RunID, os.Getpid()); err != nil {
		return fmt.Errorf("failed to write session lock: %w", err)
	}
	return nil
}

func (c *Context) releaseLock() error {
	return os.Remove(filepath.Join(c.OutputDir, lockFileName))
}

// AcceptResult folds a stage result into the Context: merges calibration
// entries, registers imported datasets, applies annotations, and appends the
// result proxy. Called serially by the harness after each stage (and after
// per-dataset fan-in).
func (c *Context) AcceptResult(res *Result) error {
	if c.state != StateActive && c.state != StateCheckpointed {
		return fmt.Errorf("cannot accept result in state %s", c.state)
	}
	c.state = StateActive

	for _, ms := range res.Imported {
		if err := c.Run.AddMeasurementSet(ms); err != nil {
			return fmt.Errorf("stage %s: %w", res.Stage, err)
		}
	}

	for _, app := range res.CalEntries {
		if err := c.CalState.Add(app.To, app.From); err != nil {
			return fmt.Errorf("stage %s: %w", res.Stage, err)
		}
	}
	for _, sel := range res.AppliedTo {
		if err := c.CalState.MarkApplied(sel); err != nil {
			return fmt.Errorf("stage %s: %w", res.Stage, err)
		}
	}

	for _, mark := range res.DataTypes {
		ms, err := c.Run.GetMS(mark.Vis)
		if err != nil {
			return fmt.Errorf("stage %s: %w", res.Stage, err)
		}
		ms.AddDataType(mark.Type, mark.FieldIDs...)
	}

	for msName, ranking := range res.RefAntennas {
		ms, err := c.Run.GetMS(msName)
		if err != nil {
			return fmt.Errorf("stage %s: %w", res.Stage, err)
		}
		if err := ms.SetRefAntennas(ranking); err != nil {
			return fmt.Errorf("stage %s: %w", res.Stage, err)
		}
	}

	c.StageCounter++
	proxy, err := storeResult(c.ResultsDir, c.StageCounter, res)
	if err != nil {
		return err
	}
	c.Results = append(c.Results, proxy)

	diagf("run %s stage %d (%s) accepted: %s", c.RunID, c.StageCounter, res.Stage, res.Status)
	return nil
}

// Terminate ends the run: writes the final checkpoint and releases the
// session lock. The Context refuses further mutation afterwards.
func (c *Context) Terminate() error {
	if c.state != StateActive && c.state != StateCheckpointed {
		return fmt.Errorf("cannot terminate in state %s", c.state)
	}

	if _, err := c.Save(); err != nil {
		return fmt.Errorf("final checkpoint failed: %w", err)
	}
	if err := c.releaseLock(); err != nil {
		return fmt.Errorf("failed to release session lock: %w", err)
	}

	c.state = StateTerminated
	opsf("run %s terminated after %d stages", c.RunID, c.StageCounter)
	return nil
}
