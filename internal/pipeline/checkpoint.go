package pipeline

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sidereal-data/reduction.report/internal/cal"
	"github.com/sidereal-data/reduction.report/internal/domain"
	"github.com/sidereal-data/reduction.report/internal/timeutil"
)

var (
	// ErrCheckpointNotFound means no checkpoint matched the resume request.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrCheckpointCorrupt means a checkpoint file exists but does not
	// decode. Resume from an earlier checkpoint or restart the run.
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")
)

// MostRecent is the sentinel checkpoint name: resume from whichever
// checkpoint in the directory has the latest timestamp.
const MostRecent = ""

const checkpointExt = ".context"

// checkpointSnapshot is the serialized form of a Context. Lifecycle state
// and the clock are deliberately absent: a resumed Context is always active
// and gets a fresh clock.
type checkpointSnapshot struct {
	RunID            string
	Run              *domain.ObservingRun
	CalState         *cal.CalState
	Results          []*ResultProxy
	StageCounter     int
	OutputDir        string
	ProductsDir      string
	ReportDir        string
	ResultsDir       string
	CheckpointDir    string
	CreatedUnixNanos int64
}

// Save writes a timestamped checkpoint of the full Context and returns its
// path. The in-memory Context keeps accepting mutations immediately after.
func (c *Context) Save() (string, error) {
	if c.state == StateUninitialized || c.state == StateTerminated {
		return "", fmt.Errorf("cannot checkpoint in state %s", c.state)
	}

	blob, err := encodeContext(c)
	if err != nil {
		return "", fmt.Errorf("failed to serialize context: %w", err)
	}

	name := fmt.Sprintf("%s-%d%s", c.RunID, c.clock.Now().UnixNano(), checkpointExt)
	path := filepath.Join(c.CheckpointDir, name)

	// Write-then-rename so a crash mid-write never leaves a half
	// checkpoint under the final name.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o644); err != nil {
		return "", fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to finalize checkpoint: %w", err)
	}

	c.state = StateCheckpointed
	opsf("run %s checkpointed to %s (stage %d)", c.RunID, name, c.StageCounter)
	return path, nil
}

// Resume rebuilds an active Context from a checkpoint in the given working
// directory. Pass MostRecent to take the newest checkpoint, or a checkpoint
// filename for an explicit one. The returned Context holds the session lock.
func Resume(outputDir, name string, clock timeutil.Clock) (*Context, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	dir := filepath.Join(outputDir, "checkpoints")
	path, err := resolveCheckpoint(dir, name)
	if err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, path)
		}
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}

	c, err := decodeContext(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCheckpointCorrupt, filepath.Base(path), err)
	}

	// The run may have been moved to a different directory since the
	// checkpoint was written.
	c.OutputDir = outputDir
	c.ProductsDir = filepath.Join(outputDir, "products")
	c.ReportDir = filepath.Join(outputDir, "report")
	c.ResultsDir = filepath.Join(outputDir, "results")
	c.CheckpointDir = dir
	c.clock = clock

	if err := c.acquireLock(); err != nil {
		return nil, err
	}
	c.state = StateActive

	opsf("run %s resumed from %s (stage %d)", c.RunID, filepath.Base(path), c.StageCounter)
	return c, nil
}

// Inspect decodes a checkpoint without taking the session lock. The
// returned Context is read-only: it stays uninitialized and rejects
// mutation, which makes it safe to use while another session owns the
// directory (status queries, calibration export).
func Inspect(outputDir, name string) (*Context, error) {
	dir := filepath.Join(outputDir, "checkpoints")
	path, err := resolveCheckpoint(dir, name)
	if err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}
	c, err := decodeContext(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCheckpointCorrupt, filepath.Base(path), err)
	}
	return c, nil
}

// resolveCheckpoint maps a resume request to a concrete file path.
func resolveCheckpoint(dir, name string) (string, error) {
	if name != MostRecent {
		// Names come from operator input; keep them inside the
		// checkpoint directory.
		if name != filepath.Base(name) {
			return "", fmt.Errorf("%w: invalid checkpoint name %q", ErrCheckpointNotFound, name)
		}
		if !strings.HasSuffix(name, checkpointExt) {
			name += checkpointExt
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrCheckpointNotFound, path)
		}
		return path, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: no checkpoint directory at %s", ErrCheckpointNotFound, dir)
	}

	// Names embed the write time as unix nanos, so the lexically greatest
	// suffix is the newest. Compare the timestamp fields, not whole names,
	// so runs with different IDs in one directory still order correctly.
	var best string
	var bestStamp string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, checkpointExt) {
			continue
		}
		base := strings.TrimSuffix(n, checkpointExt)
		idx := strings.LastIndexByte(base, '-')
		if idx < 0 {
			continue
		}
		stamp := base[idx+1:]
		if len(stamp) > len(bestStamp) || (len(stamp) == len(bestStamp) && stamp > bestStamp) {
			best = n
			bestStamp = stamp
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: no checkpoints in %s", ErrCheckpointNotFound, dir)
	}
	return filepath.Join(dir, best), nil
}

func encodeContext(c *Context) ([]byte, error) {
	snap := checkpointSnapshot{
		RunID:            c.RunID,
		Run:              c.Run,
		CalState:         c.CalState,
		Results:          c.Results,
		StageCounter:     c.StageCounter,
		OutputDir:        c.OutputDir,
		ProductsDir:      c.ProductsDir,
		ReportDir:        c.ReportDir,
		ResultsDir:       c.ResultsDir,
		CheckpointDir:    c.CheckpointDir,
		CreatedUnixNanos: c.CreatedUnixNanos,
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := gob.NewEncoder(gz)
	if err := enc.Encode(&snap); err != nil {
		gz.Close()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeContext(blob []byte) (*Context, error) {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var snap checkpointSnapshot
	if err := gob.NewDecoder(gz).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.RunID == "" || snap.Run == nil || snap.CalState == nil {
		return nil, fmt.Errorf("snapshot missing required fields")
	}

	return &Context{
		RunID:            snap.RunID,
		Run:              snap.Run,
		CalState:         snap.CalState,
		Results:          snap.Results,
		StageCounter:     snap.StageCounter,
		OutputDir:        snap.OutputDir,
		ProductsDir:      snap.ProductsDir,
		ReportDir:        snap.ReportDir,
		ResultsDir:       snap.ResultsDir,
		CheckpointDir:    snap.CheckpointDir,
		CreatedUnixNanos: snap.CreatedUnixNanos,
		state:            StateUninitialized,
	}, nil
}
