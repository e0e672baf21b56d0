package pipeline

import (
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidereal-data/reduction.report/internal/cal"
	"github.com/sidereal-data/reduction.report/internal/domain"
	"github.com/sidereal-data/reduction.report/internal/timeutil"
)

func testClock() *timeutil.MockClock {
	return timeutil.NewMockClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
}

func testMS(name string) *domain.MeasurementSet {
	return &domain.MeasurementSet{
		Name: name,
		Path: "/data/" + name + ".ms",
		Antennas: []domain.Antenna{
			{ID: 0, Name: "DA41"},
			{ID: 1, Name: "DA42"},
		},
		SpectralWindows: []domain.SpectralWindow{
			{ID: 0, Name: "BB_1#SW-01", Baseband: "BB_1", NumChannels: 3840, RefFreqHz: 2.3e11, ChanWidthHz: 488281.25},
		},
		Intents: []string{"BANDPASS", "TARGET"},
	}
}

func TestNewContextLifecycle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := NewContext(dir, testClock())
	require.NoError(t, err)

	assert.Equal(t, StateActive, c.State())
	assert.NotEmpty(t, c.RunID)
	assert.DirExists(t, c.ProductsDir)
	assert.DirExists(t, c.CheckpointDir)
	assert.FileExists(t, filepath.Join(dir, lockFileName))

	require.NoError(t, c.Terminate())
	assert.Equal(t, StateTerminated, c.State())
	assert.NoFileExists(t, filepath.Join(dir, lockFileName))

	// A terminated context refuses further work.
	assert.Error(t, c.AcceptResult(&Result{Stage: "x", Status: StatusSuccess}))
	_, err = c.Save()
	assert.Error(t, err)
}

func TestSecondSessionCannotTakeLockedDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := NewContext(dir, testClock())
	require.NoError(t, err)

	_, err = NewContext(dir, testClock())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by session")

	require.NoError(t, c.Terminate())

	// After the lock is released the directory is usable again.
	c2, err := NewContext(dir, testClock())
	require.NoError(t, err)
	require.NoError(t, c2.Terminate())
}

func TestAcceptResultAppliesMutations(t *testing.T) {
	t.Parallel()

	c, err := NewContext(t.TempDir(), testClock())
	require.NoError(t, err)

	// Import registers datasets with the run.
	require.NoError(t, c.AcceptResult(&Result{
		Stage:    "importdata",
		Status:   StatusSuccess,
		Vis:      []string{"uid_A001"},
		Imported: []*domain.MeasurementSet{testMS("uid_A001")},
	}))
	require.Len(t, c.Run.MeasurementSets, 1)
	assert.Equal(t, 1, c.StageCounter)

	// Calibration entries and annotations fold into the registry and run.
	require.NoError(t, c.AcceptResult(&Result{
		Stage:  "bandpass",
		Status: StatusSuccess,
		Vis:    []string{"uid_A001"},
		CalEntries: []cal.CalApplication{{
			To:   cal.CalTo{Vis: "uid_A001"},
			From: cal.CalFrom{Table: "uid_A001.bandpass.tbl", Type: "bandpass"},
		}},
		RefAntennas: map[string][]string{"uid_A001": {"DA42", "DA41"}},
	}))

	got, err := c.CalState.Get(cal.CalTo{Vis: "uid_A001"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bandpass", got[0].From.Type)

	ms, err := c.Run.GetMS("uid_A001")
	require.NoError(t, err)
	assert.Equal(t, []string{"DA42", "DA41"}, ms.RefAntennas)

	// Apply-step results retire active entries.
	require.NoError(t, c.AcceptResult(&Result{
		Stage:     "applycal",
		Status:    StatusSuccess,
		Vis:       []string{"uid_A001"},
		AppliedTo: []cal.CalTo{{Vis: "uid_A001"}},
	}))
	got, err = c.CalState.Get(cal.CalTo{Vis: "uid_A001"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, c.CalState.Applied, 1)

	assert.Equal(t, 3, c.StageCounter)
	assert.Len(t, c.Results, 3)
}

func TestAcceptResultRejectsBadMutation(t *testing.T) {
	t.Parallel()

	c, err := NewContext(t.TempDir(), testClock())
	require.NoError(t, err)

	err = c.AcceptResult(&Result{
		Stage:       "refant",
		Status:      StatusSuccess,
		RefAntennas: map[string][]string{"uid_missing": {"DA42"}},
	})
	require.Error(t, err)
	assert.Zero(t, c.StageCounter)
	assert.Empty(t, c.Results)
}

func TestStoredResultCapsLogExcerpt(t *testing.T) {
	t.Parallel()

	c, err := NewContext(t.TempDir(), testClock())
	require.NoError(t, err)

	longLog := make([]string, maxStoredLogLines+200)
	for i := range longLog {
		longLog[i] = "log line"
	}
	longLog[len(longLog)-1] = "final line"

	res := &Result{Stage: "bandpass", Status: StatusSuccess, Log: longLog}
	require.NoError(t, c.AcceptResult(res))

	// The in-memory result is untouched.
	assert.Len(t, res.Log, maxStoredLogLines+200)

	// The stored copy keeps only the tail.
	loaded, err := c.Results[0].Load()
	require.NoError(t, err)
	require.Len(t, loaded.Log, maxStoredLogLines)
	assert.Equal(t, "final line", loaded.Log[len(loaded.Log)-1])
}

func TestResultProxyLoadMissingFile(t *testing.T) {
	t.Parallel()

	p := &ResultProxy{Path: filepath.Join(t.TempDir(), "missing.result")}
	_, err := p.Load()
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
