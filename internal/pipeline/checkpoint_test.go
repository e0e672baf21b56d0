package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidereal-data/reduction.report/internal/cal"
	"github.com/sidereal-data/reduction.report/internal/domain"
)

func TestSaveResumeRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clock := testClock()

	c, err := NewContext(dir, clock)
	require.NoError(t, err)

	require.NoError(t, c.AcceptResult(&Result{
		Stage:    "importdata",
		Status:   StatusSuccess,
		Vis:      []string{"uid_A001", "uid_B001"},
		Imported: []*domain.MeasurementSet{testMS("uid_A001"), testMS("uid_B001")},
	}))
	require.NoError(t, c.AcceptResult(&Result{
		Stage:  "bandpass",
		Status: StatusSuccess,
		CalEntries: []cal.CalApplication{{
			To:   cal.CalTo{Vis: "uid_A001", Spw: "0"},
			From: cal.CalFrom{Table: "bp.tbl", Type: "bandpass", CalWt: true, SpwMap: []int{0}},
		}},
	}))

	runID := c.RunID
	require.NoError(t, c.Terminate())

	resumed, err := Resume(dir, MostRecent, testClock())
	require.NoError(t, err)
	defer resumed.Terminate()

	assert.Equal(t, StateActive, resumed.State())
	assert.Equal(t, runID, resumed.RunID)
	assert.Equal(t, 2, resumed.StageCounter)
	require.Len(t, resumed.Results, 2)
	assert.Equal(t, "bandpass", resumed.Results[1].Stage)

	// The domain model survives serialization byte for byte.
	if diff := cmp.Diff(c.Run, resumed.Run); diff != "" {
		t.Errorf("observing run mismatch after resume (-saved +resumed):\n%s", diff)
	}

	// Query results match the pre-checkpoint context.
	ms, err := resumed.Run.GetMS("uid_B001")
	require.NoError(t, err)
	assert.Equal(t, "/data/uid_B001.ms", ms.Path)

	got, err := resumed.CalState.Get(cal.CalTo{Spw: "0"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].From.Equal(cal.CalFrom{Table: "bp.tbl", Type: "bandpass", CalWt: true, SpwMap: []int{0}}))

	// Spw translation survives the round trip.
	vid, err := resumed.Run.RealToVirtual(0, ms)
	require.NoError(t, err)
	rid, err := resumed.Run.VirtualToReal(vid, ms)
	require.NoError(t, err)
	assert.Equal(t, 0, rid)

	// A resumed run keeps accepting datasets.
	require.NoError(t, resumed.AcceptResult(&Result{
		Stage:    "importdata",
		Status:   StatusSuccess,
		Imported: []*domain.MeasurementSet{testMS("uid_C001")},
	}))
}

func TestResumeMostRecentPicksLatest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clock := testClock()

	c, err := NewContext(dir, clock)
	require.NoError(t, err)

	_, err = c.Save()
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, c.AcceptResult(&Result{Stage: "importdata", Status: StatusSuccess}))
	_, err = c.Save()
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, c.Terminate()) // third, final checkpoint

	resumed, err := Resume(dir, MostRecent, testClock())
	require.NoError(t, err)
	defer resumed.Terminate()

	assert.Equal(t, 1, resumed.StageCounter)
}

func TestResumeExplicitName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clock := testClock()

	c, err := NewContext(dir, clock)
	require.NoError(t, err)

	first, err := c.Save()
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, c.AcceptResult(&Result{Stage: "importdata", Status: StatusSuccess}))
	clock.Advance(time.Minute)
	require.NoError(t, c.Terminate())

	// Resuming the first checkpoint rolls back to before the stage ran.
	resumed, err := Resume(dir, filepath.Base(first), testClock())
	require.NoError(t, err)
	assert.Zero(t, resumed.StageCounter)
	require.NoError(t, resumed.Terminate())
}

func TestResumeErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// No checkpoint directory at all.
	_, err := Resume(dir, MostRecent, testClock())
	assert.ErrorIs(t, err, ErrCheckpointNotFound)

	c, err := NewContext(dir, testClock())
	require.NoError(t, err)
	require.NoError(t, c.Terminate())

	// Explicit name that does not exist.
	_, err = Resume(dir, "nope.context", testClock())
	assert.ErrorIs(t, err, ErrCheckpointNotFound)

	// A checkpoint that does not decode reports corruption, not absence.
	bad := filepath.Join(dir, "checkpoints", c.RunID+"-99999999999999999999.context")
	require.NoError(t, os.WriteFile(bad, []byte("not a checkpoint"), 0o644))

	_, err = Resume(dir, filepath.Base(bad), testClock())
	assert.ErrorIs(t, err, ErrCheckpointCorrupt)
}

func TestResumeRespectsSessionLock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := NewContext(dir, testClock())
	require.NoError(t, err)
	_, err = c.Save()
	require.NoError(t, err)

	// The owning session is still live; a second resume must not race it.
	_, err = Resume(dir, MostRecent, testClock())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by session")

	require.NoError(t, c.Terminate())
}
