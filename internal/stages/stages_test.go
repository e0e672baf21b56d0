package stages

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidereal-data/reduction.report/internal/cal"
	"github.com/sidereal-data/reduction.report/internal/domain"
	"github.com/sidereal-data/reduction.report/internal/engine"
	"github.com/sidereal-data/reduction.report/internal/pipeline"
	"github.com/sidereal-data/reduction.report/internal/timeutil"
)

const summaryDoc = `{
  "name": "uid_A001",
  "path": "/data/uid_A001.ms",
  "antennas": [
    {"id": 0, "name": "DA41", "station": "A001", "x": 0, "y": 0, "z": 0},
    {"id": 1, "name": "DA42", "station": "A075", "x": 400, "y": 0, "z": 0}
  ],
  "fields": [
    {"id": 0, "name": "J0423-0120", "intents": ["BANDPASS", "FLUX"]},
    {"id": 1, "name": "J0510+1800", "intents": ["PHASE"]},
    {"id": 2, "name": "NGC1333", "intents": ["TARGET"]}
  ],
  "scans": [
    {"id": 1, "field_ids": [0], "spw_ids": [0], "intents": ["BANDPASS", "FLUX"]}
  ],
  "spectral_windows": [
    {"id": 0, "name": "BB_1#SW-01", "baseband": "BB_1", "num_channels": 3840,
     "ref_freq_hz": 2.3e11, "chan_width_hz": 488281.25}
  ]
}`

func testEnv(t *testing.T, eng engine.Engine) *pipeline.Env {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	c, err := pipeline.NewContext(t.TempDir(), clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate() })

	return &pipeline.Env{Engine: eng, Context: c, Clock: clock, Params: map[string]any{}}
}

func calMS() *domain.MeasurementSet {
	return &domain.MeasurementSet{
		Name: "uid_A001",
		Path: "/data/uid_A001.ms",
		Antennas: []domain.Antenna{
			{ID: 0, Name: "DA41", OffsetFromCentreM: 210},
			{ID: 1, Name: "DA42", OffsetFromCentreM: 35},
			{ID: 2, Name: "DV03", OffsetFromCentreM: 90},
		},
		Fields: []domain.Field{
			{ID: 0, Name: "J0423-0120", Intents: []string{"BANDPASS", "FLUX"}},
			{ID: 1, Name: "J0510+1800", Intents: []string{"PHASE"}},
			{ID: 2, Name: "NGC1333", Intents: []string{"TARGET"}},
		},
		SpectralWindows: []domain.SpectralWindow{
			{ID: 0, Name: "BB_1#SW-01", Baseband: "BB_1", NumChannels: 3840, RefFreqHz: 2.3e11, ChanWidthHz: 488281.25},
		},
		Intents:     []string{"BANDPASS", "FLUX", "PHASE", "TARGET"},
		RefAntennas: []string{"DA42", "DV03"},
	}
}

func TestImportData(t *testing.T) {
	t.Parallel()

	eng := engine.NewMockEngine()
	eng.SummaryDoc = []byte(summaryDoc)
	env := testEnv(t, eng)
	env.Params["vis"] = []any{"/data/uid_A001.ms"}

	res, err := (&ImportData{}).Run(context.Background(), env, nil)
	require.NoError(t, err)

	require.Len(t, res.Imported, 1)
	assert.Equal(t, "uid_A001", res.Imported[0].Name)
	assert.Equal(t, []string{"/data/uid_A001.ms"}, eng.SummaryCalls)

	require.Len(t, res.DataTypes, 1)
	assert.Equal(t, domain.DataTypeRaw, res.DataTypes[0].Type)
	assert.Equal(t, []int{0, 1, 2}, res.DataTypes[0].FieldIDs)
}

func TestImportDataRequiresVis(t *testing.T) {
	t.Parallel()

	env := testEnv(t, engine.NewMockEngine())

	_, err := (&ImportData{}).Run(context.Background(), env, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vis parameter")
}

func TestFlagDeterministicQAFromFlaggedFraction(t *testing.T) {
	t.Parallel()

	eng := engine.NewMockEngine()
	eng.Results["flagdata"] = &engine.JobResult{
		Log: []string{"applying deterministic flags", "flagged fraction: 0.050"},
	}
	env := testEnv(t, eng)

	res, err := (&FlagDeterministic{}).Run(context.Background(), env, calMS())
	require.NoError(t, err)

	require.Len(t, eng.Invocations, 1)
	assert.Equal(t, "flagdata", eng.Invocations[0].Task)
	assert.Equal(t, true, eng.Invocations[0].Params["autocorr"])

	require.Len(t, res.QA, 1)
	assert.InDelta(t, 0.95, res.QA[0].Score, 1e-9)
}

func TestRefAntRanksByCentreOffset(t *testing.T) {
	t.Parallel()

	env := testEnv(t, engine.NewMockEngine())

	res, err := (&RefAnt{}).Run(context.Background(), env, calMS())
	require.NoError(t, err)

	// Closest to the centre ranks first.
	assert.Equal(t, []string{"DA42", "DV03", "DA41"}, res.RefAntennas["uid_A001"])
}

func TestBandpassRegistersTables(t *testing.T) {
	t.Parallel()

	eng := engine.NewMockEngine()
	eng.Results["bandpass"] = &engine.JobResult{
		Tables: []string{"uid_A001.bandpass.tbl"},
		Log:    []string{"flagged solutions: 24/480"},
	}
	env := testEnv(t, eng)

	res, err := (&Bandpass{}).Run(context.Background(), env, calMS())
	require.NoError(t, err)

	require.Len(t, eng.Invocations, 1)
	job := eng.Invocations[0]
	assert.Equal(t, "0", job.Params["field"], "solve must select the BANDPASS field")
	assert.Equal(t, "DA42,DV03", job.Params["refant"])

	require.Len(t, res.CalEntries, 1)
	entry := res.CalEntries[0]
	assert.Equal(t, "uid_A001", entry.To.Vis)
	assert.Equal(t, "bandpass", entry.From.Type)
	assert.True(t, entry.From.CalWt)

	require.Len(t, res.QA, 1)
	assert.InDelta(t, 0.95, res.QA[0].Score, 1e-9)
}

func TestSolveFailsWithoutIntentOrTables(t *testing.T) {
	t.Parallel()

	eng := engine.NewMockEngine()
	env := testEnv(t, eng)

	// No PHASE field: gaincal cannot run.
	ms := calMS()
	ms.Fields = ms.Fields[:1]
	_, err := (&GainCal{}).Run(context.Background(), env, ms)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "intent PHASE")

	// Solve succeeded but produced no table: also an error.
	_, err = (&Bandpass{}).Run(context.Background(), env, calMS())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no calibration table")
}

func TestApplyCalConsumesActiveEntries(t *testing.T) {
	t.Parallel()

	eng := engine.NewMockEngine()
	env := testEnv(t, eng)

	ms := calMS()
	require.NoError(t, env.Context.CalState.Add(
		cal.CalTo{Vis: ms.Name},
		cal.CalFrom{Table: "uid_A001.bandpass.tbl", Type: "bandpass", CalWt: true},
	))

	res, err := (&ApplyCal{}).Run(context.Background(), env, ms)
	require.NoError(t, err)

	// The callibrary file exists and holds the instruction list.
	require.Len(t, eng.Invocations, 1)
	libPath, _ := eng.Invocations[0].Params["callib"].(string)
	data, err := os.ReadFile(libPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "caltable='uid_A001.bandpass.tbl'")

	require.Len(t, res.AppliedTo, 1)
	assert.Equal(t, ms.Name, res.AppliedTo[0].Vis)

	require.Len(t, res.DataTypes, 1)
	assert.Equal(t, domain.DataTypeRegcalAll, res.DataTypes[0].Type)
}

func TestApplyCalRequiresActiveEntries(t *testing.T) {
	t.Parallel()

	env := testEnv(t, engine.NewMockEngine())

	_, err := (&ApplyCal{}).Run(context.Background(), env, calMS())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active calibration entries")
}

func TestRegisterStandard(t *testing.T) {
	t.Parallel()

	reg := pipeline.NewRegistry()
	RegisterStandard(reg)

	assert.Equal(t,
		[]string{"applycal", "bandpass", "flagdeterministic", "gaincal", "importdata", "refant"},
		reg.Names())
}
