package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSummary = `{
  "name": "uid_A001",
  "path": "/data/uid_A001.ms",
  "antennas": [
    {"id": 0, "name": "DA41", "station": "A001", "diameter_m": 12, "x": 0, "y": 0, "z": 0},
    {"id": 1, "name": "DA42", "station": "A075", "diameter_m": 12, "x": 30, "y": 0, "z": 0},
    {"id": 2, "name": "DV03", "station": "A082", "diameter_m": 12, "x": 0, "y": 60, "z": 0}
  ],
  "sources": [
    {"id": 0, "name": "J0423-0120", "ra_deg": 65.8, "dec_deg": -1.3}
  ],
  "fields": [
    {"id": 0, "name": "J0423-0120", "source_id": 0, "ra_deg": 65.8, "dec_deg": -1.3,
     "intents": ["BANDPASS", "FLUX"]}
  ],
  "scans": [
    {"id": 1, "field_ids": [0], "spw_ids": [0], "intents": ["BANDPASS", "FLUX"],
     "start_unix_nanos": 100, "end_unix_nanos": 200},
    {"id": 2, "field_ids": [0], "spw_ids": [0], "intents": ["PHASE"],
     "start_unix_nanos": 300, "end_unix_nanos": 400}
  ],
  "spectral_windows": [
    {"id": 0, "name": "BB_1#SW-01", "baseband": "BB_1", "num_channels": 3840,
     "ref_freq_hz": 2.3e11, "chan_width_hz": 488281.25, "total_bandwidth_hz": 1.875e9}
  ],
  "data_descriptions": [
    {"id": 0, "spw_id": 0, "pol_id": 0}
  ],
  "polarizations": [
    {"id": 0, "correlations": ["XX", "YY"]}
  ]
}`

func TestParseSummary(t *testing.T) {
	t.Parallel()

	ms, err := ParseSummary([]byte(sampleSummary))
	require.NoError(t, err)

	assert.Equal(t, "uid_A001", ms.Name)
	assert.Equal(t, "/data/uid_A001.ms", ms.Path)
	assert.Len(t, ms.Antennas, 3)
	assert.Len(t, ms.Scans, 2)
	require.Len(t, ms.SpectralWindows, 1)
	assert.Equal(t, 3840, ms.SpectralWindows[0].NumChannels)
	require.Len(t, ms.Polarizations, 1)
	assert.Equal(t, []string{"XX", "YY"}, ms.Polarizations[0].Correlations)

	// Intents are the sorted union across scans.
	assert.Equal(t, []string{"BANDPASS", "FLUX", "PHASE"}, ms.Intents)
}

func TestParseSummaryCentreOffsets(t *testing.T) {
	t.Parallel()

	ms, err := ParseSummary([]byte(sampleSummary))
	require.NoError(t, err)

	// Centroid of (0,0,0), (30,0,0), (0,60,0) is (10,20,0).
	a0, err := ms.AntennaByName("DA41")
	require.NoError(t, err)
	assert.InDelta(t, 22.3607, a0.OffsetFromCentreM, 1e-3)

	a1, err := ms.AntennaByName("DA42")
	require.NoError(t, err)
	assert.InDelta(t, 28.2843, a1.OffsetFromCentreM, 1e-3)
}

func TestParseSummaryRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := ParseSummary([]byte("not json"))
	assert.Error(t, err)

	_, err = ParseSummary([]byte(`{"path": "/data/x.ms"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dataset name")

	_, err = ParseSummary([]byte(`{"name": "uid_A001"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no spectral windows")
}
