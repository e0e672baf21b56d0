// Package domain holds the passive data model for an observing run: the
// measurement sets produced by the observatory and the per-dataset metadata
// (antennas, fields, sources, scans, spectral windows, polarisation setups)
// the calibration stages select on. Entities are constructed once at import
// time; only derived annotations (reference-antenna ranking, data-type
// availability) are appended afterwards.
package domain

import (
	"fmt"

	"github.com/sidereal-data/reduction.report/internal/units"
)

//
// 0) Array hardware
//

// Antenna is one element of the array, with its geocentric station position.
type Antenna struct {
	ID        int
	Name      string // e.g. "DA42", "ea07"
	Station   string // pad name, e.g. "A075"
	DiameterM float64

	// Geocentric position (m, ITRF).
	X, Y, Z float64

	// OffsetFromCentreM is the horizontal distance from the array reference
	// position, filled in at import. Antennas close to the centre are
	// preferred reference-antenna candidates.
	OffsetFromCentreM float64
}

//
// 1) Sky objects and pointings
//

// Source is a catalogued sky object observed during the run.
type Source struct {
	ID     int
	Name   string
	RADeg  float64 // J2000
	DecDeg float64 // J2000
}

// Field is a single pointing centre. Several fields can share a source
// (mosaics); intents record what the field was observed for.
type Field struct {
	ID       int
	Name     string
	SourceID int
	RADeg    float64
	DecDeg   float64
	Intents  []string // e.g. "BANDPASS", "PHASE", "TARGET"
}

// Scan is a contiguous block of integrations on one or more fields.
type Scan struct {
	ID             int
	FieldIDs       []int
	SpwIDs         []int
	Intents        []string
	StartUnixNanos int64
	EndUnixNanos   int64
}

//
// 2) Spectral setup
//

// SpectralWindow is one frequency sub-band. The ID is dataset-local ("real");
// run-global ("virtual") numbering lives on ObservingRun because independently
// processed datasets may number identical sub-bands differently.
type SpectralWindow struct {
	ID               int
	Name             string
	Baseband         string
	NumChannels      int
	RefFreqHz        float64
	ChanWidthHz      float64
	TotalBandwidthHz float64
}

// CentreFreqHz returns the centre frequency of the window.
func (s *SpectralWindow) CentreFreqHz() float64 {
	return s.RefFreqHz + float64(s.NumChannels)/2*s.ChanWidthHz
}

// Fingerprint identifies a logically-identical sub-band across datasets.
// Two spectral windows with the same fingerprint share a virtual ID.
func (s *SpectralWindow) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%d|%.0f|%.0f", s.Name, s.Baseband, s.NumChannels, s.RefFreqHz, s.ChanWidthHz)
}

// String renders the window for logs and the weblog spw table.
func (s *SpectralWindow) String() string {
	return fmt.Sprintf("spw %d (%s): %d ch, centre %s, width %s",
		s.ID, s.Name, s.NumChannels,
		units.FormatFrequency(s.CentreFreqHz()),
		units.FormatBandwidth(s.TotalBandwidthHz))
}

// DataDescription binds a spectral window to a polarisation setup; rows in
// the visibility data reference data descriptions, not windows directly.
type DataDescription struct {
	ID    int
	SpwID int
	PolID int
}

// Polarization is a correlation product setup, e.g. ["XX","YY"].
type Polarization struct {
	ID           int
	Correlations []string
}

//
// 3) Pipeline-derived classifications
//

// DataType classifies which processed form of the visibilities a field
// carries after a given stage (raw, calibrated continuum+line, self-cal).
type DataType string

const (
	DataTypeRaw         DataType = "RAW"
	DataTypeRegcalAll   DataType = "REGCAL_CONTLINE_ALL"
	DataTypeSelfcalSci  DataType = "SELFCAL_CONTLINE_SCIENCE"
	DataTypeRegcalLine  DataType = "REGCAL_LINE_SCIENCE"
	DataTypeBaselinedSD DataType = "BASELINED"
)
