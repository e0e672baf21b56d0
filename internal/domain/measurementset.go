package domain

import (
	"fmt"
	"slices"
)

// MeasurementSet is one logical observation dataset and its metadata.
// Structure (antennas, fields, windows, scans) is fixed at import time;
// the pipeline only appends derived annotations afterwards.
type MeasurementSet struct {
	Name string // basename without extension, unique within the run
	Path string // on-disk location of the dataset

	Antennas         []Antenna
	Fields           []Field
	Sources          []Source
	Scans            []Scan
	SpectralWindows  []SpectralWindow
	DataDescriptions []DataDescription
	Polarizations    []Polarization

	// Intents is the union of scan intents present in the state table.
	Intents []string

	// Derived annotations, appended by pipeline stages.

	// RefAntennas is the reference-antenna ranking, best first.
	RefAntennas []string

	// DataTypes maps each available data type to the field IDs carrying it.
	DataTypes map[DataType][]int
}

// SpectralWindow returns the window with the given real (dataset-local) ID.
func (ms *MeasurementSet) SpectralWindow(id int) (*SpectralWindow, error) {
	for i := range ms.SpectralWindows {
		if ms.SpectralWindows[i].ID == id {
			return &ms.SpectralWindows[i], nil
		}
	}
	return nil, fmt.Errorf("measurement set %s has no spectral window %d", ms.Name, id)
}

// AntennaByName returns the antenna with the given name.
func (ms *MeasurementSet) AntennaByName(name string) (*Antenna, error) {
	for i := range ms.Antennas {
		if ms.Antennas[i].Name == name {
			return &ms.Antennas[i], nil
		}
	}
	return nil, fmt.Errorf("measurement set %s has no antenna %q", ms.Name, name)
}

// FieldByID returns the field with the given ID.
func (ms *MeasurementSet) FieldByID(id int) (*Field, error) {
	for i := range ms.Fields {
		if ms.Fields[i].ID == id {
			return &ms.Fields[i], nil
		}
	}
	return nil, fmt.Errorf("measurement set %s has no field %d", ms.Name, id)
}

// HasIntent reports whether any scan in the dataset carries the intent.
func (ms *MeasurementSet) HasIntent(intent string) bool {
	return slices.Contains(ms.Intents, intent)
}

// FieldsWithIntent returns all fields observed with the given intent,
// in field-ID order.
func (ms *MeasurementSet) FieldsWithIntent(intent string) []Field {
	var out []Field
	for _, f := range ms.Fields {
		if slices.Contains(f.Intents, intent) {
			out = append(out, f)
		}
	}
	return out
}

// ScansWithIntent returns all scans carrying the given intent, in scan order.
func (ms *MeasurementSet) ScansWithIntent(intent string) []Scan {
	var out []Scan
	for _, s := range ms.Scans {
		if slices.Contains(s.Intents, intent) {
			out = append(out, s)
		}
	}
	return out
}

// ScienceSpectralWindows returns the windows with real spectral resolution,
// excluding channel-averaged and square-law-detector windows.
func (ms *MeasurementSet) ScienceSpectralWindows() []SpectralWindow {
	var out []SpectralWindow
	for _, spw := range ms.SpectralWindows {
		if spw.NumChannels > 4 {
			out = append(out, spw)
		}
	}
	return out
}

// SetRefAntennas replaces the reference-antenna ranking annotation. Every
// name must resolve to an antenna in this dataset.
func (ms *MeasurementSet) SetRefAntennas(names []string) error {
	for _, n := range names {
		if _, err := ms.AntennaByName(n); err != nil {
			return fmt.Errorf("reference antenna ranking: %w", err)
		}
	}
	ms.RefAntennas = slices.Clone(names)
	return nil
}

// AddDataType records that the given fields now carry the data type.
// Repeated registration extends the field list without duplicating IDs.
func (ms *MeasurementSet) AddDataType(dt DataType, fieldIDs ...int) {
	if ms.DataTypes == nil {
		ms.DataTypes = make(map[DataType][]int)
	}
	have := ms.DataTypes[dt]
	for _, id := range fieldIDs {
		if !slices.Contains(have, id) {
			have = append(have, id)
		}
	}
	slices.Sort(have)
	ms.DataTypes[dt] = have
}

// HasDataType reports whether any field carries the data type.
func (ms *MeasurementSet) HasDataType(dt DataType) bool {
	return len(ms.DataTypes[dt]) > 0
}

// FieldsWithDataType returns the field IDs carrying the data type, sorted.
func (ms *MeasurementSet) FieldsWithDataType(dt DataType) []int {
	return slices.Clone(ms.DataTypes[dt])
}
