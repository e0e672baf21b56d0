package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// summaryDoc mirrors the metadata summary document the toolkit emits for a
// dataset (the listing step run at import). Field names follow the toolkit's
// JSON output.
type summaryDoc struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Antennas []struct {
		ID        int     `json:"id"`
		Name      string  `json:"name"`
		Station   string  `json:"station"`
		DiameterM float64 `json:"diameter_m"`
		X         float64 `json:"x"`
		Y         float64 `json:"y"`
		Z         float64 `json:"z"`
	} `json:"antennas"`
	Sources []struct {
		ID     int     `json:"id"`
		Name   string  `json:"name"`
		RADeg  float64 `json:"ra_deg"`
		DecDeg float64 `json:"dec_deg"`
	} `json:"sources"`
	Fields []struct {
		ID       int      `json:"id"`
		Name     string   `json:"name"`
		SourceID int      `json:"source_id"`
		RADeg    float64  `json:"ra_deg"`
		DecDeg   float64  `json:"dec_deg"`
		Intents  []string `json:"intents"`
	} `json:"fields"`
	Scans []struct {
		ID             int      `json:"id"`
		FieldIDs       []int    `json:"field_ids"`
		SpwIDs         []int    `json:"spw_ids"`
		Intents        []string `json:"intents"`
		StartUnixNanos int64    `json:"start_unix_nanos"`
		EndUnixNanos   int64    `json:"end_unix_nanos"`
	} `json:"scans"`
	SpectralWindows []struct {
		ID               int     `json:"id"`
		Name             string  `json:"name"`
		Baseband         string  `json:"baseband"`
		NumChannels      int     `json:"num_channels"`
		RefFreqHz        float64 `json:"ref_freq_hz"`
		ChanWidthHz      float64 `json:"chan_width_hz"`
		TotalBandwidthHz float64 `json:"total_bandwidth_hz"`
	} `json:"spectral_windows"`
	DataDescriptions []struct {
		ID    int `json:"id"`
		SpwID int `json:"spw_id"`
		PolID int `json:"pol_id"`
	} `json:"data_descriptions"`
	Polarizations []struct {
		ID           int      `json:"id"`
		Correlations []string `json:"correlations"`
	} `json:"polarizations"`
}

// ParseSummary builds a MeasurementSet from the toolkit's metadata summary
// document. The returned dataset is structurally complete: later stages only
// append annotations.
func ParseSummary(data []byte) (*MeasurementSet, error) {
	var doc summaryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode metadata summary: %w", err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("metadata summary has no dataset name")
	}
	if len(doc.SpectralWindows) == 0 {
		return nil, fmt.Errorf("metadata summary for %s lists no spectral windows", doc.Name)
	}

	ms := &MeasurementSet{
		Name: doc.Name,
		Path: doc.Path,
	}

	for _, a := range doc.Antennas {
		ms.Antennas = append(ms.Antennas, Antenna{
			ID: a.ID, Name: a.Name, Station: a.Station, DiameterM: a.DiameterM,
			X: a.X, Y: a.Y, Z: a.Z,
		})
	}
	annotateCentreOffsets(ms.Antennas)

	for _, s := range doc.Sources {
		ms.Sources = append(ms.Sources, Source{ID: s.ID, Name: s.Name, RADeg: s.RADeg, DecDeg: s.DecDeg})
	}
	for _, f := range doc.Fields {
		ms.Fields = append(ms.Fields, Field{
			ID: f.ID, Name: f.Name, SourceID: f.SourceID,
			RADeg: f.RADeg, DecDeg: f.DecDeg, Intents: f.Intents,
		})
	}
	for _, s := range doc.Scans {
		ms.Scans = append(ms.Scans, Scan{
			ID: s.ID, FieldIDs: s.FieldIDs, SpwIDs: s.SpwIDs, Intents: s.Intents,
			StartUnixNanos: s.StartUnixNanos, EndUnixNanos: s.EndUnixNanos,
		})
	}
	for _, w := range doc.SpectralWindows {
		ms.SpectralWindows = append(ms.SpectralWindows, SpectralWindow{
			ID: w.ID, Name: w.Name, Baseband: w.Baseband, NumChannels: w.NumChannels,
			RefFreqHz: w.RefFreqHz, ChanWidthHz: w.ChanWidthHz, TotalBandwidthHz: w.TotalBandwidthHz,
		})
	}
	for _, d := range doc.DataDescriptions {
		ms.DataDescriptions = append(ms.DataDescriptions, DataDescription{ID: d.ID, SpwID: d.SpwID, PolID: d.PolID})
	}
	for _, p := range doc.Polarizations {
		ms.Polarizations = append(ms.Polarizations, Polarization{ID: p.ID, Correlations: p.Correlations})
	}

	ms.Intents = collectIntents(ms.Scans)
	return ms, nil
}

// annotateCentreOffsets fills Antenna.OffsetFromCentreM with the distance of
// each station from the array centroid.
func annotateCentreOffsets(antennas []Antenna) {
	if len(antennas) == 0 {
		return
	}
	var cx, cy, cz float64
	for _, a := range antennas {
		cx += a.X
		cy += a.Y
		cz += a.Z
	}
	n := float64(len(antennas))
	cx, cy, cz = cx/n, cy/n, cz/n

	for i := range antennas {
		dx := antennas[i].X - cx
		dy := antennas[i].Y - cy
		dz := antennas[i].Z - cz
		antennas[i].OffsetFromCentreM = math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
}

// collectIntents returns the sorted union of scan intents.
func collectIntents(scans []Scan) []string {
	seen := make(map[string]bool)
	for _, s := range scans {
		for _, in := range s.Intents {
			seen[in] = true
		}
	}
	out := make([]string, 0, len(seen))
	for in := range seen {
		out = append(out, in)
	}
	sort.Strings(out)
	return out
}
