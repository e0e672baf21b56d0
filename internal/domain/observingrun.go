package domain

import (
	"fmt"
)

// VirtualSpw is a run-global spectral window identity. Datasets processed
// independently may assign different local IDs to the same sub-band; the
// virtual numbering gives calibration selection a stable vocabulary.
type VirtualSpw struct {
	ID          int
	Name        string
	Fingerprint string
}

// ObservingRun owns the ordered collection of measurement sets in a run and
// the real<->virtual spectral-window translation tables.
type ObservingRun struct {
	MeasurementSets []*MeasurementSet

	VirtualSpws []VirtualSpw

	// RealToVirtualMaps and VirtualToRealMaps are keyed by measurement-set
	// name. Each per-MS mapping is injective; VirtualToRealMaps is its exact
	// inverse, so translation round-trips for every valid ID.
	RealToVirtualMaps map[string]map[int]int
	VirtualToRealMaps map[string]map[int]int
}

// NewObservingRun creates an empty observing run.
func NewObservingRun() *ObservingRun {
	return &ObservingRun{
		RealToVirtualMaps: make(map[string]map[int]int),
		VirtualToRealMaps: make(map[string]map[int]int),
	}
}

// AddMeasurementSet appends a dataset to the run and extends the virtual
// spectral-window tables. Windows whose fingerprint matches one already seen
// adopt the existing virtual ID; new fingerprints allocate the next ID.
func (o *ObservingRun) AddMeasurementSet(ms *MeasurementSet) error {
	if ms == nil {
		return fmt.Errorf("nil measurement set")
	}
	if ms.Name == "" {
		return fmt.Errorf("measurement set has no name")
	}
	if _, exists := o.RealToVirtualMaps[ms.Name]; exists {
		return fmt.Errorf("measurement set %s already registered", ms.Name)
	}

	// Deserialized runs can arrive with nil maps.
	if o.RealToVirtualMaps == nil {
		o.RealToVirtualMaps = make(map[string]map[int]int)
	}
	if o.VirtualToRealMaps == nil {
		o.VirtualToRealMaps = make(map[string]map[int]int)
	}

	r2v := make(map[int]int, len(ms.SpectralWindows))
	v2r := make(map[int]int, len(ms.SpectralWindows))
	for _, spw := range ms.SpectralWindows {
		vid := o.virtualFor(spw)
		if prev, clash := v2r[vid]; clash {
			// Two local windows in one dataset resolving to the same virtual
			// ID would make the mapping non-injective and selection by
			// virtual ID ambiguous.
			return fmt.Errorf("measurement set %s: spectral windows %d and %d share fingerprint %q",
				ms.Name, prev, spw.ID, spw.Fingerprint())
		}
		r2v[spw.ID] = vid
		v2r[vid] = spw.ID
	}

	o.MeasurementSets = append(o.MeasurementSets, ms)
	o.RealToVirtualMaps[ms.Name] = r2v
	o.VirtualToRealMaps[ms.Name] = v2r
	return nil
}

// virtualFor returns the virtual ID for a window, allocating one if its
// fingerprint has not been seen in this run.
func (o *ObservingRun) virtualFor(spw SpectralWindow) int {
	fp := spw.Fingerprint()
	for _, v := range o.VirtualSpws {
		if v.Fingerprint == fp {
			return v.ID
		}
	}
	id := len(o.VirtualSpws)
	o.VirtualSpws = append(o.VirtualSpws, VirtualSpw{ID: id, Name: spw.Name, Fingerprint: fp})
	return id
}

// GetMS returns the measurement set with the given name.
func (o *ObservingRun) GetMS(name string) (*MeasurementSet, error) {
	for _, ms := range o.MeasurementSets {
		if ms.Name == name {
			return ms, nil
		}
	}
	return nil, fmt.Errorf("observing run has no measurement set %q", name)
}

// MeasurementSetsWithIntent returns the datasets carrying the intent, in
// run order.
func (o *ObservingRun) MeasurementSetsWithIntent(intent string) []*MeasurementSet {
	var out []*MeasurementSet
	for _, ms := range o.MeasurementSets {
		if ms.HasIntent(intent) {
			out = append(out, ms)
		}
	}
	return out
}

// MeasurementSetsWithDataType returns the datasets where any field carries
// the data type, in run order.
func (o *ObservingRun) MeasurementSetsWithDataType(dt DataType) []*MeasurementSet {
	var out []*MeasurementSet
	for _, ms := range o.MeasurementSets {
		if ms.HasDataType(dt) {
			out = append(out, ms)
		}
	}
	return out
}

// RealToVirtual translates a dataset-local spectral window ID to its
// run-global virtual ID.
func (o *ObservingRun) RealToVirtual(realID int, ms *MeasurementSet) (int, error) {
	m, ok := o.RealToVirtualMaps[ms.Name]
	if !ok {
		return 0, fmt.Errorf("measurement set %s not registered with this run", ms.Name)
	}
	vid, ok := m[realID]
	if !ok {
		return 0, fmt.Errorf("measurement set %s has no spectral window %d", ms.Name, realID)
	}
	return vid, nil
}

// VirtualToReal translates a run-global virtual spectral window ID to the
// dataset-local ID it carries in the given measurement set.
func (o *ObservingRun) VirtualToReal(virtualID int, ms *MeasurementSet) (int, error) {
	m, ok := o.VirtualToRealMaps[ms.Name]
	if !ok {
		return 0, fmt.Errorf("measurement set %s not registered with this run", ms.Name)
	}
	rid, ok := m[virtualID]
	if !ok {
		return 0, fmt.Errorf("virtual spectral window %d not present in measurement set %s", virtualID, ms.Name)
	}
	return rid, nil
}
