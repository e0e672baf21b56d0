// Package units provides shared constants and conversions for frequency and
// radial-velocity values carried through the pipeline.
package units

import "fmt"

// Frequency unit constants. Spectral-window metadata is stored in Hz; display
// surfaces (weblog, status output) convert on the way out.
const (
	Hz  = "Hz"
	KHz = "kHz"
	MHz = "MHz"
	GHz = "GHz"
)

// ValidFrequencyUnits contains all valid frequency unit values.
var ValidFrequencyUnits = []string{Hz, KHz, MHz, GHz}

// IsValidFrequencyUnit checks if the given unit is a recognised frequency unit.
func IsValidFrequencyUnit(unit string) bool {
	for _, v := range ValidFrequencyUnits {
		if unit == v {
			return true
		}
	}
	return false
}

// ConvertFrequency converts a frequency from Hz to the target units.
func ConvertFrequency(freqHz float64, targetUnits string) float64 {
	switch targetUnits {
	case KHz:
		return freqHz / 1e3
	case MHz:
		return freqHz / 1e6
	case GHz:
		return freqHz / 1e9
	default:
		return freqHz
	}
}

// FormatFrequency renders a frequency in the most natural unit for its
// magnitude, e.g. 2.30035e11 -> "230.035 GHz".
func FormatFrequency(freqHz float64) string {
	abs := freqHz
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%.3f %s", freqHz/1e9, GHz)
	case abs >= 1e6:
		return fmt.Sprintf("%.3f %s", freqHz/1e6, MHz)
	case abs >= 1e3:
		return fmt.Sprintf("%.3f %s", freqHz/1e3, KHz)
	default:
		return fmt.Sprintf("%.0f %s", freqHz, Hz)
	}
}

// FormatBandwidth renders a channel or spectral-window width. Bandwidths can
// be negative for spectral windows stored in descending frequency order; the
// sign is preserved.
func FormatBandwidth(widthHz float64) string {
	return FormatFrequency(widthHz)
}
