package units

// SpeedOfLight is c in m/s, used for frequency/velocity conversions.
const SpeedOfLight = 299792458.0

// VelocityRadio returns the radial velocity (m/s) of an observed frequency
// relative to a rest frequency using the radio convention:
// v = c * (f_rest - f_obs) / f_rest.
func VelocityRadio(obsFreqHz, restFreqHz float64) float64 {
	if restFreqHz == 0 {
		return 0
	}
	return SpeedOfLight * (restFreqHz - obsFreqHz) / restFreqHz
}

// VelocityOptical returns the radial velocity (m/s) using the optical
// convention: v = c * (f_rest - f_obs) / f_obs.
func VelocityOptical(obsFreqHz, restFreqHz float64) float64 {
	if obsFreqHz == 0 {
		return 0
	}
	return SpeedOfLight * (restFreqHz - obsFreqHz) / obsFreqHz
}

// MpsToKmps converts metres per second to kilometres per second.
func MpsToKmps(v float64) float64 { return v / 1e3 }

// ChannelToVelocityWidth converts a channel width (Hz) at a given reference
// frequency to a velocity width (m/s) in the radio convention.
func ChannelToVelocityWidth(chanWidthHz, refFreqHz float64) float64 {
	if refFreqHz == 0 {
		return 0
	}
	width := chanWidthHz
	if width < 0 {
		width = -width
	}
	return SpeedOfLight * width / refFreqHz
}
