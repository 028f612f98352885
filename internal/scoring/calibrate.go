package scoring

const (
	// CalibrationThreshold is the raw coverage below which relevance is negligible.
	CalibrationThreshold = 0.2
	// CalibrationGain stretches coverage above the threshold onto the percent scale.
	CalibrationGain = 2.3
	// CalibrationFloor is reported instead of zero: checked, nothing material found.
	CalibrationFloor = 0.1
)

// Calibrate maps raw coverage onto a perceived "percent match" scale in [0.1, 1.0].
// The mapping is piecewise linear and non-decreasing.
func Calibrate(raw float64) float64 {
	if raw < CalibrationThreshold {
		return CalibrationFloor
	}
	return clamp((raw-CalibrationThreshold)*CalibrationGain, CalibrationFloor, 1.0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
