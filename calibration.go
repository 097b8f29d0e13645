package pulseox

import "fmt"

// CalibrationPoint maps a ratio-of-ratios value to a saturation percentage.
type CalibrationPoint struct {
	Ratio float64 `yaml:"ratio"`
	SpO2  float64 `yaml:"spo2"`
}

// CalibrationTable converts ratio-of-ratios values to SpO2 percentages by
// piecewise-linear interpolation between its breakpoints. Ratios outside the
// table's domain clamp to the nearest endpoint; the table never extrapolates.
// The table is immutable once constructed.
type CalibrationTable struct {
	points []CalibrationPoint
}

// NewCalibrationTable builds a table from breakpoints ordered by strictly
// increasing ratio. At least two points are required.
func NewCalibrationTable(points []CalibrationPoint) (*CalibrationTable, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("pulseox: calibration table needs at least 2 points, got %d", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].Ratio <= points[i-1].Ratio {
			return nil, fmt.Errorf("pulseox: calibration ratios must be strictly increasing (point %d)", i)
		}
	}

	t := &CalibrationTable{points: make([]CalibrationPoint, len(points))}
	copy(t.points, points)

	return t, nil
}

// DefaultCalibration returns the stock curve, a linearization of the common
// empirical fit SpO2 = 104 - 17*R capped at 100%. Real deployments should
// replace it with a curve fitted to the actual optics.
func DefaultCalibration() *CalibrationTable {
	t, _ := NewCalibrationTable([]CalibrationPoint{
		{Ratio: 0.24, SpO2: 100},
		{Ratio: 0.4, SpO2: 97.2},
		{Ratio: 0.6, SpO2: 93.8},
		{Ratio: 0.8, SpO2: 90.4},
		{Ratio: 1.0, SpO2: 87.0},
		{Ratio: 1.5, SpO2: 78.5},
		{Ratio: 2.0, SpO2: 70.0},
		{Ratio: 3.0, SpO2: 53.0},
	})
	return t
}

// Lookup maps a ratio to a saturation percentage.
func (t *CalibrationTable) Lookup(ratio float64) float64 {
	first := t.points[0]
	if ratio <= first.Ratio {
		return first.SpO2
	}
	last := t.points[len(t.points)-1]
	if ratio >= last.Ratio {
		return last.SpO2
	}

	for i := 1; i < len(t.points); i++ {
		p := t.points[i]
		if ratio > p.Ratio {
			continue
		}
		prev := t.points[i-1]
		f := (ratio - prev.Ratio) / (p.Ratio - prev.Ratio)

		return prev.SpO2 + f*(p.SpO2-prev.SpO2)
	}

	return last.SpO2
}
