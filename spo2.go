package pulseox

// spo2Accumulator tracks the AC extremes and the mean DC level of both
// channels within one beat-to-beat window. It is reset at each accepted beat,
// so its peak-to-peak values approximate each channel's AC amplitude for that
// cardiac cycle.
type spo2Accumulator struct {
	irMin, irMax   float64
	redMin, redMax float64
	irDCSum        float64
	redDCSum       float64
	samples        int
}

func (a *spo2Accumulator) add(c conditioned) {
	if a.samples == 0 {
		a.irMin, a.irMax = c.irAC, c.irAC
		a.redMin, a.redMax = c.redAC, c.redAC
	} else {
		if c.irAC < a.irMin {
			a.irMin = c.irAC
		}
		if c.irAC > a.irMax {
			a.irMax = c.irAC
		}
		if c.redAC < a.redMin {
			a.redMin = c.redAC
		}
		if c.redAC > a.redMax {
			a.redMax = c.redAC
		}
	}

	a.irDCSum += c.irDC
	a.redDCSum += c.redDC
	a.samples++
}

func (a *spo2Accumulator) reset() {
	*a = spo2Accumulator{}
}

// ratio computes the ratio-of-ratios (red AC/DC over IR AC/DC) for the
// current window. The shared incident-light intensity cancels out. It reports
// false when the window is empty or any term would make the quotient
// numerically unstable.
func (a *spo2Accumulator) ratio() (float64, bool) {
	if a.samples == 0 {
		return 0, false
	}

	irDC := a.irDCSum / float64(a.samples)
	redDC := a.redDCSum / float64(a.samples)
	irPP := a.irMax - a.irMin
	redPP := a.redMax - a.redMin

	if irDC <= 0 || redDC <= 0 || irPP <= 0 || redPP <= 0 {
		return 0, false
	}

	return (redPP / redDC) / (irPP / irDC), true
}

// spo2Estimator maps per-beat ratios through the calibration curve and
// smooths the result across beats to suppress per-beat jitter.
type spo2Estimator struct {
	table *CalibrationTable
	avg   *movingAverage
}

func newSpO2Estimator(table *CalibrationTable, window int) *spo2Estimator {
	return &spo2Estimator{
		table: table,
		avg:   newMovingAverage(window),
	}
}

// update closes one accumulation window. Windows without a usable ratio are
// skipped and leave the estimate untouched.
func (s *spo2Estimator) update(a *spo2Accumulator) {
	r, ok := a.ratio()
	if !ok {
		return
	}
	s.avg.add(s.table.Lookup(r))
}

// value returns the smoothed saturation percentage. It is invalid until at
// least one complete window has produced a ratio.
func (s *spo2Estimator) value() (float64, bool) {
	if !s.avg.valid() {
		return 0, false
	}
	return s.avg.mean(), true
}

func (s *spo2Estimator) reset() {
	s.avg.reset()
}
