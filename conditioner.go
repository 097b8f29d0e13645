package pulseox

import "math"

// baselineFilter tracks the slow-moving DC component of one channel with a
// single-pole exponential low-pass: dc += alpha * (raw - dc). The first
// sample initializes the baseline directly so there is no startup transient.
type baselineFilter struct {
	alpha  float64
	dc     float64
	primed bool
}

func newBaselineFilter(sampleRate, cutoffHz float64) *baselineFilter {
	dt := 1 / sampleRate
	rc := 1 / (2 * math.Pi * cutoffHz)

	return &baselineFilter{alpha: dt / (rc + dt)}
}

// step updates the baseline with a raw sample and returns the pulsatile (AC)
// and baseline (DC) components.
func (f *baselineFilter) step(raw float64) (ac, dc float64) {
	if !f.primed {
		f.dc = raw
		f.primed = true
		return 0, f.dc
	}

	f.dc += f.alpha * (raw - f.dc)

	return raw - f.dc, f.dc
}

// conditioned is one sample after baseline separation.
type conditioned struct {
	irAC, redAC float64
	irDC, redDC float64
}

// conditioner separates the AC and DC components of both channels. It owns
// one baseline filter per channel for the lifetime of the pipeline; a FIFO
// overflow needs no explicit reset because the exponential baseline
// re-converges on its own within a few time constants.
type conditioner struct {
	ir  *baselineFilter
	red *baselineFilter
}

func newConditioner(sampleRate, cutoffHz float64) *conditioner {
	return &conditioner{
		ir:  newBaselineFilter(sampleRate, cutoffHz),
		red: newBaselineFilter(sampleRate, cutoffHz),
	}
}

func (c *conditioner) step(ir, red uint16) conditioned {
	var out conditioned
	out.irAC, out.irDC = c.ir.step(float64(ir))
	out.redAC, out.redDC = c.red.step(float64(red))

	return out
}
