package pulseox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpO2Accumulator_Ratio(t *testing.T) {
	var a spo2Accumulator

	// IR swings ±1000 around a 50000 baseline, red ±400 around the same
	// baseline: ratio-of-ratios = (800/50000)/(2000/50000) = 0.4.
	a.add(conditioned{irAC: -1000, redAC: -400, irDC: 50000, redDC: 50000})
	a.add(conditioned{irAC: 1000, redAC: 400, irDC: 50000, redDC: 50000})

	r, ok := a.ratio()
	require.True(t, ok)
	assert.InDelta(t, 0.4, r, 1e-9)
}

func TestSpO2Accumulator_EmptyWindow(t *testing.T) {
	var a spo2Accumulator

	_, ok := a.ratio()
	assert.False(t, ok)
}

func TestSpO2Accumulator_NearZeroDCIsUnstable(t *testing.T) {
	var a spo2Accumulator

	a.add(conditioned{irAC: -1000, redAC: -400, irDC: 0, redDC: 50000})
	a.add(conditioned{irAC: 1000, redAC: 400, irDC: 0, redDC: 50000})

	_, ok := a.ratio()
	assert.False(t, ok, "a zero DC component must not produce a ratio")
}

func TestSpO2Accumulator_FlatWindowHasNoRatio(t *testing.T) {
	var a spo2Accumulator

	for i := 0; i < 10; i++ {
		a.add(conditioned{irAC: 0, redAC: 0, irDC: 50000, redDC: 50000})
	}

	_, ok := a.ratio()
	assert.False(t, ok)
}

func TestSpO2Accumulator_Reset(t *testing.T) {
	var a spo2Accumulator

	a.add(conditioned{irAC: -1000, redAC: -400, irDC: 50000, redDC: 50000})
	a.add(conditioned{irAC: 1000, redAC: 400, irDC: 50000, redDC: 50000})
	a.reset()

	assert.Zero(t, a.samples)
	_, ok := a.ratio()
	assert.False(t, ok)
}

func TestSpO2Estimator_MapsRatioAtBreakpoint(t *testing.T) {
	table, err := NewCalibrationTable([]CalibrationPoint{
		{Ratio: 0.4, SpO2: 97.2},
		{Ratio: 1.0, SpO2: 87.0},
	})
	require.NoError(t, err)

	s := newSpO2Estimator(table, 4)

	_, ok := s.value()
	assert.False(t, ok, "invalid before any complete window")

	var a spo2Accumulator
	a.add(conditioned{irAC: -1000, redAC: -400, irDC: 50000, redDC: 50000})
	a.add(conditioned{irAC: 1000, redAC: 400, irDC: 50000, redDC: 50000})
	s.update(&a)

	got, ok := s.value()
	require.True(t, ok)
	assert.InDelta(t, 97.2, got, 1e-9)
}

func TestSpO2Estimator_SkipsUnusableWindows(t *testing.T) {
	s := newSpO2Estimator(DefaultCalibration(), 4)

	var empty spo2Accumulator
	s.update(&empty)

	_, ok := s.value()
	assert.False(t, ok)
}

func TestSpO2Estimator_SmoothsAcrossBeats(t *testing.T) {
	table, err := NewCalibrationTable([]CalibrationPoint{
		{Ratio: 0.0, SpO2: 100},
		{Ratio: 2.0, SpO2: 60},
	})
	require.NoError(t, err)

	s := newSpO2Estimator(table, 2)

	feed := func(irPP, redPP float64) {
		var a spo2Accumulator
		a.add(conditioned{irAC: -irPP / 2, redAC: -redPP / 2, irDC: 50000, redDC: 50000})
		a.add(conditioned{irAC: irPP / 2, redAC: redPP / 2, irDC: 50000, redDC: 50000})
		s.update(&a)
	}

	feed(2000, 1000) // ratio 0.5 -> 90
	feed(2000, 2000) // ratio 1.0 -> 80

	got, ok := s.value()
	require.True(t, ok)
	assert.InDelta(t, 85.0, got, 1e-9)
}
