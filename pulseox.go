// Package pulseox extracts heart rate and blood-oxygen saturation from the
// raw two-wavelength sample stream of a MAX30100-class pulse oximeter. The
// processing pipeline is pure computation over the sample stream; register
// access lives in the max30100 subpackage behind the Sensor interface, so the
// pipeline can be driven by synthetic sequences with no physical device.
//
// The pipeline is single threaded: one Poll call drains the sensor's FIFO and
// runs every stage over the available samples, in arrival order, without
// blocking. A Device must not be shared between goroutines; use one Device
// per sensor.
package pulseox

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppg-go/pulseox/max30100"
)

var (
	// ErrInvalidConfiguration is thrown when Configure is called with
	// settings outside the device's supported set. No state is mutated.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrNotConfigured is thrown when activating or reading a device that
	// has not been configured yet.
	ErrNotConfigured = errors.New("device not configured")
	// ErrNotActive is thrown when polling a device that is not active.
	ErrNotActive = errors.New("device not active")
)

// Sensor is the sample source: a register-level collaborator that buffers
// (IR, red) ADC pairs in a device-side FIFO. All methods are non-blocking
// with respect to the FIFO. The max30100 subpackage provides the hardware
// implementation; tests substitute synthetic sources.
type Sensor interface {
	// ReadAvailable drains the device buffer and returns the IR and red
	// channels in arrival order, zero-length when empty. The flag reports
	// a device-side overflow: the FIFO wrapped before being read and
	// samples were lost.
	ReadAvailable() (ir, red []uint16, overflow bool, err error)
	// Available reports the number of unread samples without consuming
	// them.
	Available() (int, error)
	// Apply pushes validated settings to the device.
	Apply(sampleRate, pulseWidthUS int, redMA, irMA float64, spo2 bool) error

	Temperature() (float64, error)
	Reset() error
	Shutdown() error
	Startup() error
	Close()
}

type devState int

const (
	stateUnconfigured devState = iota
	stateConfigured
	stateActive
)

// Device is a processing pipeline bound to one sensor. It owns the filter,
// detector and accumulator state exclusively; none of it may be mutated from
// elsewhere.
type Device struct {
	sensor Sensor
	log    *zap.Logger
	table  *CalibrationTable

	bus  string
	addr uint16

	state devState
	cfg   Config

	cond *conditioner
	beat *beatDetector
	hr   *hrEstimator
	spo2 *spo2Estimator
	acc  spo2Accumulator

	fingerPresent bool
	samples       uint64
	overflows     uint64
}

// Result is the externally visible snapshot of the current estimates. Each
// value carries its own validity flag; a field stays invalid until its
// estimator has seen enough data, and the pipeline never fabricates a numeric
// reading when confidence is insufficient. Valid is true once every estimator
// selected by the operating mode has produced a value.
type Result struct {
	HeartRateBPM   float64
	HeartRateValid bool

	SpO2Percent float64
	SpO2Valid   bool

	TemperatureC     float64
	TemperatureValid bool

	Valid bool
}

// Stats reports processing counters since construction.
type Stats struct {
	Samples           uint64
	Overflows         uint64
	RejectedIntervals uint64
}

// New returns a new pipeline. Without a WithSensor option it opens a MAX30100
// on the first available I²C bus.
func New(opts ...Option) (*Device, error) {
	d := &Device{
		log:   zap.NewNop(),
		table: DefaultCalibration(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.sensor == nil {
		sensor, err := max30100.New(d.bus, d.addr)
		if err != nil {
			return nil, fmt.Errorf("pulseox: could not open sensor: %w", err)
		}
		d.sensor = sensor
	}

	return d, nil
}

// Close closes the sensor and cleans after itself.
func (d *Device) Close() {
	d.sensor.Close()
}

// Configure validates the settings, applies them to the sensor and resets all
// filter and accumulator state: baselines tracked under the previous sample
// rate's time constants are invalid under a new one. On a validation error
// nothing is mutated and the prior configuration stays in effect. A device
// that was active drops back to the configured state and must be activated
// again.
func (d *Device) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := d.sensor.Apply(cfg.SampleRate, cfg.PulseWidth, cfg.RedCurrent, cfg.IRCurrent, cfg.Mode != ModeHeartRate); err != nil {
		return fmt.Errorf("pulseox: could not apply settings: %w", err)
	}

	d.cfg = cfg
	d.resetPipeline()
	d.state = stateConfigured

	d.log.Info("configured",
		zap.String("mode", string(cfg.Mode)),
		zap.Int("sample_rate_hz", cfg.SampleRate),
		zap.Int("pulse_width_us", cfg.PulseWidth),
	)

	return nil
}

func (d *Device) resetPipeline() {
	rate := float64(d.cfg.SampleRate)
	d.cond = newConditioner(rate, d.cfg.BaselineCutoff)
	d.beat = newBeatDetector(rate, d.cfg.ThresholdFraction, d.cfg.MinAmplitude, d.cfg.MinBPM, d.cfg.MaxBPM)
	d.hr = newHREstimator(d.cfg.MinBPM, d.cfg.MaxBPM, d.cfg.IBIWindow, d.log)
	d.spo2 = newSpO2Estimator(d.table, d.cfg.SpO2Window)
	d.acc.reset()
	d.fingerPresent = false
}

// Activate starts the sensor and enables polling.
func (d *Device) Activate() error {
	switch d.state {
	case stateUnconfigured:
		return fmt.Errorf("pulseox: could not activate: %w", ErrNotConfigured)
	case stateActive:
		return nil
	}

	if err := d.sensor.Startup(); err != nil {
		return fmt.Errorf("pulseox: could not start sensor: %w", err)
	}
	d.state = stateActive

	return nil
}

// Deactivate stops polling and puts the sensor into power-save mode. It is
// effective immediately: the pipeline has no pending asynchronous work.
func (d *Device) Deactivate() error {
	if d.state != stateActive {
		return nil
	}

	if err := d.sensor.Shutdown(); err != nil {
		return fmt.Errorf("pulseox: could not stop sensor: %w", err)
	}
	d.state = stateConfigured

	return nil
}

// Ready reports whether a poll would have samples to process. It is a cheap
// query meant to keep the caller's poll loop from busy-spinning; it is false
// unless the device is active and the sensor holds at least one unread
// sample.
func (d *Device) Ready() bool {
	if d.state != stateActive {
		return false
	}

	n, err := d.sensor.Available()
	if err != nil {
		return false
	}

	return n > 0
}

// Poll drives one ingestion and processing cycle: it drains the samples
// currently available, zero or more, and runs them through the pipeline in
// arrival order. A tick with no samples is a cheap no-op. Device-side
// overflow is absorbed: the loss is counted and logged, and the baseline
// re-converges over the following samples. Only bus failures are returned.
func (d *Device) Poll() error {
	if d.state != stateActive {
		return fmt.Errorf("pulseox: could not poll: %w", ErrNotActive)
	}

	ir, red, overflow, err := d.sensor.ReadAvailable()
	if err != nil {
		return fmt.Errorf("pulseox: could not read samples: %w", err)
	}
	if overflow {
		d.overflows++
		d.log.Warn("device FIFO overflow, samples dropped",
			zap.Uint64("total_overflows", d.overflows),
		)
	}

	for i := range ir {
		d.process(ir[i], red[i])
	}

	return nil
}

func (d *Device) process(ir, red uint16) {
	c := d.cond.step(ir, red)
	d.samples++

	present := c.irDC >= d.cfg.PresenceThreshold && c.redDC >= d.cfg.PresenceThreshold
	if present != d.fingerPresent {
		d.fingerPresent = present
		if present {
			d.log.Debug("contact detected")
		} else {
			// Nothing from the previous contact may survive into the
			// next one: not the estimates, not the detector's adapted
			// amplitude, and not its last-beat reference, which would
			// otherwise pair with the first post-recontact beat into a
			// fabricated interval.
			d.log.Debug("contact lost")
			d.hr.reset()
			d.spo2.reset()
			d.acc.reset()
			d.beat = newBeatDetector(float64(d.cfg.SampleRate),
				d.cfg.ThresholdFraction, d.cfg.MinAmplitude, d.cfg.MinBPM, d.cfg.MaxBPM)
		}
	}
	if !present {
		return
	}

	spo2Active := d.cfg.Mode != ModeHeartRate
	if spo2Active {
		d.acc.add(c)
	}

	ev, fired := d.beat.step(c.irAC)
	if !fired {
		return
	}

	if ev.ibiMS == 0 {
		// First beat after a reset: no interval yet, it only opens the
		// first accumulation window.
		if spo2Active {
			d.acc.reset()
		}
		return
	}

	if !d.hr.accept(ev.ibiMS) {
		return
	}

	if spo2Active {
		d.spo2.update(&d.acc)
		d.acc.reset()
	}
}

// ReadProcessedData returns the current measurement snapshot. Estimates are
// recomputed on demand from the pipeline state; the die temperature is read
// from the sensor. Bus failures are returned unmodified.
func (d *Device) ReadProcessedData() (Result, error) {
	if d.state == stateUnconfigured {
		return Result{}, fmt.Errorf("pulseox: could not read data: %w", ErrNotConfigured)
	}

	var res Result

	temp, err := d.sensor.Temperature()
	if err != nil {
		return Result{}, fmt.Errorf("pulseox: could not read temperature: %w", err)
	}
	res.TemperatureC = temp
	res.TemperatureValid = true

	if d.cfg.Mode != ModeSpO2 {
		if bpm, ok := d.hr.bpm(); ok {
			res.HeartRateBPM = bpm
			res.HeartRateValid = true
		}
	}
	if d.cfg.Mode != ModeHeartRate {
		if s, ok := d.spo2.value(); ok {
			res.SpO2Percent = s
			res.SpO2Valid = true
		}
	}

	switch d.cfg.Mode {
	case ModeHeartRate:
		res.Valid = res.HeartRateValid
	case ModeSpO2:
		res.Valid = res.SpO2Valid
	default:
		res.Valid = res.HeartRateValid && res.SpO2Valid
	}

	return res, nil
}

// Stats returns the processing counters.
func (d *Device) Stats() Stats {
	s := Stats{
		Samples:   d.samples,
		Overflows: d.overflows,
	}
	if d.hr != nil {
		s.RejectedIntervals = d.hr.rejected
	}
	return s
}
