package pulseox

import "go.uber.org/zap"

// An Option configures a pipeline.
type Option func(d *Device) Option

// OnBus can be used to specify the I²C bus name ("/dev/i2c-2", "I2C2", "2").
// By default, the bus name is "", which selects the first available bus.
func OnBus(name string) Option {
	return func(d *Device) Option {
		old := d.bus
		d.bus = name
		return OnBus(old)
	}
}

// OnAddr can be used to specify an alternative I²C address.
// By default, the address is 0x57.
func OnAddr(addr uint16) Option {
	return func(d *Device) Option {
		old := d.addr
		d.addr = addr
		return OnAddr(old)
	}
}

// WithSensor injects a sample source, bypassing the default MAX30100 probe.
// Tests use it to drive the pipeline with synthetic sample sequences.
func WithSensor(s Sensor) Option {
	return func(d *Device) Option {
		old := d.sensor
		d.sensor = s
		return WithSensor(old)
	}
}

// WithLogger sets the structured logger. By default, logging is disabled.
func WithLogger(log *zap.Logger) Option {
	return func(d *Device) Option {
		old := d.log
		d.log = log
		return WithLogger(old)
	}
}

// WithCalibration replaces the stock ratio-to-SpO2 curve with one fitted to
// the actual optics.
func WithCalibration(t *CalibrationTable) Option {
	return func(d *Device) Option {
		old := d.table
		d.table = t
		return WithCalibration(old)
	}
}
