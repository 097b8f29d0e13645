// Package max30100 provides a register-level driver for the MAX30100 pulse
// oximeter over I²C. It implements the sample-source side of the pulseox
// processing pipeline: FIFO draining, overflow reporting, die temperature and
// device configuration. All reads are non-blocking with respect to the FIFO;
// draining an empty FIFO returns zero samples.
package max30100

import (
	"errors"
	"fmt"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

var (
	// ErrNotDevice is thrown when the device part ID does not match a
	// MAX30100 signature (0x11).
	ErrNotDevice = errors.New("max30100: part ID does not match (0x11)")
)

// Device defines a MAX30100 device.
type Device struct {
	dev *i2c.Dev
	bus i2c.BusCloser
}

// New returns a new MAX30100 device. By default, this sets the device to SpO2
// mode with a sample rate of 100 samples/s, a pulse width of 1600us and both
// LEDs driven at 27.1mA.
//
// Argument "busName" can be used to specify the exact bus to use ("/dev/i2c-2",
// "I2C2", "2"). If "busName" is an empty string, the first available bus is
// used. Argument "addr" can be used to specify an alternative address if the
// default (0x57) is unavailable.
func New(busName string, addr uint16) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("max30100: could not initialize host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("max30100: could not open I2C bus: %w", err)
	}

	if addr == 0 {
		addr = Addr
	}

	d := &Device{
		dev: &i2c.Dev{Addr: addr, Bus: bus},
		bus: bus,
	}

	part, err := d.Read(RegPartID)
	if err != nil {
		return nil, fmt.Errorf("max30100: could not get part ID: %w", err)
	}
	if part != PartID {
		return nil, ErrNotDevice
	}

	if err := d.Reset(); err != nil {
		return nil, fmt.Errorf("max30100: could not reset device: %w", err)
	}
	if _, err := d.Options(
		Mode(ModeSpO2),
		SampleRate(SR100),
		PulseWidth(PW1600),
		LEDCurrent(8, 8),
		HighRes(true),
	); err != nil {
		return nil, fmt.Errorf("max30100: could not initialize device: %w", err)
	}
	if err := d.clearFIFO(); err != nil {
		return nil, fmt.Errorf("max30100: could not clear FIFO: %w", err)
	}

	return d, nil
}

// Close shuts the device down and closes the bus.
func (d *Device) Close() {
	d.Shutdown()
	d.bus.Close()
}

// RevID returns the revision ID of the device.
func (d *Device) RevID() (byte, error) {
	rev, err := d.Read(RegRevID)
	if err != nil {
		return 0, fmt.Errorf("max30100: could not get revision ID: %w", err)
	}
	return rev, nil
}

// Apply maps validated settings to device registers. Heart-rate-only
// operation disables the red LED sampling path on the device side.
func (d *Device) Apply(sampleRate, pulseWidthUS int, redMA, irMA float64, spo2 bool) error {
	sr, ok := srCode[sampleRate]
	if !ok {
		return fmt.Errorf("max30100: unsupported sample rate %d Hz", sampleRate)
	}
	pw, ok := pwCode[pulseWidthUS]
	if !ok {
		return fmt.Errorf("max30100: unsupported pulse width %d us", pulseWidthUS)
	}
	red, ok := CurrentCode(redMA)
	if !ok {
		return fmt.Errorf("max30100: unsupported red LED current %.1f mA", redMA)
	}
	ir, ok := CurrentCode(irMA)
	if !ok {
		return fmt.Errorf("max30100: unsupported IR LED current %.1f mA", irMA)
	}

	mode := ModeHR
	if spo2 {
		mode = ModeSpO2
	}

	if _, err := d.Options(
		Mode(mode),
		SampleRate(sr),
		PulseWidth(pw),
		LEDCurrent(red, ir),
		HighRes(spo2),
	); err != nil {
		return fmt.Errorf("max30100: could not apply settings: %w", err)
	}

	return d.clearFIFO()
}

// CurrentCode returns the LED drive step for a nominal current in mA. The
// second return value is false if the current is not one of the 16 supported
// steps.
func CurrentCode(ma float64) (byte, bool) {
	for i, c := range ledCurrents {
		if ma == c {
			return byte(i), true
		}
	}
	return 0, false
}

// Available reports the number of unread samples in the device FIFO without
// consuming them. Equal write and read pointers are ambiguous: the FIFO is
// either empty or full after a wrap. The overflow counter disambiguates, so a
// full FIFO reports its depth and a poll loop gated on Available cannot stall
// after an overflow.
func (d *Device) Available() (int, error) {
	wr, err := d.Read(FIFOWrPtr)
	if err != nil {
		return 0, fmt.Errorf("max30100: could not read write pointer: %w", err)
	}
	rd, err := d.Read(FIFORdPtr)
	if err != nil {
		return 0, fmt.Errorf("max30100: could not read read pointer: %w", err)
	}

	n := (int(wr) + fifoDepth - int(rd)) % fifoDepth
	if n == 0 {
		ovf, err := d.Read(OvfCounter)
		if err != nil {
			return 0, fmt.Errorf("max30100: could not read overflow counter: %w", err)
		}
		if ovf > 0 {
			n = fifoDepth
		}
	}

	return n, nil
}

// ReadAvailable drains every sample currently buffered in the device FIFO and
// returns the IR and red channels in arrival order. The overflow flag is true
// when the device lost samples since the last drain (FIFO wrapped before
// being read); the unreadable entries are discarded, never fabricated.
func (d *Device) ReadAvailable() (ir, red []uint16, overflow bool, err error) {
	ovf, err := d.Read(OvfCounter)
	if err != nil {
		return nil, nil, false, fmt.Errorf("max30100: could not read overflow counter: %w", err)
	}
	overflow = ovf > 0

	n, err := d.Available()
	if err != nil {
		return nil, nil, overflow, err
	}
	if n == 0 {
		return nil, nil, false, nil
	}

	raw, err := d.ReadBytes(FIFOData, n*sampleBytes)
	if err != nil {
		return nil, nil, overflow, fmt.Errorf("max30100: could not read FIFO: %w", err)
	}

	ir, red = ParseSamples(raw)
	return ir, red, overflow, nil
}

// ParseSamples decodes raw FIFO bytes into IR and red samples. Each FIFO slot
// holds 4 bytes: IR[15:8], IR[7:0], RED[15:8], RED[7:0]. Trailing bytes that
// do not form a full slot are ignored.
func ParseSamples(raw []byte) (ir, red []uint16) {
	n := len(raw) / sampleBytes
	ir = make([]uint16, n)
	red = make([]uint16, n)

	for i := 0; i < n; i++ {
		o := i * sampleBytes
		ir[i] = uint16(raw[o])<<8 | uint16(raw[o+1])
		red[i] = uint16(raw[o+2])<<8 | uint16(raw[o+3])
	}

	return ir, red
}

func (d *Device) clearFIFO() error {
	for _, reg := range []byte{FIFOWrPtr, OvfCounter, FIFORdPtr} {
		if err := d.Write(reg, 0); err != nil {
			return err
		}
	}
	return nil
}

// regPollLimit bounds register polling. A part that never settles a flag, as
// a temperature conversion started in shutdown, surfaces as an error instead
// of a spin.
const regPollLimit = 1000

func (d *Device) waitUntil(reg, flag byte, bit byte) error {
	for i := 0; i < regPollLimit; i++ {
		state, err := d.Read(reg)
		if err != nil {
			return fmt.Errorf("could not wait for %v in %v to be %v", flag, reg, bit)
		}
		switch bit {
		case 1:
			if state&flag != 0 {
				return nil
			}
		case 0:
			if state&flag == 0 {
				return nil
			}
		default:
			return fmt.Errorf("invalid bit %v, it should be 1 or 0", bit)
		}
	}

	return fmt.Errorf("max30100: flag %#02x in register %#02x did not settle", flag, reg)
}

// Temperature returns the die temperature in degrees Celsius. The integer
// part is a signed byte and the fractional part has a resolution of
// 0.0625 degrees.
func (d *Device) Temperature() (float64, error) {
	if _, err := d.config(ModeCfg, ^TempEna, TempEna); err != nil {
		return 0, fmt.Errorf("max30100: could not enable temperature: %w", err)
	}
	if err := d.waitUntil(ModeCfg, TempEna, 0); err != nil {
		return 0, err
	}

	i, err := d.Read(TempInt)
	if err != nil {
		return 0, fmt.Errorf("max30100: could not read integer part of temperature: %w", err)
	}

	f, err := d.Read(TempFrac)
	if err != nil {
		return 0, fmt.Errorf("max30100: could not read fractional part of temperature: %w", err)
	}

	return float64(int8(i)) + (float64(f) * 0.0625), nil
}

// Read reads a single byte from a register.
func (d *Device) Read(reg byte) (byte, error) {
	b := make([]byte, 1)
	if err := d.dev.Tx([]byte{reg}, b); err != nil {
		return 0, fmt.Errorf("max30100: could not read byte: %w", err)
	}

	return b[0], nil
}

// ReadBytes reads n bytes from a register.
func (d *Device) ReadBytes(reg byte, n int) ([]byte, error) {
	b := make([]byte, n)
	if err := d.dev.Tx([]byte{reg}, b); err != nil {
		return nil, fmt.Errorf("max30100: could not read %d bytes: %w", n, err)
	}

	return b, nil
}

// Write writes a byte to a register.
func (d *Device) Write(reg, data byte) error {
	n, err := d.dev.Write([]byte{reg, data})
	if err != nil {
		return err
	}
	n-- // remove register write
	if n != 1 {
		return fmt.Errorf("write: wrong number of bytes written: want %d, got %d", 1, n)
	}

	return nil
}

// Reset resets the device. All configurations, thresholds, and data registers
// are reset to their power-on state.
func (d *Device) Reset() error {
	if err := d.Write(ModeCfg, ResetControl); err != nil {
		return fmt.Errorf("max30100: could not reset: %w", err)
	}
	if err := d.waitUntil(ModeCfg, ResetControl, 0); err != nil {
		return fmt.Errorf("max30100: could not reset: %w", err)
	}

	return nil
}

// Shutdown sets the device into power-save mode.
func (d *Device) Shutdown() error {
	_, err := d.config(ModeCfg, ^shdnControl, shdnControl)

	return err
}

// Startup wakes the device from power-save mode.
func (d *Device) Startup() error {
	_, err := d.config(ModeCfg, ^shdnControl, 0)

	return err
}
