package max30100

import "fmt"

// Option defines a functional option for the device.
type Option func(d *Device) (Option, error)

// Options set different configuration options and returns the previous value
// of the last option passed.
func (d *Device) Options(options ...Option) (Option, error) {
	var old Option
	var err error
	for _, opt := range options {
		old, err = opt(d)
		if err != nil {
			return nil, err
		}
	}

	return old, nil
}

func (d *Device) config(reg, mask, flag byte) (byte, error) {
	cfg, err := d.Read(reg)
	if err != nil {
		return 0, fmt.Errorf("could not get %v from %v: %w", mask, reg, err)
	}
	old := cfg &^ mask
	cfg &= mask
	cfg |= flag
	if err := d.Write(reg, cfg); err != nil {
		return 0, fmt.Errorf("could not set %v in %v: %w", flag, reg, err)
	}

	return old, nil
}

// Mode sets the operation mode of the device (ModeHR or ModeSpO2).
func Mode(mode byte) Option {
	return func(d *Device) (Option, error) {
		old, err := d.config(ModeCfg, modeMask, mode)
		if err != nil {
			return nil, fmt.Errorf("max30100: could not configure mode: %w", err)
		}

		return Mode(old), nil
	}
}

// SampleRate sets the sample rate control of the device. It accepts the SR50
// to SR1000 codes.
func SampleRate(sr byte) Option {
	return func(d *Device) (Option, error) {
		old, err := d.config(SpO2Cfg, srMask, sr)
		if err != nil {
			return nil, fmt.Errorf("max30100: could not configure sample rate: %w", err)
		}

		return SampleRate(old), nil
	}
}

// PulseWidth sets the LED pulse width of the device. It accepts the PW200 to
// PW1600 codes. Longer pulse widths increase the ADC resolution.
func PulseWidth(pw byte) Option {
	return func(d *Device) (Option, error) {
		old, err := d.config(SpO2Cfg, pwMask, pw)
		if err != nil {
			return nil, fmt.Errorf("max30100: could not configure pulse width: %w", err)
		}

		return PulseWidth(old), nil
	}
}

// LEDCurrent sets the drive current step (0-15) of the red and IR LEDs. The
// red step occupies the upper nibble of the LED configuration register and
// the IR step the lower nibble.
func LEDCurrent(red, ir byte) Option {
	return func(d *Device) (Option, error) {
		if red > 15 {
			red = 15
		}
		if ir > 15 {
			ir = 15
		}

		old, err := d.config(LedCfg, 0, red<<4|ir)
		if err != nil {
			return nil, fmt.Errorf("max30100: could not configure LED currents: %w", err)
		}

		return LEDCurrent(old>>4, old&0x0F), nil
	}
}

// HighRes enables or disables the high resolution SpO2 sampling mode.
func HighRes(enable bool) Option {
	return func(d *Device) (Option, error) {
		var flag byte
		if enable {
			flag = HiResEna
		}

		old, err := d.config(SpO2Cfg, ^HiResEna, flag)
		if err != nil {
			return nil, fmt.Errorf("max30100: could not configure resolution: %w", err)
		}

		return HighRes(old&HiResEna != 0), nil
	}
}
