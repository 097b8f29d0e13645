package pulseox

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects which estimators run during a poll cycle. In ModeHeartRate the
// SpO2 estimator is never invoked; in ModeSpO2 the beat detector still runs,
// because detected beats delimit the SpO2 accumulation windows, but heart
// rate is not reported.
type Mode string

// Supported operating modes.
const (
	ModeHeartRate Mode = "heart_rate"
	ModeSpO2      Mode = "spo2"
	ModeBoth      Mode = "hr_and_spo2"
)

// Settings supported by the MAX30100 family.
var (
	supportedSampleRates = map[int]bool{
		50: true, 100: true, 167: true, 200: true,
		400: true, 600: true, 800: true, 1000: true,
	}
	supportedPulseWidths = map[int]bool{
		200: true, 400: true, 800: true, 1600: true,
	}
	supportedLEDCurrents = []float64{
		0, 4.4, 7.6, 11.0, 14.2, 17.4, 20.8, 24.0,
		27.1, 30.6, 33.8, 37.0, 40.2, 43.6, 46.8, 50.0,
	}
)

// Config holds the device settings and the signal-processing tunables of a
// pipeline. The zero value is not usable; start from DefaultConfig or Load.
type Config struct {
	Mode       Mode    `yaml:"mode"`
	SampleRate int     `yaml:"sample_rate"` // Hz
	RedCurrent float64 `yaml:"red_current"` // mA
	IRCurrent  float64 `yaml:"ir_current"`  // mA
	PulseWidth int     `yaml:"pulse_width"` // us

	// BaselineCutoff is the corner frequency of the DC baseline tracker.
	// It must sit well below the heart-rate band.
	BaselineCutoff float64 `yaml:"baseline_cutoff"` // Hz

	// ThresholdFraction is the fraction of the recent AC peak-to-peak
	// amplitude used as the beat detection threshold.
	ThresholdFraction float64 `yaml:"threshold_fraction"`

	// MinBPM and MaxBPM bound the plausible inter-beat intervals. Beats
	// implying a rate outside these bounds are rejected, and MaxBPM also
	// derives the detector's refractory interval.
	MinBPM float64 `yaml:"min_bpm"`
	MaxBPM float64 `yaml:"max_bpm"`

	// IBIWindow and SpO2Window are the moving average lengths, in accepted
	// beats, of the heart rate and SpO2 estimates.
	IBIWindow  int `yaml:"ibi_window"`
	SpO2Window int `yaml:"spo2_window"`

	// MinAmplitude is the minimum AC peak-to-peak amplitude, in ADC
	// counts, for a threshold crossing to count as a pulse.
	MinAmplitude float64 `yaml:"min_amplitude"`

	// PresenceThreshold is the minimum DC level, in ADC counts, on both
	// channels for a finger to be considered present.
	PresenceThreshold float64 `yaml:"presence_threshold"`
}

// DefaultConfig returns a configuration suitable for fingertip measurements
// at 100 samples/s.
func DefaultConfig() Config {
	return Config{
		Mode:       ModeBoth,
		SampleRate: 100,
		RedCurrent: 27.1,
		IRCurrent:  27.1,
		PulseWidth: 1600,

		BaselineCutoff:    0.4,
		ThresholdFraction: 0.25,
		MinBPM:            30,
		MaxBPM:            220,
		IBIWindow:         5,
		SpO2Window:        4,
		MinAmplitude:      50,
		PresenceThreshold: 5000,
	}
}

// Load reads a configuration from a YAML file, overlaying the file's values
// on DefaultConfig. A missing file is not an error and yields the defaults.
func Load(filename string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("pulseox: could not read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("pulseox: could not parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration against the device's supported settings
// and the tunables against their usable ranges. It returns an error wrapping
// ErrInvalidConfiguration on the first violation found.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeHeartRate, ModeSpO2, ModeBoth:
	default:
		return fmt.Errorf("pulseox: unknown mode %q: %w", c.Mode, ErrInvalidConfiguration)
	}

	if !supportedSampleRates[c.SampleRate] {
		return fmt.Errorf("pulseox: unsupported sample rate %d Hz: %w", c.SampleRate, ErrInvalidConfiguration)
	}
	if !supportedPulseWidths[c.PulseWidth] {
		return fmt.Errorf("pulseox: unsupported pulse width %d us: %w", c.PulseWidth, ErrInvalidConfiguration)
	}
	if !supportedCurrent(c.RedCurrent) {
		return fmt.Errorf("pulseox: unsupported red LED current %.1f mA: %w", c.RedCurrent, ErrInvalidConfiguration)
	}
	if !supportedCurrent(c.IRCurrent) {
		return fmt.Errorf("pulseox: unsupported IR LED current %.1f mA: %w", c.IRCurrent, ErrInvalidConfiguration)
	}

	if c.BaselineCutoff <= 0 || c.BaselineCutoff >= c.MinBPM/60 {
		return fmt.Errorf("pulseox: baseline cutoff %.2f Hz outside (0, %.2f): %w",
			c.BaselineCutoff, c.MinBPM/60, ErrInvalidConfiguration)
	}
	if c.ThresholdFraction <= 0 || c.ThresholdFraction >= 1 {
		return fmt.Errorf("pulseox: threshold fraction %.2f outside (0, 1): %w",
			c.ThresholdFraction, ErrInvalidConfiguration)
	}
	if c.MinBPM <= 0 || c.MaxBPM <= c.MinBPM {
		return fmt.Errorf("pulseox: implausible BPM bounds [%.0f, %.0f]: %w",
			c.MinBPM, c.MaxBPM, ErrInvalidConfiguration)
	}
	if c.IBIWindow < 1 {
		return fmt.Errorf("pulseox: IBI window %d must be at least 1: %w", c.IBIWindow, ErrInvalidConfiguration)
	}
	if c.SpO2Window < 1 {
		return fmt.Errorf("pulseox: SpO2 window %d must be at least 1: %w", c.SpO2Window, ErrInvalidConfiguration)
	}
	if c.MinAmplitude < 0 {
		return fmt.Errorf("pulseox: negative minimum amplitude: %w", ErrInvalidConfiguration)
	}
	if c.PresenceThreshold < 0 {
		return fmt.Errorf("pulseox: negative presence threshold: %w", ErrInvalidConfiguration)
	}

	return nil
}

func supportedCurrent(ma float64) bool {
	for _, c := range supportedLEDCurrents {
		if ma == c {
			return true
		}
	}
	return false
}
