package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	ADC         ADCConfig         `yaml:"adc"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Processing  ProcessingConfig  `yaml:"processing"`
	Receiver    ReceiverConfig    `yaml:"receiver"`
	Mock        MockConfig        `yaml:"mock"`
	Log         LogConfig         `yaml:"log"`
}

// SerialConfig contains the frame link configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ADCConfig selects the sample source.
type ADCConfig struct {
	Source    string  `yaml:"source"`     // "mock" or "serial"
	Port      string  `yaml:"port"`       // Serial ADC bridge port (source: serial)
	BaudRate  int     `yaml:"baud_rate"`  // Serial ADC bridge baud rate
	FullScale float64 `yaml:"full_scale"` // PGA full-scale range (V)
}

// AcquisitionConfig contains sampling parameters.
type AcquisitionConfig struct {
	SampleRate    float64 `yaml:"sample_rate"`    // Samples per second
	BufferSeconds float64 `yaml:"buffer_seconds"` // Sliding buffer duration
}

// ProcessingConfig contains windowing and conditioning parameters.
type ProcessingConfig struct {
	PayloadSeconds float64       `yaml:"payload_seconds"` // Transmitted span per frame
	PadSeconds     float64       `yaml:"pad_seconds"`     // Filter padding on each side
	StepDelay      time.Duration `yaml:"step_delay"`      // Delay between processing cycles
	LowCutoff      float64       `yaml:"low_cutoff"`      // Band-pass low edge (Hz)
	HighCutoff     float64       `yaml:"high_cutoff"`     // Band-pass high edge (Hz)
	FilterOrder    int           `yaml:"filter_order"`    // Butterworth order of each band edge
	ClipThreshold  float64       `yaml:"clip_threshold"`  // Artifact threshold on the filtered signal (V)
}

// ReceiverConfig contains downstream consumer parameters.
type ReceiverConfig struct {
	Port           string  `yaml:"port"`
	CircuitGain    float64 `yaml:"circuit_gain"`    // Analog front-end gain removed before display
	FeatureSeconds float64 `yaml:"feature_seconds"` // Rolling window for Hjorth and spectrum
	SpectrumMaxHz  float64 `yaml:"spectrum_max_hz"` // Highest reported spectrum bin
}

// MockConfig contains mock ADC parameters.
type MockConfig struct {
	Amplitude  float64 `yaml:"amplitude"`   // Alpha rhythm amplitude (V)
	Frequency  float64 `yaml:"frequency"`   // Alpha rhythm frequency (Hz)
	Drift      float64 `yaml:"drift"`       // Slow baseline drift amplitude (V)
	Hum        float64 `yaml:"hum"`         // Mains interference amplitude (V)
	NoiseLevel float64 `yaml:"noise_level"` // Noise level (V)
	ClipEvery  int     `yaml:"clip_every"`  // Saturate a burst every N samples (0 = never)
	ClipLength int     `yaml:"clip_length"` // Saturated burst length in samples
	Seed       uint64  `yaml:"seed"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // Optional JSON log file, empty disables it
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyUSB0",
			BaudRate: 115200,
		},
		ADC: ADCConfig{
			Source:    "mock",
			Port:      "/dev/ttyACM0",
			BaudRate:  115200,
			FullScale: 0.256, // ADS1115 with gain 16
		},
		Acquisition: AcquisitionConfig{
			SampleRate:    860,
			BufferSeconds: 5,
		},
		Processing: ProcessingConfig{
			PayloadSeconds: 0.15,
			PadSeconds:     0.05,
			StepDelay:      100 * time.Millisecond,
			LowCutoff:      1,
			HighCutoff:     50,
			FilterOrder:    4,
			ClipThreshold:  0.252 / 2, // ADC clips at 0.253V and 0V
		},
		Receiver: ReceiverConfig{
			Port:           "/dev/ttyUSB0",
			CircuitGain:    1164.44,
			FeatureSeconds: 0.5,
			SpectrumMaxHz:  50,
		},
		Mock: MockConfig{
			Amplitude:  0.02,
			Frequency:  10,
			Drift:      0.01,
			Hum:        0.002,
			NoiseLevel: 0.001,
			ClipEvery:  0,
			ClipLength: 20,
			Seed:       1,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that derived sizes and filter parameters are usable.
func (c *Config) Validate() error {
	p := c.Processing
	nyquist := c.Acquisition.SampleRate / 2

	switch {
	case c.Acquisition.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be > 0, got %g", ErrInvalid, c.Acquisition.SampleRate)
	case c.PayloadSize() <= 0:
		return fmt.Errorf("%w: payload must hold at least one sample", ErrInvalid)
	case c.PadSize() <= 0:
		return fmt.Errorf("%w: pad must hold at least one sample", ErrInvalid)
	case c.BufferCapacity() < c.WindowSize():
		return fmt.Errorf("%w: buffer of %d samples cannot hold a %d sample window", ErrInvalid, c.BufferCapacity(), c.WindowSize())
	case p.LowCutoff <= 0 || p.HighCutoff <= p.LowCutoff:
		return fmt.Errorf("%w: band-pass cutoffs %g..%g Hz", ErrInvalid, p.LowCutoff, p.HighCutoff)
	case p.HighCutoff >= nyquist:
		return fmt.Errorf("%w: high cutoff %g Hz must be below Nyquist %g Hz", ErrInvalid, p.HighCutoff, nyquist)
	case p.FilterOrder <= 0:
		return fmt.Errorf("%w: filter order must be > 0", ErrInvalid)
	case p.ClipThreshold <= 0:
		return fmt.Errorf("%w: clip threshold must be > 0", ErrInvalid)
	case p.StepDelay <= 0:
		return fmt.Errorf("%w: step delay must be > 0", ErrInvalid)
	case c.FeatureWindowSize() < 3:
		return fmt.Errorf("%w: feature window must hold at least 3 samples", ErrInvalid)
	case c.Receiver.SpectrumMaxHz <= 0:
		return fmt.Errorf("%w: spectrum max frequency must be > 0", ErrInvalid)
	}

	return nil
}

// SampleInterval is the nominal time between two samples.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.Acquisition.SampleRate)
}

// PayloadSize is the number of samples in a transmitted frame.
func (c *Config) PayloadSize() int {
	return c.samples(c.Processing.PayloadSeconds)
}

// PadSize is the number of padding samples on each side of the payload.
func (c *Config) PadSize() int {
	return c.samples(c.Processing.PadSeconds)
}

// WindowSize is the padded processing window length.
func (c *Config) WindowSize() int {
	return c.PayloadSize() + 2*c.PadSize()
}

// BufferCapacity is the ring buffer capacity in samples.
func (c *Config) BufferCapacity() int {
	return c.samples(c.Acquisition.BufferSeconds)
}

// FeatureWindowSize is the receiver's rolling analysis window in samples.
func (c *Config) FeatureWindowSize() int {
	return c.samples(c.Receiver.FeatureSeconds)
}

// FrameBytes is the on-wire frame length.
func (c *Config) FrameBytes() int {
	return c.PayloadSize() * 4
}

func (c *Config) samples(seconds float64) int {
	return int(math.Round(seconds * c.Acquisition.SampleRate))
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.ADC.Source == "" {
		c.ADC.Source = def.ADC.Source
	}
	if c.ADC.Port == "" {
		c.ADC.Port = def.ADC.Port
	}
	if c.ADC.BaudRate == 0 {
		c.ADC.BaudRate = def.ADC.BaudRate
	}
	if c.ADC.FullScale == 0 {
		c.ADC.FullScale = def.ADC.FullScale
	}

	if c.Acquisition.SampleRate == 0 {
		c.Acquisition.SampleRate = def.Acquisition.SampleRate
	}
	if c.Acquisition.BufferSeconds == 0 {
		c.Acquisition.BufferSeconds = def.Acquisition.BufferSeconds
	}

	if c.Processing.PayloadSeconds == 0 {
		c.Processing.PayloadSeconds = def.Processing.PayloadSeconds
	}
	if c.Processing.PadSeconds == 0 {
		c.Processing.PadSeconds = def.Processing.PadSeconds
	}
	if c.Processing.StepDelay == 0 {
		c.Processing.StepDelay = def.Processing.StepDelay
	}
	if c.Processing.LowCutoff == 0 {
		c.Processing.LowCutoff = def.Processing.LowCutoff
	}
	if c.Processing.HighCutoff == 0 {
		c.Processing.HighCutoff = def.Processing.HighCutoff
	}
	if c.Processing.FilterOrder == 0 {
		c.Processing.FilterOrder = def.Processing.FilterOrder
	}
	if c.Processing.ClipThreshold == 0 {
		c.Processing.ClipThreshold = def.Processing.ClipThreshold
	}

	if c.Receiver.Port == "" {
		c.Receiver.Port = def.Receiver.Port
	}
	if c.Receiver.CircuitGain == 0 {
		c.Receiver.CircuitGain = def.Receiver.CircuitGain
	}
	if c.Receiver.FeatureSeconds == 0 {
		c.Receiver.FeatureSeconds = def.Receiver.FeatureSeconds
	}
	if c.Receiver.SpectrumMaxHz == 0 {
		c.Receiver.SpectrumMaxHz = def.Receiver.SpectrumMaxHz
	}

	if c.Mock.Frequency == 0 {
		c.Mock.Frequency = def.Mock.Frequency
	}
	if c.Mock.ClipLength == 0 {
		c.Mock.ClipLength = def.Mock.ClipLength
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}
