package adc

import (
	"fmt"
	"math"
	"sync"

	"golang.org/x/exp/rand"

	"github.com/itohio/goeeg/pkg/config"
)

// Mock simulates a single-ended ADC digitizing an EEG-like signal. The
// waveform is a function of the sample index only, so two mocks with the same
// configuration and seed produce identical streams.
type Mock struct {
	cfg        config.MockConfig
	sampleRate float64
	fullScale  float64
	failAfter  int

	mu        sync.Mutex
	rng       *rand.Rand
	index     int
	connected bool
}

// MockOption configures a Mock.
type MockOption func(*Mock)

// WithFailAfter makes every read after the first n return a HardwareError.
func WithFailAfter(n int) MockOption {
	return func(m *Mock) {
		m.failAfter = n
	}
}

// NewMock creates a mock ADC sampling at sampleRate with the given PGA
// full-scale range.
func NewMock(cfg config.MockConfig, sampleRate, fullScale float64, opts ...MockOption) *Mock {
	m := &Mock{
		cfg:        cfg,
		sampleRate: sampleRate,
		fullScale:  fullScale,
		failAfter:  -1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect resets the simulation to sample 0.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.rng = rand.New(rand.NewSource(m.cfg.Seed))
	m.index = 0
	m.connected = true

	return nil
}

// Close stops the mocked device.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// ReadSample returns the next simulated voltage.
func (m *Mock) ReadSample() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return 0, &HardwareError{Source: "mock", Err: ErrNotConnected}
	}
	if m.failAfter >= 0 && m.index >= m.failAfter {
		return 0, &HardwareError{Source: "mock", Err: fmt.Errorf("simulated failure at sample %d", m.index)}
	}

	v := m.generateSample(m.index)
	m.index++

	return v, nil
}

// generateSample generates a single simulated sample. The signal rides on a
// mid-scale bias like a single-ended front end and is clamped to the ADC
// range, so saturation bursts read as 0 V or full scale.
func (m *Mock) generateSample(n int) float64 {
	t := float64(n) / m.sampleRate
	bias := m.fullScale / 2

	v := bias +
		m.cfg.Amplitude*math.Sin(2*math.Pi*m.cfg.Frequency*t) +
		m.cfg.Drift*math.Sin(2*math.Pi*0.2*t) +
		m.cfg.Hum*math.Sin(2*math.Pi*60*t) +
		m.cfg.NoiseLevel*m.rng.NormFloat64()

	if m.cfg.ClipEvery > 0 && n%m.cfg.ClipEvery < m.cfg.ClipLength {
		if (n/m.cfg.ClipEvery)%2 == 0 {
			v = m.fullScale
		} else {
			v = 0
		}
	}

	return math.Max(0, math.Min(m.fullScale, v))
}
