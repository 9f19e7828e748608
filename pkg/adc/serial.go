package adc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/itohio/goeeg/pkg/logger"
)

const (
	// DefaultBaudRate is the ADC bridge baud rate.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the samples channel buffer.
	DefaultBufferSize = 1024
	// DefaultReadTimeout bounds how long ReadSample waits for the bridge.
	DefaultReadTimeout = 100 * time.Millisecond
)

// Serial reads voltages from a microcontroller that digitizes the channel and
// streams one reading per line ("0.012345\n") over a serial port.
type Serial struct {
	port        string
	baudRate    int
	bufSize     int
	readTimeout time.Duration
	logger      *zap.Logger

	conn      serial.Port
	samples   chan float64
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	readErr   error
}

// NewSerial creates a serial ADC bridge with the specified port and baud rate.
func NewSerial(port string, baudRate int, l *zap.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	return &Serial{
		port:        port,
		baudRate:    baudRate,
		bufSize:     DefaultBufferSize,
		readTimeout: DefaultReadTimeout,
		logger:      logger.OrNop(l),
	}
}

// Connect opens the serial port and starts the line reader.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	port, err := serial.Open(d.port, &serial.Mode{BaudRate: d.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		d.logger.Warn("[adc] failed to reset input buffer", zap.Error(err), zap.String("port", d.port))
	}

	d.conn = port
	d.samples = make(chan float64, d.bufSize)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.readErr = nil
	d.connected = true

	go d.readSamples(d.ctx, port, d.samples)

	return nil
}

// Close closes the port and stops the line reader.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()
	d.connected = false

	if err := d.conn.Close(); err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", d.port, err)
	}
	d.conn = nil

	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// ReadSample returns the oldest unread reading. It fails with a
// HardwareError when the port is closed, the reader stopped, or no reading
// arrives within the read timeout.
func (d *Serial) ReadSample() (float64, error) {
	d.mu.RLock()
	samples := d.samples
	connected := d.connected
	d.mu.RUnlock()

	if !connected {
		return 0, &HardwareError{Source: d.port, Err: ErrNotConnected}
	}

	timer := time.NewTimer(d.readTimeout)
	defer timer.Stop()

	select {
	case v, ok := <-samples:
		if !ok {
			d.mu.RLock()
			err := d.readErr
			d.mu.RUnlock()
			if err == nil {
				err = io.EOF
			}
			return 0, &HardwareError{Source: d.port, Err: err}
		}
		return v, nil
	case <-timer.C:
		return 0, &HardwareError{Source: d.port, Err: fmt.Errorf("no reading within %v", d.readTimeout)}
	}
}

// readSamples reads lines from r and parses them into voltages until ctx is
// cancelled or the stream ends. It owns and closes out.
func (d *Serial) readSamples(ctx context.Context, r io.Reader, out chan<- float64) {
	defer close(out)

	scanner := bufio.NewScanner(r)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			d.mu.Lock()
			d.readErr = err
			d.mu.Unlock()
			if ctx.Err() == nil {
				d.logger.Warn("[adc] serial reader stopped", zap.Error(err), zap.String("port", d.port))
			}
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		v, err := parseLine(line)
		if err != nil {
			d.logger.Debug("[adc] failed to parse line", zap.Error(err), zap.String("line", line))
			continue
		}

		select {
		case out <- v:
		case <-ctx.Done():
			return
		default:
			d.logger.Warn("[adc] samples channel full, dropping reading", zap.String("port", d.port))
		}
	}
}

// parseLine parses a single voltage reading.
// Format: <volts>, e.g. "0.012345" or "-1.5e-3".
func parseLine(line string) (float64, error) {
	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid reading: %w", err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("reading is not finite: %q", line)
	}
	return v, nil
}
