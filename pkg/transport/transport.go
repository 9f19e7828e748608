// Package transport delivers encoded frames to the downstream consumer over a
// serial link.
package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/itohio/goeeg/pkg/logger"
)

// DefaultBaudRate is the frame link baud rate.
const DefaultBaudRate = 115200

// ErrClosed is returned for I/O on a link that is not open.
var ErrClosed = errors.New("link is not open")

// Error is a failed link operation.
type Error struct {
	Op   string // "open", "write", "read" or "close"
	Port string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Port, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Serial is a frame link over a serial port. Write delivers a whole frame or
// fails; there is no retry.
type Serial struct {
	port     string
	baudRate int
	logger   *zap.Logger

	mu      sync.Mutex
	conn    io.ReadWriteCloser
	written uint64
}

// NewSerial creates a link for the given port. Call Open before use.
func NewSerial(port string, baudRate int, l *zap.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return &Serial{
		port:     port,
		baudRate: baudRate,
		logger:   logger.OrNop(l),
	}
}

// Attach wraps an already open connection, such as a pseudo-terminal or a
// network stream, as a link named name.
func Attach(name string, conn io.ReadWriteCloser, l *zap.Logger) *Serial {
	s := NewSerial(name, 0, l)
	s.conn = conn
	return s
}

// Port returns the port name.
func (s *Serial) Port() string {
	return s.port
}

// Open opens the serial port.
func (s *Serial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return &Error{Op: "open", Port: s.port, Err: errors.New("already open")}
	}

	port, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return &Error{Op: "open", Port: s.port, Err: err}
	}
	if err := port.ResetOutputBuffer(); err != nil {
		s.logger.Warn("[transport] failed to reset output buffer", zap.Error(err), zap.String("port", s.port))
	}

	s.conn = port
	s.logger.Info("[transport] link open", zap.String("port", s.port), zap.Int("baud", s.baudRate))
	return nil
}

// Write sends all of b, looping over short writes.
func (s *Serial) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return 0, &Error{Op: "write", Port: s.port, Err: ErrClosed}
	}

	total := 0
	for total < len(b) {
		n, err := s.conn.Write(b[total:])
		total += n
		if err != nil {
			return total, &Error{Op: "write", Port: s.port, Err: err}
		}
		if n == 0 {
			return total, &Error{Op: "write", Port: s.port, Err: io.ErrShortWrite}
		}
	}
	s.written += uint64(total)

	return total, nil
}

// Read reads from the link. It is used by the receiving side. End of stream
// is reported as a bare io.EOF.
func (s *Serial) Read(b []byte) (int, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return 0, &Error{Op: "read", Port: s.port, Err: ErrClosed}
	}

	n, err := conn.Read(b)
	if err != nil && err != io.EOF {
		return n, &Error{Op: "read", Port: s.port, Err: err}
	}
	return n, err
}

// Written returns the number of bytes delivered since creation.
func (s *Serial) Written() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close closes the link. Closing a closed link is a no-op.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return &Error{Op: "close", Port: s.port, Err: err}
	}
	s.logger.Info("[transport] link closed", zap.String("port", s.port))
	return nil
}
