// Package adc defines the sample source used by the acquisition loop and
// provides a serial ADC bridge and a synthetic source.
package adc

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by reads on a closed or never opened device.
var ErrNotConnected = errors.New("not connected")

// Reader returns one voltage sample per call.
type Reader interface {
	ReadSample() (float64, error)
}

// Device is a Reader with an explicit connection lifecycle.
type Device interface {
	Reader
	Connect() error
	Close() error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)

// HardwareError reports a failed ADC read. The acquisition loop does not
// retry it.
type HardwareError struct {
	Source string
	Err    error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("adc %s: %v", e.Source, e.Err)
}

func (e *HardwareError) Unwrap() error {
	return e.Err
}
