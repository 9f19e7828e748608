// Package acquire reads the ADC at a fixed rate and appends every reading to
// the shared sample buffer.
package acquire

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/itohio/goeeg/pkg/adc"
	"github.com/itohio/goeeg/pkg/clock"
	"github.com/itohio/goeeg/pkg/logger"
)

// Buffer receives acquired samples.
type Buffer interface {
	Append(v float64)
}

// Loop is the acquisition activity: wait for the next deadline, read one
// sample, append it. A read failure stops the loop; it is never retried.
// A Loop is driven by a single goroutine.
type Loop struct {
	clock  *clock.Clock
	reader adc.Reader
	buf    Buffer
	logger *zap.Logger

	index uint64 // next sample to acquire
	late  uint64
}

// New creates an acquisition loop. Every Run or RunN re-anchors the clock so
// the next sample is due when the run starts.
func New(c *clock.Clock, r adc.Reader, buf Buffer, l *zap.Logger) *Loop {
	return &Loop{
		clock:  c,
		reader: r,
		buf:    buf,
		logger: logger.OrNop(l),
	}
}

// Count returns the number of samples acquired so far.
func (l *Loop) Count() uint64 {
	return l.index
}

// Late returns how many samples started more than one interval after their
// deadline.
func (l *Loop) Late() uint64 {
	return l.late
}

// Tick waits for the next sample deadline, reads one sample and appends it.
// It returns ctx.Err() if cancelled before the read and an error wrapping
// *adc.HardwareError if the read fails.
func (l *Loop) Tick(ctx context.Context) error {
	if l.clock.Behind(l.index) > l.clock.Interval() {
		l.late++
	}
	if err := l.clock.Wait(ctx, l.index); err != nil {
		return err
	}

	v, err := l.reader.ReadSample()
	if err != nil {
		var hwErr *adc.HardwareError
		if !errors.As(err, &hwErr) {
			err = &adc.HardwareError{Source: "adc", Err: err}
		}
		return fmt.Errorf("failed to read sample %d: %w", l.index, err)
	}

	l.buf.Append(v)
	l.index++
	return nil
}

// Run acquires samples until ctx is cancelled or a read fails. Cancellation
// is a normal stop and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	return l.run(ctx, 0)
}

// RunN acquires at most n samples. It returns early under the same
// conditions as Run.
func (l *Loop) RunN(ctx context.Context, n uint64) error {
	if n == 0 {
		return nil
	}
	return l.run(ctx, n)
}

func (l *Loop) run(ctx context.Context, limit uint64) error {
	// a paused loop resumes on schedule instead of catching up
	l.clock.Reset(l.index)
	l.logger.Info("[acquire] started",
		zap.Duration("interval", l.clock.Interval()),
		zap.Uint64("from", l.index),
		zap.Time("start", l.clock.Start()),
	)

	var done uint64
	for limit == 0 || done < limit {
		if err := l.Tick(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				break
			}
			l.logger.Error("[acquire] stopped on read failure", zap.Error(err), zap.Uint64("samples", l.index))
			return err
		}
		done++
	}

	if l.late > 0 {
		l.logger.Warn("[acquire] samples acquired behind schedule", zap.Uint64("late", l.late), zap.Uint64("samples", l.index))
	}
	l.logger.Info("[acquire] stopped", zap.Uint64("samples", l.index))
	return nil
}
