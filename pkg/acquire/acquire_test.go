package acquire

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/itohio/goeeg/pkg/adc"
	"github.com/itohio/goeeg/pkg/clock"
	"github.com/itohio/goeeg/pkg/config"
	"github.com/itohio/goeeg/pkg/ring"
)

// counter returns 0, 1, 2, ... and fails with err once it reaches failAt.
type counter struct {
	mu     sync.Mutex
	n      int
	failAt int
	err    error
}

func (c *counter) ReadSample() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt > 0 && c.n >= c.failAt {
		return 0, c.err
	}
	v := float64(c.n)
	c.n++
	return v, nil
}

func TestRunN(t *testing.T) {
	buf := ring.New(64)
	loop := New(clock.New(10*time.Microsecond), &counter{}, buf, zaptest.NewLogger(t))

	require.NoError(t, loop.RunN(context.Background(), 100))

	assert.Equal(t, uint64(100), loop.Count())
	assert.Equal(t, uint64(100), buf.Total())
	assert.Equal(t, 64, buf.Len())

	tail := buf.SnapshotTail(3)
	assert.Equal(t, []float64{97, 98, 99}, tail)
}

func TestRunN_Resumes(t *testing.T) {
	buf := ring.New(16)
	loop := New(clock.New(10*time.Microsecond), &counter{}, buf, nil)

	require.NoError(t, loop.RunN(context.Background(), 5))
	require.NoError(t, loop.RunN(context.Background(), 5))
	require.NoError(t, loop.RunN(context.Background(), 0))

	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, buf.SnapshotTail(10))
}

// stamped records when each sample was read.
type stamped struct {
	counter
	at []time.Time
}

func (s *stamped) ReadSample() (float64, error) {
	s.at = append(s.at, time.Now())
	return s.counter.ReadSample()
}

func TestRunN_PauseDoesNotBurst(t *testing.T) {
	const interval = 5 * time.Millisecond
	r := &stamped{}
	buf := ring.New(16)
	loop := New(clock.New(interval), r, buf, zaptest.NewLogger(t))

	require.NoError(t, loop.RunN(context.Background(), 3))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, loop.RunN(context.Background(), 3))

	require.Len(t, r.at, 6)
	assert.GreaterOrEqual(t, r.at[3].Sub(r.at[2]), 100*time.Millisecond)
	for i := 4; i < 6; i++ {
		assert.GreaterOrEqual(t, r.at[i].Sub(r.at[i-1]), interval-time.Millisecond, "sample %d", i)
	}
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5}, buf.SnapshotTail(6))
}

func TestRun_HardwareError(t *testing.T) {
	m := adc.NewMock(config.Default().Mock, 860, 0.256, adc.WithFailAfter(10))
	require.NoError(t, m.Connect())
	defer m.Close()

	buf := ring.New(100)
	loop := New(clock.New(10*time.Microsecond), m, buf, zaptest.NewLogger(t))

	err := loop.Run(context.Background())
	require.Error(t, err)

	var hwErr *adc.HardwareError
	assert.True(t, errors.As(err, &hwErr))
	assert.Equal(t, 10, buf.Len())
	assert.Equal(t, uint64(10), loop.Count())
}

func TestTick_WrapsPlainErrors(t *testing.T) {
	boom := errors.New("i2c nack")
	loop := New(clock.New(time.Microsecond), &counter{failAt: 1, err: boom}, ring.New(4), nil)

	require.NoError(t, loop.Tick(context.Background()))
	err := loop.Tick(context.Background())

	var hwErr *adc.HardwareError
	require.True(t, errors.As(err, &hwErr))
	assert.Equal(t, "adc", hwErr.Source)
	assert.True(t, errors.Is(err, boom))
}

func TestRun_GracefulShutdown(t *testing.T) {
	buf := ring.New(4)
	loop := New(clock.New(time.Hour), &counter{}, buf, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	// sample 0 is due immediately, sample 1 an hour later
	assert.Equal(t, 1, buf.Len())
}

func TestTick_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop := New(clock.New(time.Hour), &counter{}, ring.New(4), nil)
	err := loop.Tick(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, loop.Count())
}

func TestLate(t *testing.T) {
	now := time.Unix(0, 0)
	c := clock.New(time.Millisecond, clock.WithNow(func() time.Time { return now }))
	loop := New(c, &counter{}, ring.New(8), nil)

	now = now.Add(5 * time.Millisecond)
	for range 3 {
		require.NoError(t, loop.Tick(context.Background()))
	}

	// samples 0..2 are 5, 4 and 3 ms late
	assert.Equal(t, uint64(3), loop.Late())
}
