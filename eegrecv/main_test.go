package main

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/itohio/goeeg/pkg/config"
	"github.com/itohio/goeeg/pkg/frame"
	"github.com/itohio/goeeg/pkg/transport"
)

type replayConn struct{ bytes.Buffer }

func (c *replayConn) Close() error { return nil }

func TestReceive(t *testing.T) {
	cfg := config.Default()
	enc := frame.Encoder{PayloadSize: cfg.PayloadSize(), PadSize: cfg.PadSize()}

	conn := &replayConn{}
	for k := 0; k < 2; k++ {
		w := make([]float64, enc.WindowSize())
		for i := range w {
			w[i] = 0.01 * float64(k+1) // 10 mV then 20 mV at the amplifier output
		}
		b, err := enc.Encode(w)
		require.NoError(t, err)
		conn.Write(b)
	}

	core, logs := observer.New(zapcore.InfoLevel)
	err := receive(context.Background(), transport.Attach("replay", conn, nil), cfg, zap.New(core))
	require.NoError(t, err)

	frames := logs.FilterMessage("[receiver] frame").All()
	require.Len(t, frames, 2)

	first := frames[0].ContextMap()
	assert.Equal(t, uint64(0), first["index"])
	assert.InDelta(t, 0.01/1164.44*1e6, first["max_uv"], 0.01)
	assert.InDelta(t, 0, first["p2p_uv"], 1e-3)

	second := frames[1].ContextMap()
	assert.InDelta(t, 0.02/1164.44*1e6, second["min_uv"], 0.01)

	assert.Equal(t, 1, logs.FilterMessage("[receiver] stopped").Len())
	assert.Zero(t, logs.FilterMessage("[receiver] features").Len(), "258 samples do not fill the feature window")
}

func TestReceive_Features(t *testing.T) {
	cfg := config.Default()
	enc := frame.Encoder{PayloadSize: cfg.PayloadSize(), PadSize: cfg.PadSize()}
	const freq, volts = 10.0, 0.01

	// four frames whose payloads continue one 10 Hz sine
	conn := &replayConn{}
	for k := 0; k < 4; k++ {
		w := make([]float64, enc.WindowSize())
		for i := 0; i < enc.PayloadSize; i++ {
			n := float64(k*enc.PayloadSize + i)
			w[enc.PadSize+i] = volts * math.Sin(2*math.Pi*freq*n/cfg.Acquisition.SampleRate)
		}
		b, err := enc.Encode(w)
		require.NoError(t, err)
		conn.Write(b)
	}

	core, logs := observer.New(zapcore.InfoLevel)
	err := receive(context.Background(), transport.Attach("replay", conn, nil), cfg, zap.New(core))
	require.NoError(t, err)

	entries := logs.FilterMessage("[receiver] features").All()
	require.Len(t, entries, 1, "430 samples are available after the fourth frame only")

	fields := entries[0].ContextMap()
	uv := volts / cfg.Receiver.CircuitGain * 1e6
	assert.Equal(t, uint64(3), fields["index"])
	assert.InEpsilon(t, uv*uv/2, fields["activity_uv2"], 0.01)
	assert.InEpsilon(t, 2*math.Pi*freq/cfg.Acquisition.SampleRate, fields["mobility"], 0.01)
	assert.InDelta(t, 1, fields["complexity"], 0.02)
	assert.InDelta(t, freq, fields["peak_hz"], cfg.Acquisition.SampleRate/512/2)
}

func TestReceive_Truncated(t *testing.T) {
	cfg := config.Default()
	conn := &replayConn{}
	conn.Write(make([]byte, cfg.FrameBytes()-1))

	core, _ := observer.New(zapcore.InfoLevel)
	err := receive(context.Background(), transport.Attach("replay", conn, nil), cfg, zap.New(core))
	assert.Error(t, err)
}
