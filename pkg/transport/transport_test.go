package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/itohio/goeeg/pkg/frame"
)

// fakeConn accepts at most chunk bytes per Write and fails once failAfter
// bytes have been written (if failAfter > 0).
type fakeConn struct {
	bytes.Buffer
	chunk     int
	failAfter int
	writes    int
	closed    bool
}

func (c *fakeConn) Write(b []byte) (int, error) {
	c.writes++
	if c.failAfter > 0 && c.Len() >= c.failAfter {
		return 0, errors.New("device unplugged")
	}
	if c.chunk > 0 && len(b) > c.chunk {
		b = b[:c.chunk]
	}
	return c.Buffer.Write(b)
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type stuckConn struct{ fakeConn }

func (c *stuckConn) Write([]byte) (int, error) { return 0, nil }

func TestWrite_ShortWrites(t *testing.T) {
	conn := &fakeConn{chunk: 100}
	link := Attach("test", conn, zaptest.NewLogger(t))

	payload := bytes.Repeat([]byte{0xAB}, 516)
	n, err := link.Write(payload)

	require.NoError(t, err)
	assert.Equal(t, 516, n)
	assert.Equal(t, payload, conn.Bytes())
	assert.Equal(t, 6, conn.writes)
	assert.Equal(t, uint64(516), link.Written())
}

func TestWrite_Failure(t *testing.T) {
	conn := &fakeConn{chunk: 100, failAfter: 200}
	link := Attach("test", conn, zaptest.NewLogger(t))

	n, err := link.Write(make([]byte, 516))

	require.Error(t, err)
	assert.Equal(t, 200, n)

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "write", terr.Op)
	assert.Equal(t, "test", terr.Port)
	assert.Contains(t, err.Error(), "device unplugged")
	assert.Zero(t, link.Written())
}

func TestWrite_NoProgress(t *testing.T) {
	link := Attach("test", &stuckConn{}, nil)

	_, err := link.Write([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, io.ErrShortWrite))
}

func TestWrite_Closed(t *testing.T) {
	conn := &fakeConn{}
	link := Attach("test", conn, nil)
	require.NoError(t, link.Close())
	assert.True(t, conn.closed)
	require.NoError(t, link.Close())

	_, err := link.Write([]byte{1})
	assert.True(t, errors.Is(err, ErrClosed))

	_, err = link.Read(make([]byte, 1))
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestOpen_MissingPort(t *testing.T) {
	link := NewSerial("/dev/does-not-exist-eeg", 0, zaptest.NewLogger(t))

	err := link.Open()
	require.Error(t, err)

	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "open", terr.Op)
}

func TestReadFrame_OverLink(t *testing.T) {
	enc := frame.Encoder{PayloadSize: 3, PadSize: 1}
	b, err := enc.Encode([]float64{0, 0.5, -0.5, 0.25, 0})
	require.NoError(t, err)

	conn := &fakeConn{chunk: 5}
	link := Attach("loop", conn, nil)
	_, err = link.Write(b)
	require.NoError(t, err)

	got, err := frame.ReadFrame(link, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5, 0.25}, got)

	_, err = frame.ReadFrame(link, 3)
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReadFrame_TruncatedOverLink(t *testing.T) {
	conn := &fakeConn{}
	link := Attach("loop", conn, nil)
	_, err := link.Write(make([]byte, 7))
	require.NoError(t, err)

	_, err = frame.ReadFrame(link, 2)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}
