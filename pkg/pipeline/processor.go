package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/goeeg/pkg/condition"
	"github.com/itohio/goeeg/pkg/frame"
	"github.com/itohio/goeeg/pkg/logger"
	"github.com/itohio/goeeg/pkg/window"
)

// FrameInfo describes one emitted frame.
type FrameInfo struct {
	Index      uint64    // frames emitted before this one
	Seq        uint64    // buffer append count when the window was taken
	Raw        []float64 // raw padded window
	Payload    []float64 // conditioned interior, as encoded
	Frame      []byte    // encoded frame
	Corrected  int
	Saturated  bool
	Carried    bool
	Contiguous bool
	Gap        uint64 // samples lost since the previous window
}

// Processor is the processing activity. Each cycle extracts a window,
// conditions it, encodes the interior and writes the frame to the sink.
type Processor struct {
	src         window.Source
	extractor   *window.Extractor
	conditioner *condition.Conditioner
	encoder     frame.Encoder
	sink        io.Writer
	logger      *zap.Logger

	frameBuf []byte
	frames   uint64

	cbMu      sync.RWMutex
	callbacks []func(FrameInfo)
}

// NewProcessor creates a processor. The extractor and encoder must agree on
// payload and pad sizes.
func NewProcessor(src window.Source, ext *window.Extractor, cond *condition.Conditioner, enc frame.Encoder, sink io.Writer, l *zap.Logger) (*Processor, error) {
	if ext.PayloadSize() != enc.PayloadSize || ext.PadSize() != enc.PadSize {
		return nil, fmt.Errorf("extractor %d+2*%d does not match encoder %d+2*%d",
			ext.PayloadSize(), ext.PadSize(), enc.PayloadSize, enc.PadSize)
	}
	return &Processor{
		src:         src,
		extractor:   ext,
		conditioner: cond,
		encoder:     enc,
		sink:        sink,
		logger:      logger.OrNop(l),
	}, nil
}

// Frames returns the number of frames written.
func (p *Processor) Frames() uint64 {
	return p.frames
}

// OnFrame registers a callback invoked after every written frame. Callbacks
// run on the processing goroutine and receive slices they may keep.
func (p *Processor) OnFrame(callback func(FrameInfo)) {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()
	p.callbacks = append(p.callbacks, callback)
}

// Cycle runs one processing cycle. It reports whether a frame was written.
// Too little buffered data is not an error: Cycle returns false, nil.
func (p *Processor) Cycle() (bool, error) {
	carried := p.extractor.HasCarry()
	w, err := p.extractor.Next(p.src)
	if errors.Is(err, window.ErrInsufficientData) {
		if carried {
			p.logger.Warn("[processor] carried pad dropped, restarting from the buffer", zap.Uint64("frames", p.frames))
		}
		p.logger.Debug("[processor] waiting for data", zap.Int("window", p.extractor.Size()))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to extract window: %w", err)
	}

	payload, pad := p.extractor.PayloadSize(), p.extractor.PadSize()
	gap := w.Gap(payload, pad)
	if gap > 0 {
		p.logger.Warn("[processor] samples lost between cycles",
			zap.Uint64("lost", gap),
			zap.Uint64("fresh", w.Fresh),
			zap.Uint64("seq", w.Seq),
		)
	} else if overlap := w.Overlap(payload, pad); overlap > 0 {
		p.logger.Debug("[processor] window overlaps the previous one",
			zap.Uint64("overlap", overlap),
			zap.Uint64("fresh", w.Fresh),
		)
	}

	res := p.conditioner.Condition(w.Samples)
	if res.Saturated {
		p.logger.Warn("[processor] window fully saturated, sending zeros", zap.Uint64("seq", w.Seq))
	} else if res.Corrected > 0 {
		p.logger.Debug("[processor] interpolated artifacts", zap.Int("samples", res.Corrected), zap.Uint64("seq", w.Seq))
	}

	p.frameBuf, err = p.encoder.EncodeInto(p.frameBuf, res.Samples)
	if err != nil {
		return false, fmt.Errorf("failed to encode frame: %w", err)
	}

	if _, err := p.sink.Write(p.frameBuf); err != nil {
		return false, fmt.Errorf("failed to send frame %d: %w", p.frames, err)
	}

	info := FrameInfo{
		Index:      p.frames,
		Seq:        w.Seq,
		Raw:        w.Samples,
		Payload:    res.Samples[p.encoder.PadSize : p.encoder.PadSize+p.encoder.PayloadSize],
		Corrected:  res.Corrected,
		Saturated:  res.Saturated,
		Carried:    w.Carried,
		Contiguous: w.Contiguous(payload, pad),
		Gap:        gap,
	}
	p.frames++
	p.notifyCallbacks(info)

	return true, nil
}

// notifyCallbacks hands info to every callback. The frame bytes are copied
// since the encode buffer is reused by the next cycle.
func (p *Processor) notifyCallbacks(info FrameInfo) {
	p.cbMu.RLock()
	callbacks := make([]func(FrameInfo), len(p.callbacks))
	copy(callbacks, p.callbacks)
	p.cbMu.RUnlock()

	if len(callbacks) == 0 {
		return
	}

	info.Frame = append([]byte(nil), p.frameBuf...)
	for _, cb := range callbacks {
		if cb != nil {
			cb(info)
		}
	}
}

// Run runs cycles separated by delay until ctx is cancelled or a cycle fails.
// Cancellation returns nil.
func (p *Processor) Run(ctx context.Context, delay time.Duration) error {
	p.logger.Info("[processor] started",
		zap.Int("payload", p.encoder.PayloadSize),
		zap.Int("pad", p.encoder.PadSize),
		zap.Duration("step", delay),
		zap.Int("filter_sections", len(p.conditioner.Filter().Sections())),
		zap.Float64("clip_threshold", p.conditioner.Threshold()),
	)

	for {
		if _, err := p.Cycle(); err != nil {
			p.logger.Error("[processor] stopped on error", zap.Error(err), zap.Uint64("frames", p.frames))
			return err
		}

		select {
		case <-ctx.Done():
			p.logger.Info("[processor] stopped", zap.Uint64("frames", p.frames))
			return nil
		case <-time.After(delay):
		}
	}
}
