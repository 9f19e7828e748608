// Package pipeline wires acquisition and processing together: the acquisition
// loop fills the shared ring buffer while the processor turns padded windows
// into frames on the transport.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/itohio/goeeg/pkg/acquire"
	"github.com/itohio/goeeg/pkg/adc"
	"github.com/itohio/goeeg/pkg/clock"
	"github.com/itohio/goeeg/pkg/condition"
	"github.com/itohio/goeeg/pkg/config"
	"github.com/itohio/goeeg/pkg/frame"
	"github.com/itohio/goeeg/pkg/logger"
	"github.com/itohio/goeeg/pkg/ring"
	"github.com/itohio/goeeg/pkg/window"
)

// Pipeline runs the acquisition loop and the processor concurrently. They
// share only the ring buffer.
type Pipeline struct {
	Buffer    *ring.Buffer
	Acquirer  *acquire.Loop
	Processor *Processor

	stepDelay time.Duration
	logger    *zap.Logger
}

// New builds a pipeline from cfg reading from r and writing frames to sink.
func New(cfg *config.Config, r adc.Reader, sink io.Writer, l *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l = logger.OrNop(l)

	buf := ring.New(cfg.BufferCapacity())

	ext, err := window.NewExtractor(cfg.PayloadSize(), cfg.PadSize())
	if err != nil {
		return nil, fmt.Errorf("failed to create window extractor: %w", err)
	}

	cond, err := condition.New(condition.Params{
		SampleRate: cfg.Acquisition.SampleRate,
		LowCutoff:  cfg.Processing.LowCutoff,
		HighCutoff: cfg.Processing.HighCutoff,
		Order:      cfg.Processing.FilterOrder,
		Threshold:  cfg.Processing.ClipThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conditioner: %w", err)
	}

	enc := frame.Encoder{PayloadSize: cfg.PayloadSize(), PadSize: cfg.PadSize()}
	proc, err := NewProcessor(buf, ext, cond, enc, sink, l)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Buffer:    buf,
		Acquirer:  acquire.New(clock.New(cfg.SampleInterval()), r, buf, l),
		Processor: proc,
		stepDelay: cfg.Processing.StepDelay,
		logger:    l,
	}, nil
}

// Run starts both activities and blocks until ctx is cancelled or one of them
// fails. The first failure cancels the other activity and is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.Acquirer.Run(ctx)
	})
	g.Go(func() error {
		return p.Processor.Run(ctx, p.stepDelay)
	})

	err := g.Wait()
	buffered, total := p.Buffer.Stat()
	p.logger.Info("[pipeline] stopped",
		zap.Uint64("samples", total),
		zap.Int("buffered", buffered),
		zap.Uint64("frames", p.Processor.Frames()),
		zap.Error(err),
	)
	return err
}
