package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/itohio/goeeg/pkg/config"
	"github.com/itohio/goeeg/pkg/features"
	"github.com/itohio/goeeg/pkg/frame"
	"github.com/itohio/goeeg/pkg/logger"
	"github.com/itohio/goeeg/pkg/ring"
	"github.com/itohio/goeeg/pkg/transport"
)

const microvolts = 1e6

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyUSB0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		gainFlag   = flag.Float64("gain", 0, "Circuit gain override (0 = use config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Receiver.Port = *portFlag
	}
	if *gainFlag > 0 {
		cfg.Receiver.CircuitGain = *gainFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	l, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	link := transport.NewSerial(cfg.Receiver.Port, cfg.Serial.BaudRate, l)
	if err := link.Open(); err != nil {
		l.Fatal("[receiver] failed to open link", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Closing the link unblocks the pending read.
	go func() {
		<-ctx.Done()
		_ = link.Close()
	}()

	if err := receive(ctx, link, cfg, l); err != nil {
		l.Error("[receiver] exiting", zap.Error(err))
		_ = l.Sync()
		os.Exit(1)
	}
}

// receive reads frames until ctx is cancelled, the stream ends or the link
// fails, and logs the per-frame statistics in microvolts at the electrodes.
func receive(ctx context.Context, r *transport.Serial, cfg *config.Config, l *zap.Logger) error {
	payload := cfg.PayloadSize()
	gain := float32(cfg.Receiver.CircuitGain)

	tracker, err := newFeatureTracker(cfg)
	if err != nil {
		return err
	}

	l.Info("[receiver] waiting for frames",
		zap.String("port", r.Port()),
		zap.Int("samples", payload),
		zap.Int("bytes", cfg.FrameBytes()),
		zap.Float64("gain", cfg.Receiver.CircuitGain),
	)

	for index := uint64(0); ; index++ {
		samples, err := frame.ReadFrame(r, payload)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) || errors.Is(err, io.EOF) {
				l.Info("[receiver] stopped", zap.Uint64("frames", index))
				return nil
			}
			return err
		}

		st := frame.Summarize(samples, gain)
		l.Info("[receiver] frame",
			zap.Uint64("index", index),
			zap.Float32("min_uv", st.Min*microvolts),
			zap.Float32("max_uv", st.Max*microvolts),
			zap.Float32("p2p_uv", st.PeakToPeak*microvolts),
			zap.Float32("mean_abs_uv", st.MeanAbs*microvolts),
		)
		if st.NonFinite > 0 {
			l.Warn("[receiver] non-finite samples in frame", zap.Uint64("index", index), zap.Int("count", st.NonFinite))
		}

		tracker.add(samples, cfg.Receiver.CircuitGain)
		if err := tracker.log(l, index); err != nil {
			l.Debug("[receiver] features unavailable", zap.Error(err), zap.Uint64("index", index))
		}
	}
}

// featureTracker keeps the most recent samples, in microvolts at the
// electrodes, and derives Hjorth parameters and the spectrum from them.
type featureTracker struct {
	window   *ring.Buffer
	analyzer *features.Analyzer
	scratch  []float64
}

func newFeatureTracker(cfg *config.Config) (*featureTracker, error) {
	analyzer, err := features.NewAnalyzer(cfg.Acquisition.SampleRate, cfg.Receiver.SpectrumMaxHz)
	if err != nil {
		return nil, err
	}
	return &featureTracker{
		window:   ring.New(cfg.FeatureWindowSize()),
		analyzer: analyzer,
	}, nil
}

func (f *featureTracker) add(samples []float32, gain float64) {
	for _, v := range samples {
		f.window.Append(float64(v) / gain * microvolts)
	}
}

// log reports features once the window is full.
func (f *featureTracker) log(l *zap.Logger, index uint64) error {
	if f.window.Len() < f.window.Cap() {
		return nil
	}
	f.scratch = f.window.SnapshotTailInto(f.scratch, f.window.Cap())

	h, err := features.ComputeHjorth(f.scratch)
	if err != nil {
		return err
	}
	ps, err := f.analyzer.Spectrum(f.scratch)
	if err != nil {
		return err
	}
	peakHz, peakPower := ps.Peak()

	l.Info("[receiver] features",
		zap.Uint64("index", index),
		zap.Float64("activity_uv2", h.Activity),
		zap.Float64("mobility", h.Mobility),
		zap.Float64("complexity", h.Complexity),
		zap.Float64("peak_hz", peakHz),
		zap.Float64("peak_power", peakPower),
		zap.Float64("alpha_power", ps.BandPower(8, 13)),
	)
	return nil
}
