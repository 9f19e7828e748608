package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/itohio/goeeg/pkg/adc"
	"github.com/itohio/goeeg/pkg/config"
	"github.com/itohio/goeeg/pkg/logger"
	"github.com/itohio/goeeg/pkg/pipeline"
	"github.com/itohio/goeeg/pkg/transport"
)

func main() {
	var (
		portFlag        = flag.String("p", "", "Frame link serial port override (e.g., /dev/ttyUSB0)")
		adcPortFlag     = flag.String("adc-port", "", "ADC bridge serial port override (implies -adc serial)")
		configFlag      = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag        = flag.Bool("mock", false, "Use the synthetic ADC instead of the configured source")
		writeConfigFlag = flag.Bool("write-config", false, "Write the effective configuration to -config and exit")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Command line overrides
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *adcPortFlag != "" {
		cfg.ADC.Source = "serial"
		cfg.ADC.Port = *adcPortFlag
	}
	if *mockFlag {
		cfg.ADC.Source = "mock"
	}

	if *writeConfigFlag {
		if err := cfg.Save(*configFlag); err != nil {
			log.Fatalf("Failed to save configuration: %v", err)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	l, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Error("[eegpi] exiting", zap.Error(err))
		_ = l.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l *zap.Logger) error {
	device, err := newDevice(cfg, l)
	if err != nil {
		return err
	}
	if err := device.Connect(); err != nil {
		return fmt.Errorf("failed to connect ADC: %w", err)
	}
	defer device.Close()

	link := transport.NewSerial(cfg.Serial.Port, cfg.Serial.BaudRate, l)
	if err := link.Open(); err != nil {
		return err
	}
	defer link.Close()

	p, err := pipeline.New(cfg, device, link, l)
	if err != nil {
		return err
	}

	p.Processor.OnFrame(func(info pipeline.FrameInfo) {
		if info.Saturated || info.Index%100 == 0 {
			l.Info("[eegpi] frame sent",
				zap.Uint64("index", info.Index),
				zap.Uint64("seq", info.Seq),
				zap.Int("corrected", info.Corrected),
				zap.Bool("saturated", info.Saturated),
				zap.Uint64("bytes", link.Written()),
			)
		}
	})

	l.Info("[eegpi] running",
		zap.String("adc", cfg.ADC.Source),
		zap.String("port", cfg.Serial.Port),
		zap.Float64("rate", cfg.Acquisition.SampleRate),
		zap.Int("payload", cfg.PayloadSize()),
		zap.Int("pad", cfg.PadSize()),
		zap.Int("frame_bytes", cfg.FrameBytes()),
	)

	err = p.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newDevice(cfg *config.Config, l *zap.Logger) (adc.Device, error) {
	switch cfg.ADC.Source {
	case "mock":
		return adc.NewMock(cfg.Mock, cfg.Acquisition.SampleRate, cfg.ADC.FullScale), nil
	case "serial":
		return adc.NewSerial(cfg.ADC.Port, cfg.ADC.BaudRate, l), nil
	default:
		return nil, fmt.Errorf("%w: unknown ADC source %q", config.ErrInvalid, cfg.ADC.Source)
	}
}
