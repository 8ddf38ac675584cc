package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gnsstec/internal/archive"
	"gnsstec/internal/bucket"
	"gnsstec/internal/capture"
	"gnsstec/internal/config"
	"gnsstec/internal/convert"
	"gnsstec/internal/logging"
	"gnsstec/internal/nmea"
	"gnsstec/internal/preflight"
	"gnsstec/internal/queue"
	"gnsstec/internal/serialport"
	"gnsstec/internal/ubx"
	"gnsstec/internal/worker"
)

// Build assembles a daemon from configuration: preflight checks, converter
// resolution, the serial device, receiver configuration push, and the
// capture/conversion runners. Failures here are fatal for startup.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, result := range failed {
			details = append(details, result.Name+": "+result.Detail)
		}
		return nil, fmt.Errorf("preflight checks failed: %s", strings.Join(details, "; "))
	}

	primary, fallback, err := ResolveConverters(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := queue.Open(cfg.QueueDBPath())
	if err != nil {
		return nil, err
	}

	archiver := archive.New(archive.Options{
		Root:             cfg.Paths.ArchiveDir,
		KeepRaw:          cfg.Conversion.KeepRaw,
		CompressRetained: cfg.Conversion.CompressRetained,
	}, logger)

	conversionWorker := worker.New(store, primary, fallback, archiver, worker.Options{
		DataDir:        cfg.Paths.DataDir,
		WorkspaceRoot:  cfg.WorkspaceRoot(),
		PollInterval:   time.Duration(cfg.Conversion.PollIntervalSecs) * time.Second,
		ShiftHours:     cfg.Conversion.ShiftHours,
		MaxDaysBack:    cfg.Conversion.MaxDaysBack,
		ConvertOnStart: cfg.Conversion.ConvertOnStart,
		SkipNav:        cfg.Converter.SkipNav,
	}, logger)

	ingest, err := newIngestRunner(cfg, logger, func(hour bucket.Hour, _ string) {
		if err := conversionWorker.Enqueue(context.Background(), hour); err != nil {
			logging.NewComponentLogger(logger, "daemon").Error("enqueue closed hour",
				logging.String(logging.FieldHour, hour.Key()), logging.Error(err))
		}
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return New(cfg, store, ingest, conversionWorker, logger)
}

// BuildCapture assembles a capture-only daemon: receiver configuration,
// ingestion, and rotation bookkeeping, with no conversion worker and no
// converter requirement. Closed hours are still enqueued so a later run or
// convert invocation picks them up.
func BuildCapture(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, result := range failed {
			details = append(details, result.Name+": "+result.Detail)
		}
		return nil, fmt.Errorf("preflight checks failed: %s", strings.Join(details, "; "))
	}

	store, err := queue.Open(cfg.QueueDBPath())
	if err != nil {
		return nil, err
	}

	ingest, err := newIngestRunner(cfg, logger, func(hour bucket.Hour, _ string) {
		sources := countHourRawFiles(cfg.Paths.DataDir, hour)
		if _, _, err := store.Enqueue(context.Background(), hour.Key(), sources); err != nil {
			logging.NewComponentLogger(logger, "daemon").Error("enqueue closed hour",
				logging.String(logging.FieldHour, hour.Key()), logging.Error(err))
		}
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return New(cfg, store, ingest, nil, logger)
}

// newIngestRunner opens the serial device, pushes the receiver configuration,
// and wraps the capture ingestor as a daemon runner owning the port.
func newIngestRunner(cfg *config.Config, logger *slog.Logger, onRotate capture.RotateFunc) (Runner, error) {
	port, err := serialport.Open(
		cfg.Serial.Port,
		cfg.Serial.BaudRate,
		time.Duration(cfg.Serial.ReadTimeoutMS)*time.Millisecond,
	)
	if err != nil {
		return nil, err
	}

	if cfg.Serial.CommandFile != "" {
		if err := pushReceiverCommands(cfg, port, logger); err != nil {
			port.Close()
			return nil, err
		}
	}

	reportFormat, err := nmea.ParseFormat(cfg.NMEA.ReportFormat)
	if err != nil {
		port.Close()
		return nil, err
	}
	monitor := nmea.NewMonitor(
		time.Duration(cfg.NMEA.ReportIntervalSecs)*time.Second,
		reportFormat,
		logger,
	)

	ingestor := capture.NewIngestor(port, capture.IngestorOptions{
		DataDir:         cfg.Paths.DataDir,
		ReadBufferBytes: cfg.Serial.ReadBufferBytes,
		FlushInterval:   time.Duration(cfg.Capture.FlushIntervalSecs) * time.Second,
		StatsInterval:   time.Duration(cfg.Capture.StatsIntervalSecs) * time.Second,
		Monitor:         monitor,
		OnRotate:        onRotate,
		Logger:          logger,
	})

	return RunnerFunc(func(ctx context.Context) error {
		defer port.Close()
		return ingestor.Run(ctx)
	}), nil
}

func countHourRawFiles(dataDir string, hour bucket.Hour) int {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() && hour.MatchesCapture(entry.Name()) {
			count++
		}
	}
	return count
}

// ResolveConverters probes the observation and navigation converters and
// reports which ones are usable.
func ResolveConverters(ctx context.Context, cfg *config.Config, logger *slog.Logger) (convert.Converter, convert.Converter, error) {
	primary := convert.NewUbx2Rinex(convert.Ubx2RinexOptions{
		BinaryPath:   cfg.Converter.PrimaryPath,
		Station:      cfg.Station.Name,
		Country:      cfg.Station.Country,
		ReceiverType: cfg.Station.ReceiverType,
		AntennaType:  cfg.Station.AntennaType,
		Observer:     cfg.Station.Observer,
		Sampling:     cfg.Converter.Sampling,
		Crinex:       cfg.Converter.Crinex,
		Gzip:         cfg.Converter.Gzip,
		SkipNav:      cfg.Converter.SkipNav,
	})
	fallback := convert.NewConvbin(cfg.Converter.FallbackPath, nil)
	return worker.Resolve(ctx, primary, fallback, logging.NewComponentLogger(logger, "daemon"))
}

func pushReceiverCommands(cfg *config.Config, port serialport.Port, logger *slog.Logger) error {
	packets, err := ubx.ParseCommandFile(cfg.Serial.CommandFile)
	if err != nil {
		return err
	}
	gap := time.Duration(cfg.Serial.CommandGapMS) * time.Millisecond
	if err := ubx.Send(port, packets, gap); err != nil {
		return err
	}
	logging.NewComponentLogger(logger, "daemon").Info("receiver configured",
		logging.Int("commands", len(packets)),
		logging.String(logging.FieldPath, cfg.Serial.CommandFile))
	return nil
}
