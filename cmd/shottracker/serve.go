package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shottracker/shottracker/internal/aim"
	"github.com/shottracker/shottracker/internal/config"
	"github.com/shottracker/shottracker/internal/dispatcher"
	"github.com/shottracker/shottracker/internal/influx"
	"github.com/shottracker/shottracker/internal/logging"
	"github.com/shottracker/shottracker/internal/monitor"
	intOtel "github.com/shottracker/shottracker/internal/otel"
	"github.com/shottracker/shottracker/internal/reticle"
	"github.com/shottracker/shottracker/internal/server"
	"github.com/shottracker/shottracker/internal/storage"
	"github.com/shottracker/shottracker/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// service holds everything serve starts, in the order it is torn down.
type service struct {
	slogManager *logging.SlogManager
	otel        *intOtel.Provider
	logFile     *os.File
	log         *slog.Logger
	dbLog       zerolog.Logger

	backend  storage.Backend
	influx   *influx.Manager
	dispatch *dispatcher.Dispatcher
	worker   *worker.Manager
	monitor  *monitor.Service
	server   *server.Server
}

func (c *cli) serve(ctx context.Context, args []string) error {
	fs := c.newFlagSet("serve")
	fs.String("server.address", "", "listen address")
	fs.String("storage.type", "", "storage backend: memory, sqlite or postgres")
	fs.String("storage.sqlite.path", "", "SQLite file, empty for in-memory")
	fs.String("logsDir", "", "log directory, empty logs to stdout")
	if err := c.parse(fs, args); err != nil {
		return err
	}

	svc, err := startService(ctx, c.stdout)
	if err != nil {
		return err
	}
	defer svc.close()

	return svc.server.ListenAndServe(ctx, config.GetString("server.address"))
}

func startService(ctx context.Context, console io.Writer) (svc *service, err error) {
	s := &service{slogManager: logging.NewSlogManager()}
	defer func() {
		if err != nil {
			s.close()
		}
	}()
	svc = s

	if err := svc.setupLogging(ctx, console); err != nil {
		return nil, err
	}

	svc.backend, err = createStorageBackend(config.GetStorageConfig(), svc.dbLog, svc.log)
	if err != nil {
		return nil, err
	}
	if err := svc.backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	var (
		shotSink   worker.ShotSink
		statusSink monitor.StatusSink
	)
	if config.GetBool("influx.enabled") {
		svc.influx = influx.NewManager(svc.dbLog, config.GetInfluxConfig())
		if err := svc.influx.Connect(ctx); err != nil {
			svc.log.Warn("InfluxDB unavailable, shot metrics disabled", "error", err)
			_ = svc.influx.Close()
			svc.influx = nil
		} else {
			shotSink, statusSink = svc.influx, svc.influx
		}
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(svc.log))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	svc.dispatch = d

	svc.worker = worker.NewManager(worker.Dependencies{
		Backend:       svc.backend,
		Sink:          shotSink,
		Logger:        svc.log,
		FlushInterval: config.GetDuration("worker.flushInterval"),
		QueueLimit:    config.GetInt("worker.queueLimit"),
	})
	svc.worker.RegisterHandlers(d)
	svc.worker.Start()

	svc.monitor = monitor.NewService(monitor.Dependencies{
		Worker:     svc.worker,
		Sink:       statusSink,
		Logger:     svc.log,
		Version:    Version,
		Storage:    config.GetStorageConfig().Type,
		StatusPath: config.GetString("monitor.statusPath"),
		Interval:   config.GetDuration("monitor.interval"),
	})
	svc.monitor.Start()

	projector := reticle.New(reticle.Config(config.GetReticleConfig()))
	svc.server, err = server.New(server.Dependencies{
		Backend:    svc.backend,
		Solver:     aim.NewSolver(aim.Local(), projector),
		Dispatcher: d,
		Logger:     svc.log,
		Status:     svc.monitor,
	})
	if err != nil {
		return nil, err
	}

	svc.log.Info("Service started",
		"version", Version,
		"storage", config.GetStorageConfig().Type,
		"influx", svc.influx != nil,
	)
	return svc, nil
}

// setupLogging logs to a session file when logsDir is set, otherwise to
// the console. OTel and Graylog sinks are added when enabled.
func (svc *service) setupLogging(ctx context.Context, console io.Writer) error {
	level := config.GetString("logLevel")
	var out io.Writer = console

	if dir := config.GetString("logsDir"); dir != "" {
		f, err := logging.OpenLogFile(dir, AppName, time.Now())
		if err != nil {
			return err
		}
		svc.logFile = f
		out = f
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var exportTo io.Writer
		if svc.logFile != nil {
			exportTo = svc.logFile
		}
		p, err := intOtel.New(ctx, intOtel.Config{
			Enabled:      true,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    exportTo,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize OTel provider: %v\n", err)
		} else {
			svc.otel = p
		}
	}

	opts := logging.Options{
		File:        out,
		Level:       level,
		ServiceName: otelCfg.ServiceName,
		Context:     logging.RequestIDProvider,
	}
	if svc.otel != nil {
		opts.LoggerProvider = svc.otel.LoggerProvider()
	}
	if config.GetBool("graylog.enabled") {
		opts.GraylogAddress = config.GetString("graylog.address")
	}
	if err := svc.slogManager.Setup(opts); err != nil {
		return err
	}
	svc.log = svc.slogManager.Logger()
	svc.dbLog = logging.NewZerolog(out, level)
	return nil
}

func (svc *service) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log := svc.log
	if log == nil {
		log = slog.Default()
	}

	var errs []error
	if svc.monitor != nil {
		svc.monitor.Stop()
	}
	// Queued record_shot events reach the worker before its final flush.
	if svc.dispatch != nil {
		errs = append(errs, svc.dispatch.Close(ctx))
	}
	if svc.worker != nil {
		errs = append(errs, svc.worker.Stop(ctx))
	}
	if svc.influx != nil {
		errs = append(errs, svc.influx.Close())
	}
	if svc.backend != nil {
		errs = append(errs, svc.backend.Close())
	}
	if err := errors.Join(errs...); err != nil {
		log.Error("Error during shutdown", "error", err)
	} else {
		log.Info("Service stopped")
	}

	_ = svc.slogManager.Flush(ctx)
	_ = svc.slogManager.Close()
	if svc.otel != nil {
		_ = svc.otel.Shutdown(ctx)
	}
	if svc.logFile != nil {
		_ = svc.logFile.Close()
	}
}
