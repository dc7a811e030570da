// Command indiamap serves the interactive map of India: the tricolour
// national outline, state borders with hover labels, and animated city
// markers linking out to their sites.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tricolour/indiamap/internal/anim"
	"github.com/tricolour/indiamap/internal/boundary"
	"github.com/tricolour/indiamap/internal/clock"
	"github.com/tricolour/indiamap/internal/config"
	"github.com/tricolour/indiamap/internal/dispatcher"
	"github.com/tricolour/indiamap/internal/geo"
	"github.com/tricolour/indiamap/internal/logging"
	"github.com/tricolour/indiamap/internal/markers"
	"github.com/tricolour/indiamap/internal/monitor"
	intOtel "github.com/tricolour/indiamap/internal/otel"
	"github.com/tricolour/indiamap/internal/scene"
	"github.com/tricolour/indiamap/internal/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "indiamap: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	sessionStart := time.Now()

	flags := pflag.NewFlagSet("indiamap", pflag.ContinueOnError)
	configDir := flags.String("config", ".", "directory containing "+config.FileName)
	flags.String("addr", "", "HTTP listen address, overrides server.addr")
	flags.String("log-level", "", "debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := viper.BindPFlag("server.addr", flags.Lookup("addr")); err != nil {
		return err
	}
	if err := viper.BindPFlag("logLevel", flags.Lookup("log-level")); err != nil {
		return err
	}

	// Console logging until the config says where logs go.
	slogManager := logging.NewSlogManager()
	slogManager.Setup(nil, viper.GetString("logLevel"))
	logger := slogManager.Logger()

	if err := config.Load(*configDir); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		logger.Warn("Config file not found, using defaults", "dir", *configDir)
	} else {
		logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	osFs := afero.NewOsFs()
	logsDir := viper.GetString("logsDir")
	logLevel := viper.GetString("logLevel")

	var fileWriter io.Writer
	logFilePath := logging.LogFilePath(logsDir, logging.ServiceName, sessionStart)
	logFile, err := logging.OpenLogFile(osFs, logFilePath)
	if err != nil {
		logger.Error("Failed to create/open log file!", "error", err, "path", logFilePath)
	} else {
		defer logFile.Close()
		fileWriter = logFile
	}

	var accessWriter io.Writer = os.Stdout
	accessFilePath := logging.LogFilePath(logsDir, "access", sessionStart)
	accessFile, err := logging.OpenLogFile(osFs, accessFilePath)
	if err != nil {
		logger.Error("Failed to create/open access log!", "error", err, "path", accessFilePath)
	} else {
		defer accessFile.Close()
		accessWriter = accessFile
	}

	otelCfg := config.GetOTelConfig()
	var metricWriter io.Writer
	if otelCfg.Enabled && otelCfg.Metrics {
		metricsFilePath := logging.LogFilePath(logsDir, "metrics", sessionStart)
		metricsFile, err := logging.OpenLogFile(osFs, metricsFilePath)
		if err != nil {
			logger.Error("Failed to create/open metrics file!", "error", err, "path", metricsFilePath)
		} else {
			defer metricsFile.Close()
			metricWriter = metricsFile
		}
	}
	otelProvider, err := intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      fileWriter,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
		MetricWriter:   metricWriter,
		MetricInterval: otelCfg.MetricsEvery,
	})
	if err != nil {
		logger.Error("Failed to initialize OTel provider", "error", err)
		otelProvider, _ = intOtel.New(intOtel.Config{})
	}

	setupOpts := []logging.SetupOption{
		logging.WithContext(func() []slog.Attr {
			return []slog.Attr{slog.String("uptime", time.Since(sessionStart).Truncate(time.Second).String())}
		}),
	}
	if lp := otelProvider.LoggerProvider(); lp != nil {
		setupOpts = append(setupOpts, logging.WithOTel(lp))
	}
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			logger.Error("Graylog sink disabled", "error", err)
		} else {
			setupOpts = append(setupOpts, logging.WithGraylog(w))
		}
	}

	slogManager.Setup(fileWriter, logLevel, setupOpts...)
	logger = slogManager.Logger()
	slog.SetDefault(logger)
	logger.Info("Logging to file", "path", logFilePath, "access", accessFilePath)

	accessLevel, err := zerolog.ParseLevel(logLevel)
	if err != nil || accessLevel == zerolog.NoLevel {
		accessLevel = zerolog.InfoLevel
	}
	accessLogger := logging.NewAccessLogger(accessWriter).Level(accessLevel)

	d, err := dispatcher.New(logging.NewDispatcherLogger(accessLogger))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	animCfg := config.GetAnimationConfig()
	layout := anim.Layout{Count: animCfg.Frames, Digits: animCfg.Digits, Ext: animCfg.Ext}
	frames, err := anim.Load(osFs, animCfg.Dir, animCfg.BaseURL, layout)
	if err != nil {
		var incomplete *anim.IncompleteAssetError
		if !errors.As(err, &incomplete) {
			return fmt.Errorf("loading animation frames: %w", err)
		}
		logger.Warn("Animation frames incomplete, animated markers stay on the fallback icon",
			"dir", animCfg.Dir, "missing", len(incomplete.Missing), "error", incomplete.Err)
	} else {
		logger.Info("Animation frames loaded", "dir", animCfg.Dir, "frames", frames.Len())
	}

	mapCfg := config.GetMapConfig()
	m := scene.New(scene.View{
		Center:  geo.LatLng{Lat: mapCfg.CenterLat, Lng: mapCfg.CenterLng},
		Zoom:    mapCfg.Zoom,
		MinZoom: mapCfg.MinZoom,
		Width:   mapCfg.Width,
		Height:  mapCfg.Height,
	}, logger)

	serverCfg := config.GetServerConfig()
	frameRate := max(serverCfg.FrameRate, 1)
	sched := clock.NewTickerScheduler(time.Second / time.Duration(frameRate))
	schedCtx, stopSched := context.WithCancel(context.Background())
	defer stopSched()
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(schedCtx)
	}()

	clk, err := clock.New(sched,
		clock.WithLogger(logger),
		clock.WithMeter(otelProvider.Meter("github.com/tricolour/indiamap/internal/clock")),
	)
	if err != nil {
		return fmt.Errorf("creating animation clock: %w", err)
	}

	reg, err := markers.New(m, clk, animCfg.Loop,
		markers.WithLogger(logger),
		markers.WithFallbackIcon(animCfg.FallbackIcon),
	)
	if err != nil {
		return fmt.Errorf("creating marker registry: %w", err)
	}
	markerCfgs, err := config.GetMarkers()
	if err != nil {
		return err
	}
	for _, mc := range markerCfgs {
		desc := markers.Descriptor{Lat: mc.Lat, Lng: mc.Lng, TargetURL: mc.TargetURL, Label: mc.Label, Icon: mc.Icon}
		if mc.Icon == "" {
			desc.Frames = frames
		}
		if _, err := reg.Add(desc); err != nil {
			logger.Error("Skipping marker", "label", mc.Label, "error", err)
		}
	}
	reg.RegisterHandlers(d)
	logger.Info("Markers placed", "count", reg.Len())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	boundaryCfg := config.GetBoundaryConfig()
	loader := boundary.NewLoader(m, boundary.NewClient(boundaryCfg.Timeout, osFs), boundary.Options{
		Padding:      boundaryCfg.Padding,
		MaxBoundsPad: boundaryCfg.MaxBoundsPad,
	}, logger)
	loader.RegisterHandlers(d)
	go func() {
		if err := loader.LoadAll(ctx, boundaryCfg.CountryURL, boundaryCfg.StatesURL); err != nil {
			logger.Warn("Boundary layers incomplete", "error", err)
		}
	}()

	hub := server.NewHub(logger, serverCfg.AllowedOrigins)
	monitorCfg := config.GetMonitorConfig()
	mon := monitor.NewService(monitor.Dependencies{
		Clock:      clk,
		Markers:    reg,
		Boundary:   loader,
		Stream:     hub,
		Fs:         osFs,
		StatusFile: monitorCfg.StatusFile,
		Interval:   monitorCfg.Interval,
		Logger:     logger,
	})
	mon.Start()

	srv, err := server.New(server.Config{
		Addr:           serverCfg.Addr,
		AllowedOrigins: serverCfg.AllowedOrigins,
	}, server.Deps{
		Scene:      m,
		Markers:    reg,
		Boundary:   loader,
		Dispatcher: d,
		Hub:        hub,
		Status:     mon,
		Frames:     osFs,
		FramesDir:  animCfg.Dir,
		FramesPath: animCfg.BaseURL,
		Access:     accessLogger,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("serving HTTP: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown incomplete", "error", err)
	}
	mon.Stop()
	// no tick may run while markers are torn down
	stopSched()
	<-schedDone
	reg.Teardown()
	d.Close()
	logger.Info("Stopped", "uptime", time.Since(sessionStart).Truncate(time.Second).String())

	if err := slogManager.Flush(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "flushing logs: %v\n", err)
	}
	if err := otelProvider.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "stopping telemetry: %v\n", err)
	}
	return serveErr
}
