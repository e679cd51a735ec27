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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"navtelemetry/internal/acquisition"
	"navtelemetry/internal/codec"
	"navtelemetry/internal/config"
	"navtelemetry/internal/logging"
	"navtelemetry/internal/metrics"
	"navtelemetry/internal/mqtt"
	"navtelemetry/internal/platform"
	"navtelemetry/internal/publisher"
	"navtelemetry/internal/sensor"
	"navtelemetry/internal/storage"
)

// Version is set at build time via -ldflags "-X main.Version=vX.Y.Z"
var Version = "dev"

const name = "navtelemetry"

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	opts, err := config.ParseOptions(name, args, stderr)
	if errors.Is(err, config.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		config.NewFlagSet(name, stderr).Usage()
		return 1
	}

	level := new(slog.LevelVar)
	level.Set(opts.LogLevel())
	logger := logging.New(stderr, level)

	cfg, err := config.Load(opts.ConfigPath())
	if err != nil {
		logging.Critical(logger, "Failed to load configuration", "error", err)
		return 1
	}
	logger.Info("Configuration loaded", "version", Version, "config", cfg.String())

	var axes *codec.AxisMap
	if path := opts.RCAxesPath(); path != "" {
		m, err := codec.LoadAxisMap(path)
		if err != nil {
			logging.Critical(logger, "Failed to load RC axis map", "path", path, "error", err)
			return 1
		}
		axes = &m
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SkipAutopilotCheck() {
		logger.Warn("Autopilot check skipped")
	} else if err := platform.CheckAutopilot(ctx, nil); err != nil {
		if errors.Is(err, platform.ErrAutopilotRunning) {
			logging.Critical(logger, "Stop the autopilot before reading sensors", "error", err)
			return 1
		}
		logger.Warn("Autopilot check failed", "error", err)
	}

	// Registry stays an untyped nil when the state file cannot be opened.
	var registry storage.Registry
	if bolt, err := storage.NewBoltRegistry(cfg.StateDB()); err != nil {
		logger.Warn("Topic registry unavailable", "path", cfg.StateDB(), "error", err)
	} else {
		registry = bolt
		defer bolt.Close()
	}

	session, err := mqtt.Open(mqtt.Config{
		Broker:    cfg.MQTTBroker(),
		ClientID:  cfg.MQTTClientID(),
		Username:  cfg.MQTTUsername(),
		Password:  cfg.MQTTPassword(),
		UseTLS:    cfg.MQTTUseTLS(),
		QoS:       cfg.MQTTQoS(),
		BaseTopic: cfg.BaseTopic(),
	}, registry, logger)

	var pubSession publisher.Session
	if err != nil {
		logger.Error("Failed to open messaging session", "broker", cfg.MQTTBroker(), "error", err)
	} else {
		pubSession = session
		defer session.Close()

		if topic := cfg.LogTopic(); topic != "" {
			logger = logging.New(io.MultiWriter(stderr, session.LogWriter(topic)), level)
			logger.Info("Forwarding logs", "topic", topic)
		}
	}

	cache := publisher.New(pubSession, logger)
	defer cache.Close()
	if !cache.Ready() {
		logging.Critical(logger, "Publisher not ready, exiting", "error", acquisition.ErrPublisherNotReady)
		return 1
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	cache.SetObserver(m)

	if addr := opts.MetricsAddr(cfg.MetricsAddr()); addr != "" {
		srv := metrics.NewServer(addr, reg, cache.Ready, logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	board := sensor.NewBoard(ctx, sensor.BoardConfig{
		IIORoot:    cfg.IIORoot(),
		RCIORoot:   cfg.RCIORoot(),
		GPSDevice:  cfg.GPSDevice(),
		RCChannels: opts.RCChannels(),

		IMUSettle:       sensor.DefaultIMUSettle,
		BarometerSettle: sensor.DefaultBarometerSettle,
	}, logger)
	defer board.Close()

	for _, p := range board.Ports() {
		logger.Info("Sensor port", "port", p.Describe(), "available", p.Available())
	}

	runner := &acquisition.Runner{
		Ports:     board.Ports(),
		Publisher: cache,
		BaseTopic: cfg.BaseTopic(),
		Interval:  opts.Interval(),
		Once:      opts.Once(),
		Axes:      axes,
		Logger:    logger,
		Metrics:   m,
	}
	if err := runner.Run(ctx); err != nil {
		logging.Critical(logger, "Acquisition failed", "error", err)
		return 1
	}
	return 0
}
