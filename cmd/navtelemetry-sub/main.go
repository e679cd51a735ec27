package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"navtelemetry/internal/auth"
	"navtelemetry/internal/codec"
	"navtelemetry/internal/config"
	"navtelemetry/internal/logging"
	"navtelemetry/internal/monitor"
	"navtelemetry/internal/mqtt"
)

const name = "navtelemetry-sub"

type subOptions struct {
	configPath string
	logLevel   slog.Level
	topic      string
	refresh    time.Duration
	noClear    bool
	noPager    bool
	serve      bool
	mintToken  string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseOptions(args []string, stderr io.Writer) (*subOptions, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.String("config", config.DefaultConfigFile, "Path to the .env configuration file")
	fs.String("log-level", "WARNING", "Log verbosity (DEBUG/INFO/WARNING/ERROR/CRITICAL)")
	fs.String("topic", "", "Topic filter (default <base topic>/#)")
	fs.Duration("refresh", time.Second, "Pager redraw period")
	fs.Bool("no-clear", false, "Do not clear the terminal between pages")
	fs.Bool("no-pager", false, "Do not print the pager")
	fs.Bool("serve", false, "Serve the live monitor on "+config.EnvMonitorAddr)
	fs.String("mint-token", "", "Print a monitor access token for this viewer and exit")
	fs.BoolP("help", "h", false, "Show this message")
	fs.SortFlags = false

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if help, _ := fs.GetBool("help"); help {
		fs.Usage()
		return nil, pflag.ErrHelp
	}

	o := &subOptions{}
	o.configPath, _ = fs.GetString("config")
	o.topic, _ = fs.GetString("topic")
	o.refresh, _ = fs.GetDuration("refresh")
	o.noClear, _ = fs.GetBool("no-clear")
	o.noPager, _ = fs.GetBool("no-pager")
	o.serve, _ = fs.GetBool("serve")
	o.mintToken, _ = fs.GetString("mint-token")

	levelName, _ := fs.GetString("log-level")
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidLogLevel, err)
	}
	o.logLevel = level

	if o.refresh <= 0 {
		return nil, fmt.Errorf("%w: refresh must be positive", config.ErrInvalidConfig)
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	level := new(slog.LevelVar)
	level.Set(opts.logLevel)
	logger := logging.New(stderr, level)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		logging.Critical(logger, "Failed to load configuration", "error", err)
		return 1
	}

	jwtManager := auth.NewJWTManager(cfg.MonitorJWTSecret(), cfg.MonitorJWTExpiration())

	if opts.mintToken != "" {
		if cfg.MonitorJWTSecret() == "" {
			logging.Critical(logger, "Minting tokens requires "+config.EnvMonitorJWTSecret)
			return 1
		}
		token, err := jwtManager.GenerateToken(opts.mintToken, auth.ScopeRead)
		if err != nil {
			logging.Critical(logger, "Failed to mint token", "error", err)
			return 1
		}
		fmt.Fprintln(stdout, token)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientID := cfg.MQTTClientID()
	if clientID != "" {
		clientID += "-sub"
	}
	client, err := mqtt.New(mqtt.Config{
		Broker:   cfg.MQTTBroker(),
		ClientID: clientID,
		Username: cfg.MQTTUsername(),
		Password: cfg.MQTTPassword(),
		UseTLS:   cfg.MQTTUseTLS(),
		QoS:      cfg.MQTTQoS(),
	}, logger)
	if err == nil {
		err = client.Connect()
	}
	if err != nil {
		logging.Critical(logger, "Failed to open messaging session", "broker", cfg.MQTTBroker(), "error", err)
		return 1
	}
	defer client.Disconnect()

	var server *monitor.Server
	if opts.serve {
		server = monitor.NewServer(cfg.MonitorAddr(), monitor.DefaultCapacity, jwtManager, logger)
		if cfg.MonitorJWTSecret() == "" {
			logger.Warn("No " + config.EnvMonitorJWTSecret + " set; tokens are valid until restart only")
		}
		go func() {
			if err := server.Run(ctx); err != nil {
				logger.Error("Monitor server failed", "error", err)
				stop()
			}
		}()
	}

	pager := monitor.NewPager(!opts.noClear)
	filter := opts.topic
	if filter == "" {
		filter = cfg.BaseTopic() + "/#"
	}

	handler := func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/"+mqtt.StatusTopicSuffix) || topic == cfg.LogTopic() {
			return
		}
		msg, err := codec.ParseWire(string(payload))
		if err != nil {
			logger.Debug("Ignoring payload", "topic", topic, "error", err)
			return
		}
		pager.Update(topic, msg)
		if server != nil {
			server.Ingest(topic, payload)
		}
	}
	if err := client.Subscribe(filter, cfg.MQTTQoS(), handler); err != nil {
		logging.Critical(logger, "Failed to declare subscriber", "filter", filter, "error", err)
		return 1
	}

	ticker := time.NewTicker(opts.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return 0
		case now := <-ticker.C:
			if opts.noPager {
				continue
			}
			if err := pager.Render(stdout, now); err != nil {
				logger.Warn("Failed to render pager", "error", err)
			}
		}
	}
}
