package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/spf13/pflag"

	"navtelemetry/internal/logging"
	"navtelemetry/internal/sensor"
)

var (
	// ErrHelp is returned by ParseOptions when --help was requested.
	ErrHelp = pflag.ErrHelp

	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidInterval   = errors.New("invalid interval value")
	ErrInvalidRCChannels = errors.New("invalid RC channel count")
	ErrInvalidLogLevel   = errors.New("invalid log level")
)

// Option defaults.
const (
	DefaultInterval   = 1.0
	DefaultRCChannels = 4
	DefaultConfigFile = ".env"

	// MaxInterval is the largest interval, in seconds, a time.Duration holds.
	MaxInterval = math.MaxInt64 / float64(time.Second)
)

// Options are the command-line settings of the acquisition daemon. They are
// parsed once at startup and never change.
type Options struct {
	interval    float64
	rcChannels  int
	once        bool
	logLevel    slog.Level
	configPath  string
	rcAxesPath  string
	metricsAddr string
}

// NewFlagSet returns the daemon's flag set, writing usage to output.
func NewFlagSet(name string, output io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.Float64("interval", DefaultInterval, "Sampling interval in seconds")
	fs.Int("rc-channels", DefaultRCChannels, "Number of RC channels (1-14)")
	fs.Bool("once", false, "Read sensors only once")
	fs.String("log-level", "WARNING", "Log verbosity (DEBUG/INFO/WARNING/ERROR/CRITICAL)")
	fs.String("config", DefaultConfigFile, "Path to the .env configuration file")
	fs.String("rc-axes", "", "YAML file mapping RC channels to named axes")
	fs.String("metrics-addr", "", "Serve metrics on this address (overrides "+EnvMetricsAddr+")")
	fs.BoolP("help", "h", false, "Show this message")
	fs.SortFlags = false
	return fs
}

// ParseOptions parses args (without the program name). It returns ErrHelp
// when help was requested and a wrapped ErrInvalid* for bad values.
func ParseOptions(name string, args []string, output io.Writer) (*Options, error) {
	fs := NewFlagSet(name, output)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if help, _ := fs.GetBool("help"); help {
		fs.Usage()
		return nil, ErrHelp
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected argument %q", ErrInvalidConfig, fs.Arg(0))
	}

	o := &Options{}
	o.interval, _ = fs.GetFloat64("interval")
	o.rcChannels, _ = fs.GetInt("rc-channels")
	o.once, _ = fs.GetBool("once")
	o.configPath, _ = fs.GetString("config")
	o.rcAxesPath, _ = fs.GetString("rc-axes")
	o.metricsAddr, _ = fs.GetString("metrics-addr")

	if o.interval < 0 || o.interval >= MaxInterval || math.IsNaN(o.interval) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, o.interval)
	}
	if o.rcChannels < 1 || o.rcChannels > sensor.MaxRCChannels {
		return nil, fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidRCChannels, o.rcChannels, sensor.MaxRCChannels)
	}

	levelName, _ := fs.GetString("log-level")
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLogLevel, err)
	}
	o.logLevel = level

	if o.metricsAddr != "" {
		if err := validateListenAddr(o.metricsAddr); err != nil {
			return nil, fmt.Errorf("%w: metrics address: %w", ErrInvalidConfig, err)
		}
	}

	return o, nil
}

// IntervalSeconds returns the sampling interval as given.
func (o *Options) IntervalSeconds() float64 { return o.interval }

// Interval returns the sampling interval.
func (o *Options) Interval() time.Duration {
	return time.Duration(o.interval * float64(time.Second))
}

func (o *Options) RCChannels() int      { return o.rcChannels }
func (o *Options) Once() bool           { return o.once }
func (o *Options) LogLevel() slog.Level { return o.logLevel }
func (o *Options) ConfigPath() string   { return o.configPath }
func (o *Options) RCAxesPath() string   { return o.rcAxesPath }

// MetricsAddr returns the --metrics-addr override, or fallback when unset.
func (o *Options) MetricsAddr(fallback string) string {
	if o.metricsAddr != "" {
		return o.metricsAddr
	}
	return fallback
}
