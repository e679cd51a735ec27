// Package acquisition runs the read, encode and publish cycle over the
// board's ports.
package acquisition

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"navtelemetry/internal/codec"
	"navtelemetry/internal/sensor"
)

// DefaultBaseTopic prefixes every sensor topic.
const DefaultBaseTopic = "telemetry/sensors"

// ErrPublisherNotReady is returned by Run when the messaging session failed
// to open.
var ErrPublisherNotReady = errors.New("publisher not ready")

// Publisher hands payloads to the messaging fabric.
type Publisher interface {
	Ready() bool
	Publish(topic string, payload []byte) bool
}

// Recorder receives cycle and read outcomes.
type Recorder interface {
	ObserveCycle(d time.Duration)
	ObserveRead(sensor string, valid bool)
	SetAvailable(sensor string, available bool)
}

// Topic returns the topic a reading of kind is published on.
func Topic(base string, kind sensor.Kind) string {
	if base == "" {
		base = DefaultBaseTopic
	}
	return base + "/" + string(kind)
}

// AxesTopic carries the normalized RC axes.
func AxesTopic(base string) string {
	return Topic(base, sensor.KindRCInput) + "/axes"
}

// Runner drives the acquisition loop.
type Runner struct {
	Ports     []sensor.Port
	Publisher Publisher
	BaseTopic string

	// Interval is the pause between cycles. Once stops after the first.
	Interval time.Duration
	Once     bool

	// Axes, when set, also publishes normalized RC axes.
	Axes *codec.AxisMap

	Now     func() time.Time
	Logger  *slog.Logger
	Metrics Recorder
}

// Run publishes cycles until ctx is cancelled, or once when Once is set.
// No port is touched when the publisher is not ready.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.logger()
	if r.Publisher == nil || !r.Publisher.Ready() {
		return ErrPublisherNotReady
	}

	if r.Metrics != nil {
		for _, p := range r.Ports {
			r.Metrics.SetAvailable(p.Name(), p.Available())
		}
	}

	logger.Info("Acquisition started", "ports", len(r.Ports), "interval", r.Interval, "once", r.Once)
	for {
		if err := ctx.Err(); err != nil {
			logger.Info("Acquisition stopped")
			return nil
		}

		r.Cycle(ctx)

		if r.Once {
			logger.Info("Acquisition stopped", "reason", "once")
			return nil
		}

		timer := time.NewTimer(r.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("Acquisition stopped")
			return nil
		case <-timer.C:
		}
	}
}

// Cycle reads every port once and publishes the payloads in port order.
// All payloads of one cycle share a timestamp.
func (r *Runner) Cycle(ctx context.Context) {
	logger := r.logger()
	start := r.now()
	ts := strconv.FormatInt(start.Unix(), 10)

	for _, p := range r.Ports {
		reading := p.Read(ctx)
		if r.Metrics != nil {
			r.Metrics.ObserveRead(p.Name(), reading.IsValid())
		}
		if logger.Enabled(ctx, slog.LevelDebug) {
			logger.Debug(codec.Console(reading))
		}

		r.publish(Topic(r.BaseTopic, p.Kind()), codec.EncodeWire(reading, ts))

		if rc, ok := reading.(sensor.RCReading); ok && r.Axes != nil {
			r.publish(AxesTopic(r.BaseTopic), codec.EncodeRCAxes(rc, *r.Axes, ts, logger))
		}
	}

	if r.Metrics != nil {
		r.Metrics.ObserveCycle(r.now().Sub(start))
	}
}

func (r *Runner) publish(topic, payload string) {
	if !r.Publisher.Publish(topic, []byte(payload)) {
		r.logger().Warn("Failed to publish", "topic", topic)
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
