package sensor

import (
	"context"
	"io"
	"log/slog"
	"time"

	"navtelemetry/internal/sensor/iio"
	"navtelemetry/internal/sensor/rcio"
	"navtelemetry/internal/sensor/ubx"
)

// BoardConfig locates the board's devices.
type BoardConfig struct {
	IIORoot    string
	RCIORoot   string
	GPSDevice  string
	RCChannels int

	IMUSettle       time.Duration
	BarometerSettle time.Duration
}

// Board owns the fixed set of ports and the handles they hold open.
type Board struct {
	ports   []Port
	closers []io.Closer
}

// NewBoard probes every device. Probing failures are logged and leave the
// affected port unavailable; they never fail the board.
func NewBoard(ctx context.Context, cfg BoardConfig, logger *slog.Logger) *Board {
	if cfg.IIORoot == "" {
		cfg.IIORoot = iio.DefaultRoot
	}
	if cfg.RCIORoot == "" {
		cfg.RCIORoot = rcio.DefaultRoot
	}
	if cfg.GPSDevice == "" {
		cfg.GPSDevice = ubx.DefaultDevice
	}

	b := &Board{}
	find := IIOFinder(cfg.IIORoot)

	var adcBank Bank
	if bank, err := rcio.OpenADC(cfg.RCIORoot); err == nil {
		adcBank = bank
	} else {
		logger.Warn("ADC probe failed", "error", err)
	}

	var baroDev ChannelReader
	if dev, err := find(BarometerDevice); err == nil {
		baroDev = dev
	} else {
		logger.Warn("Barometer probe failed", "error", err)
	}

	var gpsRx GPSReceiver
	if rx, closer, err := ubx.OpenDevice(cfg.GPSDevice); err == nil {
		gpsRx = rx
		b.closers = append(b.closers, closer)
	} else {
		logger.Warn("GPS probe failed", "error", err)
	}

	var rcBank Bank
	if bank, err := rcio.OpenRCInput(cfg.RCIORoot); err == nil {
		rcBank = bank
	} else {
		logger.Warn("RCInput probe failed", "error", err)
	}

	b.ports = []Port{
		NewIMU(ctx, MPU9250, find, cfg.IMUSettle, logger),
		NewIMU(ctx, LSM9DS1, find, cfg.IMUSettle, logger),
		NewADC(adcBank, logger),
		NewBarometer(baroDev, cfg.BarometerSettle, logger),
		NewGPS(ctx, gpsRx, logger),
		NewRCInput(rcBank, cfg.RCChannels, logger),
	}
	return b
}

// Ports returns the ports in publication order.
func (b *Board) Ports() []Port {
	return b.ports
}

// Close releases open device handles.
func (b *Board) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}
