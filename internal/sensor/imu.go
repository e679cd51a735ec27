package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"navtelemetry/internal/sensor/iio"
)

// gaussToMicrotesla converts IIO magnetometer units.
const gaussToMicrotesla = 100.0

// DefaultIMUSettle is the delay after initialization before the first read.
const DefaultIMUSettle = 100 * time.Millisecond

// ChannelReader returns processed values of named channels ("accel_x", "pressure").
type ChannelReader interface {
	Channel(name string) (float64, error)
}

// DeviceFinder locates a device by its driver name.
type DeviceFinder func(name string) (ChannelReader, error)

// IIOFinder returns a DeviceFinder scanning an IIO sysfs root.
func IIOFinder(root string) DeviceFinder {
	return func(name string) (ChannelReader, error) {
		dev, err := iio.Find(root, name)
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
}

// IMUModel names the kernel devices that make up one inertial unit. An empty
// Gyro or Mag means the channels live on the Accel device.
type IMUModel struct {
	Name  string
	Accel string
	Gyro  string
	Mag   string
}

var (
	MPU9250 = IMUModel{Name: "MPU9250", Accel: "mpu9250"}
	LSM9DS1 = IMUModel{Name: "LSM9DS1", Accel: "lsm9ds1_accel", Gyro: "lsm9ds1_gyro", Mag: "lsm9ds1_magn"}
)

// IMU is a 9-axis inertial port.
type IMU struct {
	model IMUModel
	accel ChannelReader
	gyro  ChannelReader
	mag   ChannelReader
	log   *slog.Logger
}

// NewIMU probes the model's devices. A missing device leaves the port
// permanently unavailable.
func NewIMU(ctx context.Context, model IMUModel, find DeviceFinder, settle time.Duration, logger *slog.Logger) *IMU {
	m := &IMU{model: model, log: logger.With("component", "imu", "imu", model.Name)}

	devices := make(map[string]ChannelReader)
	lookup := func(name string) ChannelReader {
		if name == "" {
			name = model.Accel
		}
		if dev, ok := devices[name]; ok {
			return dev
		}
		dev, err := find(name)
		if err != nil {
			m.log.Warn("IMU probe failed", "device", name, "error", err)
			return nil
		}
		devices[name] = dev
		return dev
	}

	accel, gyro, mag := lookup(model.Accel), lookup(model.Gyro), lookup(model.Mag)
	if accel == nil || gyro == nil || mag == nil {
		return m
	}
	m.accel, m.gyro, m.mag = accel, gyro, mag

	m.log.Info("Initialized IMU")
	sleep(ctx, settle)
	return m
}

func (m *IMU) Name() string    { return m.model.Name }
func (m *IMU) Kind() Kind      { return KindIMU }
func (m *IMU) Available() bool { return m.accel != nil }

func (m *IMU) Describe() string {
	state := "available"
	if !m.Available() {
		state = "unavailable"
	}
	return fmt.Sprintf("IMU %s (%s)", m.model.Name, state)
}

// Read samples all nine axes. A failed channel leaves its axis NaN.
func (m *IMU) Read(ctx context.Context) Reading {
	r := NewIMUReading(m.model.Name)
	if !m.Available() {
		return r
	}

	axes := []struct {
		dev     ChannelReader
		channel string
		dst     *float64
		scale   float64
	}{
		{m.accel, "accel_x", &r.AX, 1},
		{m.accel, "accel_y", &r.AY, 1},
		{m.accel, "accel_z", &r.AZ, 1},
		{m.gyro, "anglvel_x", &r.GX, 1},
		{m.gyro, "anglvel_y", &r.GY, 1},
		{m.gyro, "anglvel_z", &r.GZ, 1},
		{m.mag, "magn_x", &r.MX, gaussToMicrotesla},
		{m.mag, "magn_y", &r.MY, gaussToMicrotesla},
		{m.mag, "magn_z", &r.MZ, gaussToMicrotesla},
	}
	for _, a := range axes {
		if ctx.Err() != nil {
			return NewIMUReading(m.model.Name)
		}
		v, err := a.dev.Channel(a.channel)
		if err != nil {
			m.log.Warn("IMU read failed", "channel", a.channel, "error", err)
			continue
		}
		*a.dst = v * a.scale
	}

	r.Valid = true
	return r
}
