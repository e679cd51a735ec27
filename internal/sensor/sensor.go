// Package sensor provides the capability-typed ports over the board's
// physical devices and the readings they produce.
package sensor

import (
	"context"
	"math"
	"time"
)

// Kind identifies the device family a port or reading belongs to.
type Kind string

const (
	KindIMU       Kind = "imu"
	KindADC       Kind = "adc"
	KindBarometer Kind = "barometer"
	KindGPS       Kind = "gps"
	KindRCInput   Kind = "rcinput"
)

// MissingChannel marks an integer channel whose read failed.
const MissingChannel = -1

// MaxRCChannels is the number of RC input channels the board decodes.
const MaxRCChannels = 14

// Port is a handle over one physical device.
//
// Available reports whether initialization or probing succeeded and never
// changes afterwards. Read never fails: an absent device yields an invalid
// reading, and a failed channel is reported as missing while the other
// channels are still returned.
type Port interface {
	Name() string
	Kind() Kind
	Describe() string
	Available() bool
	Read(ctx context.Context) Reading
}

// Reading is one device's sampled state for a single cycle.
type Reading interface {
	Kind() Kind
	IsValid() bool
}

// IMUReading holds accelerometer (m/s^2), gyroscope (rad/s) and
// magnetometer (uT) samples.
type IMUReading struct {
	Valid bool
	Name  string

	AX, AY, AZ float64
	GX, GY, GZ float64
	MX, MY, MZ float64
}

// NewIMUReading returns an invalid reading with every axis unknown.
func NewIMUReading(name string) IMUReading {
	nan := math.NaN()
	return IMUReading{
		Name: name,
		AX:   nan, AY: nan, AZ: nan,
		GX: nan, GY: nan, GZ: nan,
		MX: nan, MY: nan, MZ: nan,
	}
}

func (r IMUReading) Kind() Kind    { return KindIMU }
func (r IMUReading) IsValid() bool { return r.Valid }

// ADCReading holds one voltage per analog channel; NaN marks a failed channel.
type ADCReading struct {
	Valid    bool
	Channels []float64
}

func (r ADCReading) Kind() Kind    { return KindADC }
func (r ADCReading) IsValid() bool { return r.Valid && len(r.Channels) > 0 }

// BarometerReading holds temperature and pressure.
type BarometerReading struct {
	Valid        bool
	TemperatureC float64
	PressureMbar float64
}

// NewBarometerReading returns an invalid reading with unknown values.
func NewBarometerReading() BarometerReading {
	return BarometerReading{
		TemperatureC: math.NaN(),
		PressureMbar: math.NaN(),
	}
}

func (r BarometerReading) Kind() Kind    { return KindBarometer }
func (r BarometerReading) IsValid() bool { return r.Valid }

// GPSReading is the receiver's latest navigation solution. Position and
// status arrive in separate messages, so either half may be missing.
type GPSReading struct {
	HasPosition bool
	HasStatus   bool

	TimeOfWeekS    float64
	LatitudeDeg    float64
	LongitudeDeg   float64
	HeightM        float64
	HMSLM          float64
	HorizontalAccM float64
	VerticalAccM   float64

	FixType int
	FixOK   bool
}

// NewGPSReading returns a reading with neither position nor status.
func NewGPSReading() GPSReading {
	nan := math.NaN()
	return GPSReading{
		TimeOfWeekS:    nan,
		LatitudeDeg:    nan,
		LongitudeDeg:   nan,
		HeightM:        nan,
		HMSLM:          nan,
		HorizontalAccM: nan,
		VerticalAccM:   nan,
	}
}

func (r GPSReading) Kind() Kind    { return KindGPS }
func (r GPSReading) IsValid() bool { return r.HasPosition || r.HasStatus }

// RCReading holds raw pulse widths in microseconds; MissingChannel marks a
// failed channel.
type RCReading struct {
	Valid    bool
	Channels []int
}

func (r RCReading) Kind() Kind    { return KindRCInput }
func (r RCReading) IsValid() bool { return r.Valid && len(r.Channels) > 0 }

// sleep waits for d unless ctx is done first.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
