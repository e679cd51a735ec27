// Package codec turns sensor readings into wire payloads and console lines,
// and parses wire payloads back on the subscriber side.
//
// Wire payloads are space-separated key=value tokens in a fixed order per
// sensor kind, prefixed by the cycle timestamp. Field names and order are a
// compatibility contract with subscribers.
package codec

import (
	"math"
	"strconv"
	"strings"

	"navtelemetry/internal/sensor"
)

// UnavailableSuffix terminates the literal sent for an unavailable sensor.
const UnavailableSuffix = ": unavailable"

// Unavailable labels per sensor.
const (
	LabelADC       = "ADC"
	LabelBarometer = "Barometer"
	LabelGPS       = "GPS"
	LabelRCInput   = "RC Input"
)

// FormatFloat renders v in shortest round-trip decimal form. NaN is "nan".
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Unavailable returns the degenerate payload for label.
func Unavailable(label string) string {
	return label + UnavailableSuffix
}

// IMULabel is the unavailable label of an inertial unit.
func IMULabel(name string) string {
	if name == "" {
		return "IMU"
	}
	return "IMU " + name
}

type builder struct {
	sb strings.Builder
}

func newBuilder(ts string) *builder {
	b := &builder{}
	b.sb.WriteString("timestamp=")
	b.sb.WriteString(ts)
	return b
}

func (b *builder) str(key, value string) *builder {
	b.sb.WriteByte(' ')
	b.sb.WriteString(key)
	b.sb.WriteByte('=')
	b.sb.WriteString(value)
	return b
}

func (b *builder) float(key string, v float64) *builder {
	return b.str(key, FormatFloat(v))
}

func (b *builder) int(key string, v int) *builder {
	return b.str(key, strconv.Itoa(v))
}

func (b *builder) String() string {
	return b.sb.String()
}

// EncodeIMU renders name, accelerometer, gyroscope and magnetometer axes.
func EncodeIMU(r sensor.IMUReading, ts string) string {
	if !r.IsValid() {
		return Unavailable(IMULabel(r.Name))
	}
	return newBuilder(ts).
		str("name", r.Name).
		float("ax", r.AX).float("ay", r.AY).float("az", r.AZ).
		float("gx", r.GX).float("gy", r.GY).float("gz", r.GZ).
		float("mx", r.MX).float("my", r.MY).float("mz", r.MZ).
		String()
}

// EncodeADC renders one aN field per channel.
func EncodeADC(r sensor.ADCReading, ts string) string {
	if !r.IsValid() {
		return Unavailable(LabelADC)
	}
	b := newBuilder(ts)
	for i, v := range r.Channels {
		b.float("a"+strconv.Itoa(i), v)
	}
	return b.String()
}

// EncodeBarometer renders temperature (C) and pressure (mbar).
func EncodeBarometer(r sensor.BarometerReading, ts string) string {
	if !r.IsValid() {
		return Unavailable(LabelBarometer)
	}
	return newBuilder(ts).
		float("temperature", r.TemperatureC).
		float("pressure", r.PressureMbar).
		String()
}

// EncodeGPS renders fix type and position. Without a status message the fix
// type is 0 (no fix); without a position message the coordinates are nan.
func EncodeGPS(r sensor.GPSReading, ts string) string {
	if !r.IsValid() {
		return Unavailable(LabelGPS)
	}
	fix := 0
	if r.HasStatus {
		fix = r.FixType
	}
	return newBuilder(ts).
		int("fix_type", fix).
		float("lat", r.LatitudeDeg).
		float("lon", r.LongitudeDeg).
		float("height", r.HeightM).
		String()
}

// EncodeRC renders one cN field per channel; failed channels are -1.
func EncodeRC(r sensor.RCReading, ts string) string {
	if !r.IsValid() {
		return Unavailable(LabelRCInput)
	}
	b := newBuilder(ts)
	for i, v := range r.Channels {
		b.int("c"+strconv.Itoa(i), v)
	}
	return b.String()
}

// EncodeWire dispatches on the reading's concrete type. Unknown types encode
// as an unavailable payload labelled by kind.
func EncodeWire(r sensor.Reading, ts string) string {
	switch v := r.(type) {
	case sensor.IMUReading:
		return EncodeIMU(v, ts)
	case sensor.ADCReading:
		return EncodeADC(v, ts)
	case sensor.BarometerReading:
		return EncodeBarometer(v, ts)
	case sensor.GPSReading:
		return EncodeGPS(v, ts)
	case sensor.RCReading:
		return EncodeRC(v, ts)
	case nil:
		return Unavailable("Sensor")
	default:
		return Unavailable(string(r.Kind()))
	}
}
