package codec

import (
	"fmt"
	"math"
	"strings"

	"navtelemetry/internal/sensor"
)

// Console lines are for people watching a terminal. They are not parsed by
// anything and may change freely.

var fixDescriptions = map[int]string{
	0: "no fix",
	1: "dead reckoning",
	2: "2D",
	3: "3D",
	4: "GNSS+DR",
	5: "time only",
}

// FixDescription names a u-blox fix type.
func FixDescription(fixType int) string {
	if d, ok := fixDescriptions[fixType]; ok {
		return d
	}
	return "unknown"
}

func ConsoleIMU(r sensor.IMUReading) string {
	if !r.IsValid() {
		return Unavailable(IMULabel(r.Name))
	}
	toDeg := 180.0 / math.Pi
	return fmt.Sprintf("%s | Acc: %+7.3f %+7.3f %+7.3f m/s^2 | Gyro: %+8.3f %+8.3f %+8.3f deg/s | Mag: %+7.3f %+7.3f %+7.3f uT",
		IMULabel(r.Name),
		r.AX, r.AY, r.AZ,
		r.GX*toDeg, r.GY*toDeg, r.GZ*toDeg,
		r.MX, r.MY, r.MZ)
}

func ConsoleADC(r sensor.ADCReading) string {
	if !r.IsValid() {
		return Unavailable(LabelADC)
	}
	parts := make([]string, len(r.Channels))
	for i, v := range r.Channels {
		if math.IsNaN(v) {
			parts[i] = fmt.Sprintf("A%d=--.--V", i)
		} else {
			parts[i] = fmt.Sprintf("A%d=%6.4fV", i, v)
		}
	}
	return "ADC | " + strings.Join(parts, " ")
}

func ConsoleBarometer(r sensor.BarometerReading) string {
	if !r.IsValid() {
		return Unavailable(LabelBarometer)
	}
	return fmt.Sprintf("Barometer | Temp: %6.2f C | Pressure: %8.3f mbar", r.TemperatureC, r.PressureMbar)
}

func ConsoleGPS(r sensor.GPSReading) string {
	if !r.IsValid() {
		return Unavailable(LabelGPS)
	}

	var sb strings.Builder
	sb.WriteString("GPS | ")
	if r.HasPosition {
		fmt.Fprintf(&sb, "Time: %8.2fs | Lat: %+10.6f | Lon: %+11.6f | Height: %+8.3fm | HMSL: %+8.3fm | HAcc: %6.2fm | VAcc: %6.2fm | ",
			r.TimeOfWeekS, r.LatitudeDeg, r.LongitudeDeg, r.HeightM, r.HMSLM, r.HorizontalAccM, r.VerticalAccM)
	} else {
		sb.WriteString("Position: -- | ")
	}
	if r.HasStatus {
		ok := "NO"
		if r.FixOK {
			ok = "OK"
		}
		fmt.Fprintf(&sb, "Fix: %s (%s)", FixDescription(r.FixType), ok)
	} else {
		sb.WriteString("Fix: --")
	}
	return sb.String()
}

func ConsoleRC(r sensor.RCReading) string {
	if !r.IsValid() {
		return Unavailable(LabelRCInput)
	}
	parts := make([]string, len(r.Channels))
	for i, v := range r.Channels {
		if v == sensor.MissingChannel {
			parts[i] = fmt.Sprintf("c%d=----us", i)
		} else {
			parts[i] = fmt.Sprintf("c%d=%4dus", i, v)
		}
	}
	return "RC Input | " + strings.Join(parts, " ")
}

// Console dispatches on the reading's concrete type.
func Console(r sensor.Reading) string {
	switch v := r.(type) {
	case sensor.IMUReading:
		return ConsoleIMU(v)
	case sensor.ADCReading:
		return ConsoleADC(v)
	case sensor.BarometerReading:
		return ConsoleBarometer(v)
	case sensor.GPSReading:
		return ConsoleGPS(v)
	case sensor.RCReading:
		return ConsoleRC(v)
	default:
		return Unavailable("Sensor")
	}
}
