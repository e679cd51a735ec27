package codec

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"navtelemetry/internal/sensor"
)

// PWM range mapped onto 0..100.
const (
	PWMMin = 1000
	PWMMax = 2000
)

// Axis binds a named control axis to an RC channel index.
type Axis struct {
	Name    string `yaml:"name"`
	Channel int    `yaml:"channel"`
}

// AxisMap is the deployment-specific channel layout of the transmitter.
type AxisMap struct {
	Axes []Axis `yaml:"axes"`
}

// DefaultAxisMap maps roll, pitch, throttle and yaw to channels 0 through 3.
func DefaultAxisMap() AxisMap {
	return AxisMap{Axes: []Axis{
		{Name: "roll", Channel: 0},
		{Name: "pitch", Channel: 1},
		{Name: "throttle", Channel: 2},
		{Name: "yaw", Channel: 3},
	}}
}

// LoadAxisMap reads a YAML axis map file.
func LoadAxisMap(path string) (AxisMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AxisMap{}, fmt.Errorf("failed to read axis map: %w", err)
	}
	return ParseAxisMap(data)
}

// ParseAxisMap decodes and validates a YAML axis map.
func ParseAxisMap(data []byte) (AxisMap, error) {
	var m AxisMap
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return AxisMap{}, fmt.Errorf("failed to parse axis map: %w", err)
	}
	if err := m.Validate(); err != nil {
		return AxisMap{}, err
	}
	return m, nil
}

// Validate checks for empty, duplicate or negative entries.
func (m AxisMap) Validate() error {
	if len(m.Axes) == 0 {
		return errors.New("axis map has no axes")
	}
	seen := make(map[string]bool, len(m.Axes))
	for _, a := range m.Axes {
		if a.Name == "" {
			return errors.New("axis name cannot be empty")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate axis %q", a.Name)
		}
		seen[a.Name] = true
		if a.Channel < 0 || a.Channel >= sensor.MaxRCChannels {
			return fmt.Errorf("axis %q: channel %d out of range", a.Name, a.Channel)
		}
	}
	return nil
}

// NormalizePWM maps a pulse width in microseconds onto 0..100.
func NormalizePWM(raw int) int {
	switch {
	case raw <= PWMMin:
		return 0
	case raw >= PWMMax:
		return 100
	}
	return int(math.Round(float64(raw-PWMMin) / float64(PWMMax-PWMMin) * 100))
}

// EncodeRCAxes renders the normalized value of every mapped axis in map
// order. An axis whose channel was not sampled reads 0 and is reported
// through logger.
func EncodeRCAxes(r sensor.RCReading, axes AxisMap, ts string, logger *slog.Logger) string {
	if !r.IsValid() {
		return Unavailable(LabelRCInput)
	}
	b := newBuilder(ts)
	for _, a := range axes.Axes {
		value := 0
		if a.Channel < len(r.Channels) {
			value = NormalizePWM(r.Channels[a.Channel])
		} else if logger != nil {
			logger.Warn("RCInput channel not available for normalization", "axis", a.Name, "channel", a.Channel)
		}
		b.str(a.Name, strconv.Itoa(value))
	}
	return b.String()
}
