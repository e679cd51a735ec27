// Package iio reads channels of Linux Industrial I/O devices through sysfs.
package iio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultRoot is where the kernel exposes IIO devices.
const DefaultRoot = "/sys/bus/iio/devices"

// ErrDeviceNotFound is returned by Find when no device carries the name.
var ErrDeviceNotFound = errors.New("iio device not found")

// Device is one iio:deviceN directory.
type Device struct {
	name string
	path string
}

// Find scans root for the device whose name file equals name.
func Find(root, name string) (*Device, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "iio:device") {
			continue
		}
		devicePath := filepath.Join(root, entry.Name())

		nameBytes, err := os.ReadFile(filepath.Join(devicePath, "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(nameBytes)) == name {
			return &Device{name: name, path: devicePath}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
}

// Open binds a device directory directly, without scanning.
func Open(path string) (*Device, error) {
	nameBytes, err := os.ReadFile(filepath.Join(path, "name"))
	if err != nil {
		return nil, fmt.Errorf("failed to read device name: %w", err)
	}
	return &Device{name: strings.TrimSpace(string(nameBytes)), path: path}, nil
}

// Name returns the kernel driver name of the device.
func (d *Device) Name() string {
	return d.name
}

// Path returns the sysfs directory of the device.
func (d *Device) Path() string {
	return d.path
}

// Channel returns the processed value of channel (e.g. "accel_x",
// "pressure", "temp"). A processed in_<channel>_input attribute is used when
// the driver provides one; otherwise (raw + offset) * scale is computed,
// falling back to the per-type scale and offset (in_accel_scale) when the
// per-channel ones are absent.
func (d *Device) Channel(channel string) (float64, error) {
	if v, err := d.readFloat("in_" + channel + "_input"); err == nil {
		return v, nil
	}

	raw, err := d.readFloat("in_" + channel + "_raw")
	if err != nil {
		return 0, fmt.Errorf("channel %s on %s: %w", channel, d.name, err)
	}

	scale := d.attribute(channel, "scale", 1)
	offset := d.attribute(channel, "offset", 0)
	return (raw + offset) * scale, nil
}

// attribute looks up in_<channel>_<attr>, then in_<type>_<attr>.
func (d *Device) attribute(channel, attr string, fallback float64) float64 {
	if v, err := d.readFloat("in_" + channel + "_" + attr); err == nil {
		return v
	}
	if idx := strings.LastIndex(channel, "_"); idx > 0 {
		if v, err := d.readFloat("in_" + channel[:idx] + "_" + attr); err == nil {
			return v
		}
	}
	return fallback
}

func (d *Device) readFloat(file string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(d.path, file))
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	return value, nil
}
