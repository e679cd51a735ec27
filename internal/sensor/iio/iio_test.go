package iio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeAttrs(t *testing.T, dir string, attrs map[string]string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	for name, value := range attrs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestFindByName(t *testing.T) {
	root := t.TempDir()
	writeAttrs(t, filepath.Join(root, "iio:device0"), map[string]string{"name": "ms5611"})
	writeAttrs(t, filepath.Join(root, "iio:device1"), map[string]string{"name": "mpu9250"})
	writeAttrs(t, filepath.Join(root, "trigger0"), map[string]string{"name": "mpu9250"})

	dev, err := Find(root, "mpu9250")
	if err != nil {
		t.Fatalf("Find() failed: %v", err)
	}
	if filepath.Base(dev.Path()) != "iio:device1" {
		t.Errorf("expected iio:device1, got %s", dev.Path())
	}

	if _, err := Find(root, "lsm9ds1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}

	if _, err := Find(filepath.Join(root, "missing"), "ms5611"); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestChannelScaling(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "iio:device0")
	writeAttrs(t, dir, map[string]string{
		"name":               "mpu9250",
		"in_accel_x_raw":     "100",
		"in_accel_scale":     "0.5",
		"in_anglvel_z_raw":   "10",
		"in_anglvel_z_scale": "0.25",
		"in_anglvel_scale":   "99",
		"in_temp_raw":        "20",
		"in_temp_offset":     "5",
		"in_temp_scale":      "2",
		"in_pressure_input":  "101.2345",
		"in_magn_y_raw":      "garbage",
	})

	dev, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if dev.Name() != "mpu9250" {
		t.Errorf("Name() = %q", dev.Name())
	}

	tests := []struct {
		channel  string
		expected float64
	}{
		{"accel_x", 50},
		{"anglvel_z", 2.5},
		{"temp", 50},
		{"pressure", 101.2345},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			got, err := dev.Channel(tt.channel)
			if err != nil {
				t.Fatalf("Channel(%q) failed: %v", tt.channel, err)
			}
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Channel(%q) = %v; want %v", tt.channel, got, tt.expected)
			}
		})
	}

	if _, err := dev.Channel("magn_y"); err == nil {
		t.Error("expected parse error for garbage raw value")
	}
	if _, err := dev.Channel("accel_z"); err == nil {
		t.Error("expected error for absent channel")
	}
}
