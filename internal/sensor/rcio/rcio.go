// Package rcio reads the Navio2 RCIO co-processor through its sysfs interface.
package rcio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultRoot is where the rcio kernel module exposes its attributes.
const DefaultRoot = "/sys/kernel/rcio"

// Channel limits of the co-processor.
const (
	ADCChannels     = 6
	RCInputChannels = 14
)

// readFailed is what the co-processor reports for a channel it could not sample.
const readFailed = -1

// Bank is one group of chN attributes (adc or rcin).
type Bank struct {
	dir      string
	channels int
}

// OpenADC opens the analog bank under root.
func OpenADC(root string) (*Bank, error) {
	return openBank(root, "adc", ADCChannels)
}

// OpenRCInput opens the RC input bank under root.
func OpenRCInput(root string) (*Bank, error) {
	return openBank(root, "rcin", RCInputChannels)
}

func openBank(root, name string, channels int) (*Bank, error) {
	dir := filepath.Join(root, name)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("rcio %s unavailable: %w", name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("rcio %s unavailable: %s is not a directory", name, dir)
	}

	// The module reports 0 in "initialized" until the co-processor answers.
	if data, err := os.ReadFile(filepath.Join(root, "initialized")); err == nil {
		if strings.TrimSpace(string(data)) == "0" {
			return nil, fmt.Errorf("rcio %s unavailable: co-processor not initialized", name)
		}
	}

	return &Bank{dir: dir, channels: channels}, nil
}

// ChannelCount returns the number of channels in the bank.
func (b *Bank) ChannelCount() int {
	return b.channels
}

// Read returns the raw integer value of channel ch (millivolts for adc,
// microseconds for rcin).
func (b *Bank) Read(ch int) (int, error) {
	if ch < 0 || ch >= b.channels {
		return 0, fmt.Errorf("channel %d out of range", ch)
	}

	data, err := os.ReadFile(filepath.Join(b.dir, "ch"+strconv.Itoa(ch)))
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse channel %d: %w", ch, err)
	}
	if value == readFailed {
		return 0, fmt.Errorf("channel %d read failed", ch)
	}
	return value, nil
}
