package sensor

import (
	"context"
	"fmt"
	"log/slog"
)

// RCInput reports radio-control pulse widths.
type RCInput struct {
	bank     Bank
	channels int
	log      *slog.Logger
}

// NewRCInput reads the first channels of bank, capped at what the bank has.
func NewRCInput(bank Bank, channels int, logger *slog.Logger) *RCInput {
	r := &RCInput{bank: bank, log: logger.With("component", "rcinput")}
	if bank == nil {
		r.log.Error("Failed to initialize RCInput sensor")
		return r
	}
	if channels > bank.ChannelCount() {
		channels = bank.ChannelCount()
	}
	if channels < 0 {
		channels = 0
	}
	r.channels = channels
	r.log.Info("RCInput sensor initialized", "channels", channels)
	return r
}

func (r *RCInput) Name() string    { return "RC Input" }
func (r *RCInput) Kind() Kind      { return KindRCInput }
func (r *RCInput) Available() bool { return r.bank != nil && r.channels > 0 }

func (r *RCInput) Describe() string {
	if !r.Available() {
		return "RC Input (unavailable)"
	}
	return fmt.Sprintf("RC Input (%d channels)", r.channels)
}

// Read samples each configured channel; a failed or non-positive pulse is
// reported as MissingChannel.
func (r *RCInput) Read(ctx context.Context) Reading {
	if !r.Available() {
		r.log.Warn("RCInput sensor not available")
		return RCReading{}
	}

	values := make([]int, r.channels)
	for ch := range values {
		v, err := r.bank.Read(ch)
		if err != nil || v <= 0 {
			r.log.Warn("Failed to read RCInput channel", "channel", ch, "error", err)
			values[ch] = MissingChannel
			continue
		}
		r.log.Debug("RCInput channel", "channel", ch, "value", v)
		values[ch] = v
	}
	return RCReading{Valid: true, Channels: values}
}
