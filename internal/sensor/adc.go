package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// Bank is a set of integer channels on the I/O co-processor.
type Bank interface {
	ChannelCount() int
	Read(ch int) (int, error)
}

// ADC reports the board's analog inputs in volts.
type ADC struct {
	bank Bank
	log  *slog.Logger
}

// NewADC wraps an opened bank; a nil bank means the device is absent.
func NewADC(bank Bank, logger *slog.Logger) *ADC {
	a := &ADC{bank: bank, log: logger.With("component", "adc")}
	if bank == nil {
		a.log.Warn("ADC not available")
	}
	return a
}

func (a *ADC) Name() string    { return "ADC" }
func (a *ADC) Kind() Kind      { return KindADC }
func (a *ADC) Available() bool { return a.bank != nil && a.bank.ChannelCount() > 0 }

func (a *ADC) Describe() string {
	if !a.Available() {
		return "ADC (unavailable)"
	}
	return fmt.Sprintf("ADC (%d channels)", a.bank.ChannelCount())
}

// Read samples every channel; a failed channel is NaN.
func (a *ADC) Read(ctx context.Context) Reading {
	if !a.Available() {
		return ADCReading{}
	}

	count := a.bank.ChannelCount()
	values := make([]float64, count)
	for ch := 0; ch < count; ch++ {
		mv, err := a.bank.Read(ch)
		if err != nil {
			a.log.Warn("ADC channel read failed", "channel", ch, "error", err)
			values[ch] = math.NaN()
			continue
		}
		values[ch] = float64(mv) / 1000.0
	}
	return ADCReading{Valid: true, Channels: values}
}
