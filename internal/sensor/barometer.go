package sensor

import (
	"context"
	"log/slog"
	"time"
)

const (
	kilopascalToMillibar = 10.0
	millidegreeToDegree  = 1000.0

	// DefaultBarometerSettle is the conversion delay between pressure and
	// temperature samples.
	DefaultBarometerSettle = 10 * time.Millisecond

	// BarometerDevice is the MS5611 IIO driver name.
	BarometerDevice = "ms5611"
)

// Barometer reports temperature and pressure.
type Barometer struct {
	dev    ChannelReader
	settle time.Duration
	log    *slog.Logger
}

// NewBarometer runs a connection test against dev; a nil dev or a failed
// test leaves the port unavailable.
func NewBarometer(dev ChannelReader, settle time.Duration, logger *slog.Logger) *Barometer {
	b := &Barometer{settle: settle, log: logger.With("component", "barometer")}
	if dev == nil {
		b.log.Warn("Barometer not found")
		return b
	}
	if _, err := dev.Channel("pressure"); err != nil {
		b.log.Warn("Barometer connection test failed", "error", err)
		return b
	}
	b.dev = dev
	return b
}

func (b *Barometer) Name() string    { return "Barometer" }
func (b *Barometer) Kind() Kind      { return KindBarometer }
func (b *Barometer) Available() bool { return b.dev != nil }

func (b *Barometer) Describe() string {
	if !b.Available() {
		return "Barometer (unavailable)"
	}
	return "Barometer MS5611"
}

// Read triggers a pressure then a temperature conversion. A failed
// conversion leaves its field NaN.
func (b *Barometer) Read(ctx context.Context) Reading {
	r := NewBarometerReading()
	if !b.Available() {
		return r
	}

	sleep(ctx, b.settle)
	if pressure, err := b.dev.Channel("pressure"); err != nil {
		b.log.Warn("Barometer pressure read failed", "error", err)
	} else {
		r.PressureMbar = pressure * kilopascalToMillibar
	}

	sleep(ctx, b.settle)
	if temp, err := b.dev.Channel("temp"); err != nil {
		b.log.Warn("Barometer temperature read failed", "error", err)
	} else {
		r.TemperatureC = temp / millidegreeToDegree
	}

	r.Valid = true
	return r
}
