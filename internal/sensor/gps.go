package sensor

import (
	"context"
	"log/slog"
	"sync"

	"navtelemetry/internal/sensor/ubx"
)

// DefaultGPSRateMs is the navigation solution period configured at start.
const DefaultGPSRateMs = 200

// GPSReceiver polls navigation messages from a receiver.
type GPSReceiver interface {
	TestConnection(ctx context.Context) error
	ConfigureRate(periodMs uint16) error
	Position(ctx context.Context) (ubx.PosLLH, error)
	Status(ctx context.Context) (ubx.Status, error)
}

// GPS reports the receiver's latest solution. Position and status are kept
// between reads because they arrive independently.
type GPS struct {
	rx  GPSReceiver
	log *slog.Logger

	mu    sync.Mutex
	state GPSReading
}

// NewGPS tests the receiver and configures its solution rate. A nil receiver
// or a failed test leaves the port unavailable.
func NewGPS(ctx context.Context, rx GPSReceiver, logger *slog.Logger) *GPS {
	g := &GPS{log: logger.With("component", "gps"), state: NewGPSReading()}
	if rx == nil {
		g.log.Warn("GPS receiver not found")
		return g
	}
	if err := rx.TestConnection(ctx); err != nil {
		g.log.Warn("GPS test failed", "error", err)
		return g
	}
	if err := rx.ConfigureRate(DefaultGPSRateMs); err != nil {
		g.log.Warn("GPS rate configuration failed", "error", err)
	}
	g.rx = rx
	return g
}

func (g *GPS) Name() string    { return "GPS" }
func (g *GPS) Kind() Kind      { return KindGPS }
func (g *GPS) Available() bool { return g.rx != nil }

func (g *GPS) Describe() string {
	if !g.Available() {
		return "GPS (unavailable)"
	}
	return "GPS u-blox"
}

// Read refreshes whichever messages the receiver answers and returns a copy
// of the accumulated state.
func (g *GPS) Read(ctx context.Context) Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.Available() {
		return g.state
	}

	if pos, err := g.rx.Position(ctx); err == nil {
		g.state.HasPosition = true
		g.state.TimeOfWeekS = float64(pos.ITOW) / 1000.0
		g.state.LongitudeDeg = float64(pos.Lon) / 1e7
		g.state.LatitudeDeg = float64(pos.Lat) / 1e7
		g.state.HeightM = float64(pos.Height) / 1000.0
		g.state.HMSLM = float64(pos.HMSL) / 1000.0
		g.state.HorizontalAccM = float64(pos.HAcc) / 1000.0
		g.state.VerticalAccM = float64(pos.VAcc) / 1000.0
	} else {
		g.log.Debug("NAV-POSLLH not received", "error", err)
	}

	if status, err := g.rx.Status(ctx); err == nil {
		g.state.HasStatus = true
		g.state.FixType = int(status.GPSFix)
		g.state.FixOK = status.FixOK()
	} else {
		g.log.Debug("NAV-STATUS not received", "error", err)
	}

	return g.state
}
