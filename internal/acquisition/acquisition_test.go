package acquisition

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"navtelemetry/internal/codec"
	"navtelemetry/internal/logging"
	"navtelemetry/internal/sensor"
)

type fakePort struct {
	name      string
	kind      sensor.Kind
	available bool
	reading   sensor.Reading
	reads     int
}

func (p *fakePort) Name() string     { return p.name }
func (p *fakePort) Kind() sensor.Kind { return p.kind }
func (p *fakePort) Describe() string { return p.name }
func (p *fakePort) Available() bool  { return p.available }
func (p *fakePort) Read(ctx context.Context) sensor.Reading {
	p.reads++
	return p.reading
}

type published struct {
	topic   string
	payload string
}

type fakePublisher struct {
	mu     sync.Mutex
	ready  bool
	fail   map[string]bool
	sent   []published
	cancel context.CancelFunc
	stopAt int
}

func (f *fakePublisher) Ready() bool { return f.ready }

func (f *fakePublisher) Publish(topic string, payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[topic] {
		return false
	}
	f.sent = append(f.sent, published{topic, string(payload)})
	if f.cancel != nil && len(f.sent) >= f.stopAt {
		f.cancel()
	}
	return true
}

type fakeRecorder struct {
	cycles    int
	reads     map[string]int
	available map[string]bool
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{reads: map[string]int{}, available: map[string]bool{}}
}

func (r *fakeRecorder) ObserveCycle(time.Duration)          { r.cycles++ }
func (r *fakeRecorder) ObserveRead(name string, valid bool) { r.reads[name]++ }
func (r *fakeRecorder) SetAvailable(name string, ok bool)   { r.available[name] = ok }

func fixedClock() time.Time { return time.Unix(1700000000, 0) }

func testPorts() []*fakePort {
	return []*fakePort{
		{
			name: "Barometer", kind: sensor.KindBarometer, available: true,
			reading: sensor.BarometerReading{Valid: true, TemperatureC: 23.5, PressureMbar: 1012.345},
		},
		{
			name: "GPS", kind: sensor.KindGPS,
			reading: sensor.NewGPSReading(),
		},
		{
			name: "RC Input", kind: sensor.KindRCInput, available: true,
			reading: sensor.RCReading{Valid: true, Channels: []int{1500, 1000, 2000, sensor.MissingChannel}},
		},
	}
}

func asPorts(fakes []*fakePort) []sensor.Port {
	ports := make([]sensor.Port, len(fakes))
	for i, f := range fakes {
		ports[i] = f
	}
	return ports
}

func TestRunNotReady(t *testing.T) {
	fakes := testPorts()
	r := &Runner{
		Ports:     asPorts(fakes),
		Publisher: &fakePublisher{ready: false},
		Once:      true,
		Logger:    logging.Discard(),
	}

	if err := r.Run(context.Background()); !errors.Is(err, ErrPublisherNotReady) {
		t.Fatalf("expected ErrPublisherNotReady, got %v", err)
	}
	for _, f := range fakes {
		if f.reads != 0 {
			t.Errorf("port %s was read %d times", f.name, f.reads)
		}
	}
}

func TestRunOnce(t *testing.T) {
	fakes := testPorts()
	pub := &fakePublisher{ready: true}
	rec := newFakeRecorder()
	r := &Runner{
		Ports:     asPorts(fakes),
		Publisher: pub,
		BaseTopic: "telemetry/sensors",
		Once:      true,
		Interval:  time.Hour,
		Now:       fixedClock,
		Logger:    logging.Discard(),
		Metrics:   rec,
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []published{
		{"telemetry/sensors/barometer", "timestamp=1700000000 temperature=23.5 pressure=1012.345"},
		{"telemetry/sensors/gps", "GPS: unavailable"},
		{"telemetry/sensors/rcinput", "timestamp=1700000000 c0=1500 c1=1000 c2=2000 c3=-1"},
	}
	if len(pub.sent) != len(want) {
		t.Fatalf("published %d payloads, want %d: %v", len(pub.sent), len(want), pub.sent)
	}
	for i, w := range want {
		if pub.sent[i] != w {
			t.Errorf("payload %d = %+v; want %+v", i, pub.sent[i], w)
		}
	}

	if rec.cycles != 1 {
		t.Errorf("expected 1 cycle, got %d", rec.cycles)
	}
	if rec.available["GPS"] || !rec.available["Barometer"] {
		t.Errorf("unexpected availability %v", rec.available)
	}
}

func TestCyclePublishFailureIsolated(t *testing.T) {
	fakes := testPorts()
	pub := &fakePublisher{ready: true, fail: map[string]bool{"telemetry/sensors/barometer": true}}
	r := &Runner{
		Ports:     asPorts(fakes),
		Publisher: pub,
		Now:       fixedClock,
		Logger:    logging.Discard(),
	}

	r.Cycle(context.Background())

	if len(pub.sent) != 2 {
		t.Fatalf("expected the remaining 2 payloads, got %v", pub.sent)
	}
	for _, f := range fakes {
		if f.reads != 1 {
			t.Errorf("port %s read %d times", f.name, f.reads)
		}
	}
}

func TestCycleAxes(t *testing.T) {
	axes := codec.AxisMap{Axes: []codec.Axis{{Name: "roll", Channel: 0}, {Name: "throttle", Channel: 2}}}
	pub := &fakePublisher{ready: true}
	r := &Runner{
		Ports:     asPorts(testPorts()[2:]),
		Publisher: pub,
		Axes:      &axes,
		Now:       fixedClock,
		Logger:    logging.Discard(),
	}

	r.Cycle(context.Background())

	if len(pub.sent) != 2 {
		t.Fatalf("expected raw and axes payloads, got %v", pub.sent)
	}
	got := pub.sent[1]
	if got.topic != "telemetry/sensors/rcinput/axes" || got.payload != "timestamp=1700000000 roll=50 throttle=100" {
		t.Errorf("axes payload = %+v", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel after the second cycle has published all three payloads.
	pub := &fakePublisher{ready: true, cancel: cancel, stopAt: 6}
	r := &Runner{
		Ports:     asPorts(testPorts()),
		Publisher: pub,
		Interval:  time.Millisecond,
		Now:       fixedClock,
		Logger:    logging.Discard(),
	}

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.sent) != 6 {
		t.Errorf("expected exactly 2 cycles, got %d payloads", len(pub.sent))
	}
}

func TestCycleConsoleLineOnlyAtDebug(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(logging.LevelWarning)
	r := &Runner{
		Ports:     asPorts(testPorts()[:1]),
		Publisher: &fakePublisher{ready: true},
		Now:       fixedClock,
		Logger:    logging.New(&buf, level),
	}

	r.Cycle(context.Background())
	if buf.Len() != 0 {
		t.Errorf("unexpected output at WARNING: %s", buf.String())
	}

	level.Set(logging.LevelDebug)
	r.Cycle(context.Background())
	if !strings.Contains(buf.String(), "Barometer | Temp:  23.50 C") {
		t.Errorf("expected console line at DEBUG, got %q", buf.String())
	}
}

func TestTopic(t *testing.T) {
	if got := Topic("", sensor.KindIMU); got != "telemetry/sensors/imu" {
		t.Errorf("Topic = %q", got)
	}
	if got := AxesTopic("rover/1"); got != "rover/1/rcinput/axes" {
		t.Errorf("AxesTopic = %q", got)
	}
}
