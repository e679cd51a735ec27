package mqtt

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"navtelemetry/internal/logging"
	"navtelemetry/internal/storage"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type fakeTransport struct {
	mu           sync.Mutex
	messages     []published
	failTopics   map[string]bool
	disconnected bool
}

func payloadString(p interface{}) string {
	switch v := p.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

func (f *fakeTransport) PublishWithQoS(topic string, qos byte, retained bool, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTopics[topic] {
		return errors.New("not authorized")
	}
	f.messages = append(f.messages, published{topic, qos, retained, payloadString(payload)})
	return nil
}

func (f *fakeTransport) PublishNoWait(topic string, qos byte, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{topic, qos, false, payloadString(payload)})
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakeTransport) find(topic string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, m := range f.messages {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func newTestRegistry(t *testing.T) *storage.BoltRegistry {
	t.Helper()
	reg, err := storage.NewBoltRegistry(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewBoltRegistry() failed: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func testConfig() Config {
	return Config{ClientID: "navtel-test", BaseTopic: "telemetry/sensors", QoS: 0}
}

func TestDeclareAndSend(t *testing.T) {
	tr := &fakeTransport{}
	reg := newTestRegistry(t)
	s := newSession(tr, testConfig(), reg, logging.Discard())
	if err := s.start(); err != nil {
		t.Fatalf("start() failed: %v", err)
	}

	if got := tr.find("telemetry/sensors/status"); len(got) != 1 || got[0].payload != StatusOnline || !got[0].retained {
		t.Errorf("session status = %+v", got)
	}

	ep, err := s.DeclarePublisher("telemetry/sensors/imu")
	if err != nil {
		t.Fatalf("DeclarePublisher() failed: %v", err)
	}
	status := tr.find("telemetry/sensors/imu/status")
	if len(status) != 1 || status[0].payload != StatusOnline || status[0].qos != 1 || !status[0].retained {
		t.Errorf("birth message = %+v", status)
	}
	if _, err := reg.GetTopic("telemetry/sensors/imu"); err != nil {
		t.Errorf("topic not recorded: %v", err)
	}

	if err := ep.Send([]byte("timestamp=1 name=MPU9250")); err != nil {
		t.Fatalf("Send() failed: %v", err)
	}
	data := tr.find("telemetry/sensors/imu")
	if len(data) != 1 || data[0].retained || data[0].payload != "timestamp=1 name=MPU9250" {
		t.Errorf("payload = %+v", data)
	}
}

func TestDeclareFailure(t *testing.T) {
	tr := &fakeTransport{failTopics: map[string]bool{"telemetry/sensors/gps/status": true}}
	reg := newTestRegistry(t)
	s := newSession(tr, testConfig(), reg, logging.Discard())

	if _, err := s.DeclarePublisher("telemetry/sensors/gps"); err == nil {
		t.Fatal("expected declaration failure")
	}
	if _, err := reg.GetTopic("telemetry/sensors/gps"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("failed declaration was recorded: %v", err)
	}
	if _, err := s.DeclarePublisher(""); err == nil {
		t.Error("expected error for empty topic")
	}
}

func TestCloseRetractsAnnouncements(t *testing.T) {
	tr := &fakeTransport{}
	reg := newTestRegistry(t)
	s := newSession(tr, testConfig(), reg, logging.Discard())

	ep, err := s.DeclarePublisher("telemetry/sensors/adc")
	if err != nil {
		t.Fatalf("DeclarePublisher() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	status := tr.find("telemetry/sensors/adc/status")
	if len(status) != 2 || status[1].payload != StatusOffline {
		t.Errorf("status sequence = %+v; want online then offline", status)
	}
	if last := tr.find("telemetry/sensors/status"); len(last) != 1 || last[0].payload != StatusOffline {
		t.Errorf("session status = %+v", last)
	}
	if !tr.disconnected {
		t.Error("transport not disconnected")
	}
	topics, _ := reg.Topics()
	if len(topics) != 0 {
		t.Errorf("registry not cleared: %+v", topics)
	}

	if err := ep.Send([]byte("x")); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Send after Close = %v; want ErrSessionClosed", err)
	}
	if _, err := s.DeclarePublisher("telemetry/sensors/adc"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("DeclarePublisher after Close = %v; want ErrSessionClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestStartClearsStaleTopics(t *testing.T) {
	reg := newTestRegistry(t)
	stale := storage.TopicRecord{
		Topic:       "telemetry/sensors/barometer",
		StatusTopic: "telemetry/sensors/barometer/status",
		DeclaredAt:  time.Now().Add(-time.Hour),
	}
	if err := reg.AddTopic(stale); err != nil {
		t.Fatalf("AddTopic() failed: %v", err)
	}

	tr := &fakeTransport{}
	s := newSession(tr, testConfig(), reg, logging.Discard())
	if err := s.start(); err != nil {
		t.Fatalf("start() failed: %v", err)
	}

	got := tr.find("telemetry/sensors/barometer/status")
	if len(got) != 1 || got[0].payload != StatusOffline || !got[0].retained {
		t.Errorf("stale status = %+v", got)
	}
	topics, _ := reg.Topics()
	if len(topics) != 0 {
		t.Errorf("stale topic kept: %+v", topics)
	}
}

func TestLogWriter(t *testing.T) {
	tr := &fakeTransport{}
	s := newSession(tr, testConfig(), nil, logging.Discard())
	w := s.LogWriter("navtelemetry/logs")

	buf := []byte("level=WARNING msg=\"GPS test failed\"\n")
	n, err := w.Write(buf)
	if err != nil || n != len(buf) {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	copy(buf, "XXXXX")

	got := tr.find("navtelemetry/logs")
	if len(got) != 1 || !strings.HasPrefix(got[0].payload, "level=WARNING") {
		t.Errorf("log message = %+v", got)
	}
}
