package publisher

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"navtelemetry/internal/logging"
)

type fakeEndpoint struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
}

func (e *fakeEndpoint) Send(payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sendErr != nil {
		return e.sendErr
	}
	e.sent = append(e.sent, payload)
	return nil
}

func (e *fakeEndpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sent)
}

type fakeSession struct {
	mu        sync.Mutex
	declares  map[string]int
	endpoints map[string]*fakeEndpoint
	failNext  int
	delay     time.Duration
}

func newFakeSession() *fakeSession {
	return &fakeSession{declares: map[string]int{}, endpoints: map[string]*fakeEndpoint{}}
}

func (s *fakeSession) DeclarePublisher(topic string) (Endpoint, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declares[topic]++
	if s.failNext > 0 {
		s.failNext--
		return nil, errors.New("declaration refused")
	}
	ep := &fakeEndpoint{}
	s.endpoints[topic] = ep
	return ep, nil
}

func (s *fakeSession) declareCount(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.declares[topic]
}

type countingObserver struct {
	declared, declareFailed, published, publishFailed atomic.Int64
}

func (o *countingObserver) EndpointDeclared(string) { o.declared.Add(1) }
func (o *countingObserver) DeclareFailed(string)    { o.declareFailed.Add(1) }
func (o *countingObserver) Published(string)        { o.published.Add(1) }
func (o *countingObserver) PublishFailed(string)    { o.publishFailed.Add(1) }

func TestConcurrentFirstPublishDeclaresOnce(t *testing.T) {
	session := newFakeSession()
	session.delay = 5 * time.Millisecond
	cache := New(session, logging.Discard())

	const n = 32
	var wg sync.WaitGroup
	var failures atomic.Int64
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !cache.Publish("telemetry/sensors/imu", []byte("x")) {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("%d publishes failed", failures.Load())
	}
	if got := session.declareCount("telemetry/sensors/imu"); got != 1 {
		t.Errorf("DeclarePublisher called %d times; want 1", got)
	}
	if got := session.endpoints["telemetry/sensors/imu"].count(); got != n {
		t.Errorf("endpoint received %d sends; want %d", got, n)
	}
}

func TestCacheReuse(t *testing.T) {
	session := newFakeSession()
	cache := New(session, logging.Discard())

	for i := 0; i < 10; i++ {
		cache.Publish("telemetry/sensors/adc", []byte("a"))
		cache.Publish("telemetry/sensors/gps", []byte("g"))
	}

	for _, topic := range []string{"telemetry/sensors/adc", "telemetry/sensors/gps"} {
		if got := session.declareCount(topic); got != 1 {
			t.Errorf("%s declared %d times; want 1", topic, got)
		}
	}
	if len(cache.Topics()) != 2 {
		t.Errorf("Topics() = %v", cache.Topics())
	}
}

func TestPublishEmptyTopic(t *testing.T) {
	session := newFakeSession()
	cache := New(session, logging.Discard())

	if cache.Publish("", []byte("x")) {
		t.Error("Publish with empty topic returned true")
	}
	if len(session.declares) != 0 {
		t.Errorf("unexpected declarations: %v", session.declares)
	}
}

func TestPublishNotReady(t *testing.T) {
	cache := New(nil, logging.Discard())
	if cache.Ready() {
		t.Fatal("cache without session reported ready")
	}
	if cache.Publish("telemetry/sensors/imu", []byte("x")) {
		t.Error("Publish without session returned true")
	}
	if len(cache.Topics()) != 0 {
		t.Error("cache was touched while not ready")
	}
}

func TestDeclarationFailureNotCached(t *testing.T) {
	session := newFakeSession()
	session.failNext = 1
	cache := New(session, logging.Discard())
	obs := &countingObserver{}
	cache.SetObserver(obs)

	if cache.Publish("telemetry/sensors/barometer", []byte("b")) {
		t.Fatal("Publish returned true despite declaration failure")
	}
	if !cache.Publish("telemetry/sensors/barometer", []byte("b")) {
		t.Fatal("second Publish did not retry declaration")
	}
	if got := session.declareCount("telemetry/sensors/barometer"); got != 2 {
		t.Errorf("DeclarePublisher called %d times; want 2", got)
	}
	if obs.declareFailed.Load() != 1 || obs.declared.Load() != 1 || obs.published.Load() != 1 || obs.publishFailed.Load() != 1 {
		t.Errorf("observer counts: declared=%d declareFailed=%d published=%d publishFailed=%d",
			obs.declared.Load(), obs.declareFailed.Load(), obs.published.Load(), obs.publishFailed.Load())
	}
}

func TestSendFailure(t *testing.T) {
	session := newFakeSession()
	cache := New(session, logging.Discard())
	cache.Publish("telemetry/sensors/rcinput", []byte("ok"))

	session.endpoints["telemetry/sensors/rcinput"].sendErr = errors.New("broker gone")
	if cache.Publish("telemetry/sensors/rcinput", []byte("x")) {
		t.Error("Publish returned true despite send failure")
	}
	if got := session.declareCount("telemetry/sensors/rcinput"); got != 1 {
		t.Errorf("send failure caused redeclaration: %d declares", got)
	}
}
