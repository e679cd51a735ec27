package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) (*BoltRegistry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	reg, err := NewBoltRegistry(path)
	if err != nil {
		t.Fatalf("NewBoltRegistry() failed: %v", err)
	}
	return reg, path
}

func TestRegistryRoundTrip(t *testing.T) {
	reg, _ := newTestRegistry(t)
	defer reg.Close()

	declared := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	records := []TopicRecord{
		{Topic: "telemetry/sensors/imu", StatusTopic: "telemetry/sensors/imu/status", ClientID: "navtel", DeclaredAt: declared},
		{Topic: "telemetry/sensors/adc", StatusTopic: "telemetry/sensors/adc/status", ClientID: "navtel", DeclaredAt: declared},
	}
	for _, rec := range records {
		if err := reg.AddTopic(rec); err != nil {
			t.Fatalf("AddTopic(%s) failed: %v", rec.Topic, err)
		}
	}

	got, err := reg.GetTopic("telemetry/sensors/imu")
	if err != nil {
		t.Fatalf("GetTopic() failed: %v", err)
	}
	if got.StatusTopic != "telemetry/sensors/imu/status" || !got.DeclaredAt.Equal(declared) {
		t.Errorf("unexpected record %+v", got)
	}

	all, err := reg.Topics()
	if err != nil {
		t.Fatalf("Topics() failed: %v", err)
	}
	if len(all) != 2 || all[0].Topic != "telemetry/sensors/adc" {
		t.Errorf("Topics() = %+v; want adc then imu", all)
	}

	if err := reg.RemoveTopic("telemetry/sensors/imu"); err != nil {
		t.Fatalf("RemoveTopic() failed: %v", err)
	}
	if _, err := reg.GetTopic("telemetry/sensors/imu"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := reg.RemoveTopic("never/declared"); err != nil {
		t.Errorf("RemoveTopic(unknown) = %v; want nil", err)
	}
	if err := reg.AddTopic(TopicRecord{}); err == nil {
		t.Error("expected error for empty topic")
	}
}

func TestRegistrySurvivesReopen(t *testing.T) {
	reg, path := newTestRegistry(t)
	if err := reg.AddTopic(TopicRecord{Topic: "telemetry/sensors/gps"}); err != nil {
		t.Fatalf("AddTopic() failed: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened, err := NewBoltRegistry(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	all, err := reopened.Topics()
	if err != nil {
		t.Fatalf("Topics() failed: %v", err)
	}
	if len(all) != 1 || all[0].Topic != "telemetry/sensors/gps" {
		t.Errorf("Topics() after reopen = %+v", all)
	}
}
