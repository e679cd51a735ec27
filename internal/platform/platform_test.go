package platform

import (
	"context"
	"errors"
	"testing"
)

func lister(names ...string) ProcessLister {
	return func(ctx context.Context) ([]ProcessInfo, error) {
		infos := make([]ProcessInfo, len(names))
		for i, n := range names {
			infos[i] = ProcessInfo{PID: int32(100 + i), Name: n}
		}
		return infos, nil
	}
}

func TestCheckAutopilot(t *testing.T) {
	tests := []struct {
		name    string
		procs   []string
		running bool
	}{
		{"clean host", []string{"systemd", "sshd", "mosquitto", "navtelemetry"}, false},
		{"arducopter", []string{"systemd", "arducopter"}, true},
		{"versioned arduplane", []string{"ArduPlane-4.5"}, true},
		{"apm exact", []string{"apm"}, true},
		{"apm substring is not enough", []string{"rapmd", "apmonitor"}, false},
		{"apm service name", []string{"apm-navio2"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAutopilot(context.Background(), lister(tt.procs...))
			if got := errors.Is(err, ErrAutopilotRunning); got != tt.running {
				t.Errorf("CheckAutopilot(%v) = %v; running=%v", tt.procs, err, tt.running)
			}
		})
	}
}

func TestCheckAutopilotListError(t *testing.T) {
	failing := func(ctx context.Context) ([]ProcessInfo, error) {
		return nil, errors.New("permission denied")
	}
	err := CheckAutopilot(context.Background(), failing)
	if err == nil || errors.Is(err, ErrAutopilotRunning) {
		t.Errorf("expected listing error, got %v", err)
	}
}
