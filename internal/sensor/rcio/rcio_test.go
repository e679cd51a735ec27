package rcio

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func makeBank(t *testing.T, root, name string, values []string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for i, v := range values {
		if v == "" {
			continue
		}
		path := filepath.Join(dir, "ch"+strconv.Itoa(i))
		if err := os.WriteFile(path, []byte(v+"\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func TestOpenMissingBank(t *testing.T) {
	root := t.TempDir()
	if _, err := OpenADC(root); err == nil {
		t.Error("expected error for missing adc directory")
	}
}

func TestOpenUninitialized(t *testing.T) {
	root := t.TempDir()
	makeBank(t, root, "rcin", []string{"1500"})
	if err := os.WriteFile(filepath.Join(root, "initialized"), []byte("0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := OpenRCInput(root); err == nil {
		t.Error("expected error while co-processor is not initialized")
	}
}

func TestBankRead(t *testing.T) {
	root := t.TempDir()
	makeBank(t, root, "adc", []string{"5012", "3300", "-1", "", "abc"})
	if err := os.WriteFile(filepath.Join(root, "initialized"), []byte("1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	bank, err := OpenADC(root)
	if err != nil {
		t.Fatalf("OpenADC() failed: %v", err)
	}
	if bank.ChannelCount() != ADCChannels {
		t.Errorf("ChannelCount() = %d; want %d", bank.ChannelCount(), ADCChannels)
	}

	tests := []struct {
		ch      int
		want    int
		wantErr bool
	}{
		{0, 5012, false},
		{1, 3300, false},
		{2, 0, true}, // co-processor failure marker
		{3, 0, true}, // missing attribute
		{4, 0, true}, // unparsable
		{6, 0, true}, // out of range
	}
	for _, tt := range tests {
		got, err := bank.Read(tt.ch)
		if (err != nil) != tt.wantErr {
			t.Errorf("Read(%d) error = %v, wantErr %v", tt.ch, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Read(%d) = %d; want %d", tt.ch, got, tt.want)
		}
	}
}
