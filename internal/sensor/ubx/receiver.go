package ubx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// DefaultDevice is the Navio2 u-blox receiver's SPI node.
const DefaultDevice = "/dev/spidev0.0"

const (
	defaultTimeout = 500 * time.Millisecond
	maxFrames      = 16
)

// deadliner is implemented by *os.File for pollable devices.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Receiver polls a u-blox receiver over a byte stream.
type Receiver struct {
	rw      io.ReadWriter
	dec     *Decoder
	timeout time.Duration
}

// NewReceiver wraps an open stream to the receiver.
func NewReceiver(rw io.ReadWriter) *Receiver {
	return &Receiver{rw: rw, dec: NewDecoder(rw), timeout: defaultTimeout}
}

// OpenDevice opens a device node and wraps it in a Receiver.
func OpenDevice(path string) (*Receiver, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return NewReceiver(f), f, nil
}

// SetTimeout bounds how long a single poll waits for its answer.
func (r *Receiver) SetTimeout(d time.Duration) {
	r.timeout = d
}

// TestConnection polls NAV-STATUS and requires a valid answer.
func (r *Receiver) TestConnection(ctx context.Context) error {
	if _, err := r.Status(ctx); err != nil {
		return fmt.Errorf("receiver did not answer: %w", err)
	}
	return nil
}

// ConfigureRate sets the navigation solution period.
func (r *Receiver) ConfigureRate(periodMs uint16) error {
	if _, err := r.rw.Write(CfgRate(periodMs)); err != nil {
		return fmt.Errorf("failed to write CFG-RATE: %w", err)
	}
	return nil
}

// Position polls NAV-POSLLH.
func (r *Receiver) Position(ctx context.Context) (PosLLH, error) {
	frame, err := r.request(ctx, ClassNAV, IDNavPosLLH)
	if err != nil {
		return PosLLH{}, err
	}
	return ParsePosLLH(frame.Payload)
}

// Status polls NAV-STATUS.
func (r *Receiver) Status(ctx context.Context) (Status, error) {
	frame, err := r.request(ctx, ClassNAV, IDNavStatus)
	if err != nil {
		return Status{}, err
	}
	return ParseStatus(frame.Payload)
}

// request writes a poll and reads frames until the matching answer arrives.
// Unrelated messages and corrupt frames are skipped.
func (r *Receiver) request(ctx context.Context, class, id byte) (Frame, error) {
	if _, err := r.rw.Write(Poll(class, id)); err != nil {
		return Frame{}, fmt.Errorf("failed to write poll: %w", err)
	}

	deadline := time.Now().Add(r.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if dl, ok := r.rw.(deadliner); ok {
		if err := dl.SetReadDeadline(deadline); err == nil {
			defer dl.SetReadDeadline(time.Time{})
		}
	}

	for i := 0; i < maxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if time.Now().After(deadline) {
			return Frame{}, os.ErrDeadlineExceeded
		}

		frame, err := r.dec.Next()
		if errors.Is(err, ErrChecksum) {
			continue
		}
		if err != nil {
			return Frame{}, err
		}
		if frame.Is(class, id) {
			return frame, nil
		}
	}
	return Frame{}, fmt.Errorf("%w: 0x%02x 0x%02x not answered", ErrNoFrame, class, id)
}
