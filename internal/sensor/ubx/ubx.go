// Package ubx implements the u-blox UBX binary protocol framing and the
// handful of navigation messages the GPS port consumes.
package ubx

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame sync characters.
const (
	Sync1 byte = 0xB5
	Sync2 byte = 0x62
)

// Message classes and ids.
const (
	ClassNAV byte = 0x01
	ClassCFG byte = 0x06

	IDNavPosLLH byte = 0x02
	IDNavStatus byte = 0x03
	IDCfgRate   byte = 0x08
)

// idleFill is what an SPI receiver clocks out when it has nothing to send.
const idleFill byte = 0xFF

const (
	defaultMaxScan = 1024
	maxPayload     = 1024
)

var (
	ErrNoFrame       = errors.New("ubx: no frame found")
	ErrChecksum      = errors.New("ubx: checksum mismatch")
	ErrFrameTooLarge = errors.New("ubx: frame too large")
	ErrShortPayload  = errors.New("ubx: payload too short")
)

// Frame is one decoded UBX message.
type Frame struct {
	Class   byte
	ID      byte
	Payload []byte
}

// Is reports whether the frame carries the given message.
func (f Frame) Is(class, id byte) bool {
	return f.Class == class && f.ID == id
}

// Checksum computes the 8-bit Fletcher checksum over class, id, length and payload.
func Checksum(data []byte) (byte, byte) {
	var a, b byte
	for _, c := range data {
		a += c
		b += a
	}
	return a, b
}

// Encode builds a complete frame including sync characters and checksum.
func Encode(class, id byte, payload []byte) []byte {
	buf := make([]byte, 0, 8+len(payload))
	buf = append(buf, Sync1, Sync2, class, id)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	a, b := Checksum(buf[2:])
	return append(buf, a, b)
}

// Poll builds an empty-payload request for a message.
func Poll(class, id byte) []byte {
	return Encode(class, id, nil)
}

// CfgRate builds a CFG-RATE frame setting the measurement period in
// milliseconds, one navigation solution per measurement, aligned to GPS time.
func CfgRate(periodMs uint16) []byte {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload[0:], periodMs)
	binary.LittleEndian.PutUint16(payload[2:], 1)
	binary.LittleEndian.PutUint16(payload[4:], 1)
	return Encode(ClassCFG, IDCfgRate, payload)
}

// Decoder extracts frames from a byte stream.
type Decoder struct {
	r       *bufio.Reader
	maxScan int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r), maxScan: defaultMaxScan}
}

// Next returns the next frame. Idle fill and noise before the sync
// characters are skipped, up to a bounded number of bytes; ErrNoFrame is
// returned when the bound is exceeded.
func (d *Decoder) Next() (Frame, error) {
	scanned := 0
	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return Frame{}, err
		}
		if c == Sync1 {
			next, err := d.r.ReadByte()
			if err != nil {
				return Frame{}, err
			}
			if next == Sync2 {
				break
			}
			if err := d.r.UnreadByte(); err != nil {
				return Frame{}, err
			}
		}
		scanned++
		if scanned > d.maxScan {
			return Frame{}, ErrNoFrame
		}
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(d.r, header); err != nil {
		return Frame{}, fmt.Errorf("ubx: read header: %w", err)
	}
	length := int(binary.LittleEndian.Uint16(header[2:]))
	if length > maxPayload {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	body := make([]byte, length+2)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return Frame{}, fmt.Errorf("ubx: read payload: %w", err)
	}

	a, b := Checksum(append(header, body[:length]...))
	if a != body[length] || b != body[length+1] {
		return Frame{}, ErrChecksum
	}

	return Frame{Class: header[0], ID: header[1], Payload: body[:length]}, nil
}

// PosLLH is the NAV-POSLLH geodetic position solution.
type PosLLH struct {
	ITOW   uint32 // ms
	Lon    int32  // 1e-7 deg
	Lat    int32  // 1e-7 deg
	Height int32  // mm above ellipsoid
	HMSL   int32  // mm above mean sea level
	HAcc   uint32 // mm
	VAcc   uint32 // mm
}

// ParsePosLLH decodes a NAV-POSLLH payload.
func ParsePosLLH(payload []byte) (PosLLH, error) {
	if len(payload) < 28 {
		return PosLLH{}, fmt.Errorf("%w: NAV-POSLLH has %d bytes", ErrShortPayload, len(payload))
	}
	le := binary.LittleEndian
	return PosLLH{
		ITOW:   le.Uint32(payload[0:]),
		Lon:    int32(le.Uint32(payload[4:])),
		Lat:    int32(le.Uint32(payload[8:])),
		Height: int32(le.Uint32(payload[12:])),
		HMSL:   int32(le.Uint32(payload[16:])),
		HAcc:   le.Uint32(payload[20:]),
		VAcc:   le.Uint32(payload[24:]),
	}, nil
}

// Status is the NAV-STATUS receiver navigation status.
type Status struct {
	ITOW   uint32
	GPSFix uint8
	Flags  uint8
}

// FixOK reports whether the fix is within the receiver's accuracy limits.
func (s Status) FixOK() bool {
	return s.Flags&0x01 != 0
}

// ParseStatus decodes a NAV-STATUS payload.
func ParseStatus(payload []byte) (Status, error) {
	if len(payload) < 16 {
		return Status{}, fmt.Errorf("%w: NAV-STATUS has %d bytes", ErrShortPayload, len(payload))
	}
	return Status{
		ITOW:   binary.LittleEndian.Uint32(payload[0:]),
		GPSFix: payload[4],
		Flags:  payload[5],
	}, nil
}
