package codec

import (
	"errors"
	"strconv"
	"strings"
)

// ErrEmptyPayload is returned by ParseWire for a blank payload.
var ErrEmptyPayload = errors.New("empty payload")

// Field is one key=value token.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Message is a parsed wire payload. An unavailable payload carries only its
// label.
type Message struct {
	Unavailable bool    `json:"unavailable"`
	Label       string  `json:"label,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
}

// ParseWire splits a payload into its fields, in wire order. Tokens without
// '=' are ignored.
func ParseWire(payload string) (Message, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Message{}, ErrEmptyPayload
	}

	if label, ok := strings.CutSuffix(payload, UnavailableSuffix); ok {
		return Message{Unavailable: true, Label: label}, nil
	}

	var msg Message
	for _, token := range strings.Fields(payload) {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" {
			continue
		}
		msg.Fields = append(msg.Fields, Field{Key: key, Value: value})
	}
	if len(msg.Fields) == 0 {
		return Message{}, errors.New("payload has no key=value fields")
	}
	return msg, nil
}

// Get returns the value of key.
func (m Message) Get(key string) (string, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Float returns the numeric value of key. "nan" parses as NaN.
func (m Message) Float(key string) (float64, bool) {
	v, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Timestamp returns the cycle timestamp, if present.
func (m Message) Timestamp() (int64, bool) {
	v, ok := m.Get("timestamp")
	if !ok {
		return 0, false
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// Map returns the fields as a map, dropping order.
func (m Message) Map() map[string]string {
	out := make(map[string]string, len(m.Fields))
	for _, f := range m.Fields {
		out[f.Key] = f.Value
	}
	return out
}
