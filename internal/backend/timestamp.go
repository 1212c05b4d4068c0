package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

const nanosPerMilli = int64(time.Millisecond)

// DateLayout renders restored timestamps with fixed millisecond precision.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp is the JSON wire form of google.protobuf.Timestamp. Seconds and
// nanos may arrive as numbers or decimal strings.
type Timestamp struct {
	*timestamppb.Timestamp
}

// NewTimestamp wraps t at millisecond precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{ToTimestamp(t)}
}

// Time restores the native value.
func (t Timestamp) Time() time.Time {
	return FromTimestamp(t.Timestamp)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Timestamp == nil {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf(`{"seconds":%d,"nanos":%d}`, t.GetSeconds(), t.GetNanos())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Timestamp = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var node map[string]any
	if err := dec.Decode(&node); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if len(node) == 0 {
		t.Timestamp = &timestamppb.Timestamp{}
		return nil
	}
	ts, ok := asTimestamp(node)
	if !ok {
		return fmt.Errorf("timestamp: unexpected shape %s", data)
	}
	t.Timestamp = ts
	return nil
}

// ToTimestamp converts t to the wire representation at millisecond precision.
func ToTimestamp(t time.Time) *timestamppb.Timestamp {
	ms := int64(t.Nanosecond()) / nanosPerMilli
	return &timestamppb.Timestamp{
		Seconds: t.Unix(),
		Nanos:   int32(ms * nanosPerMilli),
	}
}

// FromTimestamp restores a wire timestamp, dropping sub-millisecond precision.
// A nil timestamp yields the zero time.
func FromTimestamp(ts *timestamppb.Timestamp) time.Time {
	if ts == nil {
		return time.Time{}
	}
	ms := int64(ts.GetNanos()) / nanosPerMilli
	return time.Unix(ts.GetSeconds(), ms*nanosPerMilli).UTC()
}

// RestoreDates walks a decoded JSON document and replaces every
// {seconds, nanos} object with an RFC 3339 timestamp string.
func RestoreDates(v any) any {
	switch node := v.(type) {
	case map[string]any:
		if ts, ok := asTimestamp(node); ok {
			return FromTimestamp(ts).Format(DateLayout)
		}
		for k, child := range node {
			node[k] = RestoreDates(child)
		}
		return node
	case []any:
		for i, child := range node {
			node[i] = RestoreDates(child)
		}
		return node
	default:
		return v
	}
}

func asTimestamp(node map[string]any) (*timestamppb.Timestamp, bool) {
	if len(node) > 2 {
		return nil, false
	}
	rawSeconds, ok := node["seconds"]
	if !ok {
		return nil, false
	}
	if len(node) == 2 {
		if _, ok := node["nanos"]; !ok {
			return nil, false
		}
	}
	seconds, ok := toInt64(rawSeconds)
	if !ok {
		return nil, false
	}
	var nanos int64
	if raw, ok := node["nanos"]; ok {
		if nanos, ok = toInt64(raw); !ok {
			return nil, false
		}
	}
	return &timestamppb.Timestamp{Seconds: seconds, Nanos: int32(nanos)}, true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := json.Number(n).Int64()
		return i, err == nil
	case float64:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
