package model

import (
	"encoding/json"
	"strconv"
	"time"
)

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly}

// Time is a record timestamp. Older records wrote times as a zoneless
// datetime, a bare date or unix milliseconds (number or string); all of
// them decode. Values that cannot be read decode as the zero time.
type Time struct {
	time.Time
}

// NewTime wraps t.
func NewTime(t time.Time) Time { return Time{Time: t} }

// UnmarshalJSON accepts every layout ParseTime does.
func (t *Time) UnmarshalJSON(data []byte) error {
	parsed, _ := ParseTime(data)
	t.Time = parsed
	return nil
}

// ParseTime reads a JSON timestamp in any accepted form.
func ParseTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var ms int64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}
