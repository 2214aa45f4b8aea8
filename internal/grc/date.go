package grc

import (
	"bytes"
	"encoding/json"
	"time"
)

// Date is a request timestamp. Clients send either RFC 3339 or a bare calendar day
// (the format HTML date inputs produce); both decode to a UTC instant.
type Date struct {
	time.Time
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return Validation("invalid date %s", string(b))
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return Validation("invalid date %q", s)
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.Time) }

// Ptr converts an optional request date to the optional column value.
func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
