package messages

import "time"

// DateTime wraps time.Time for OCPP's ISO-8601 JSON representation.
type DateTime struct {
	time.Time
}

func NewDateTime(t time.Time) *DateTime {
	return &DateTime{Time: t}
}
