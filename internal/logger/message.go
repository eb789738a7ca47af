package logger

import "time"

// FeatureLogMessage is one emitted log line. It exists as its own type,
// rather than a formatted string, so a future sink (file, message bus)
// can consume structured fields instead of parsing text.
type FeatureLogMessage struct {
	Time          string    `json:"time"`
	TimeStamp     time.Time `json:"timestamp"`
	Feature       string    `json:"feature"`
	ChargePointId string    `json:"id"`
	Text          string    `json:"text"`
	Importance    string    `json:"importance"`
}
