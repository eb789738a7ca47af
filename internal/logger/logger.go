package logger

import (
	"fmt"
	"log"
	"time"
)

type Importance string

const (
	Info    Importance = " "
	Warning Importance = "?"
	ErrorLv Importance = "!"
	Raw     Importance = "-"
)

// Logger is an asynchronous, channel-fed writer: FeatureEvent/Debug/Warn/
// Error/RawDataEvent never block on I/O, they hand the message to a single
// background goroutine that owns the actual log.Printf call. This keeps a
// slow log sink from stalling the station's single-threaded actor loop.
type Logger struct {
	location  *time.Location
	debugMode bool
	writer    chan *logEvent
}

type logEvent struct {
	importance Importance
	message    *FeatureLogMessage
}

func NewLogger(location *time.Location) *Logger {
	if location == nil {
		location = time.UTC
	}
	l := &Logger{
		location: location,
		writer:   make(chan *logEvent, 100),
	}
	go l.startWriter()
	return l
}

func (l *Logger) SetDebugMode(debugMode bool) {
	l.debugMode = debugMode
}

func (l *Logger) startWriter() {
	for event := range l.writer {
		message := event.message
		prefix := message.ChargePointId
		if prefix == "" {
			prefix = "*"
		}
		log.Printf("%s %s: %s: %s", event.importance, prefix, message.Feature, message.Text)
	}
}

func (l *Logger) FeatureEvent(feature, chargePointId, text string) {
	l.emit(Info, feature, chargePointId, text)
}

func (l *Logger) RawDataEvent(direction, chargePointId, data string) {
	if !l.debugMode {
		return
	}
	l.emit(Raw, direction, chargePointId, data)
}

func (l *Logger) Debug(text string) {
	l.emit(Info, "debug", "", text)
}

func (l *Logger) Warn(text string) {
	l.emit(Warning, "warning", "", text)
}

func (l *Logger) Error(text string, err error) {
	l.emit(ErrorLv, "error", "", fmt.Sprintf("%s: %s", text, err))
}

func (l *Logger) emit(importance Importance, feature, chargePointId, text string) {
	now := time.Now().In(l.location)
	l.writer <- &logEvent{
		importance: importance,
		message: &FeatureLogMessage{
			Time:          now.Format("2006-01-02 15:04:05"),
			TimeStamp:     now.UTC(),
			Feature:       feature,
			ChargePointId: chargePointId,
			Text:          text,
			Importance:    string(importance),
		},
	}
}
