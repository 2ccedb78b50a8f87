package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"costmanager/internal/core"

	"github.com/google/uuid"
)

// RequestLogMessage carries one request-log entry from an HTTP service to
// the log worker. ID doubles as the stored entry id, so a redelivered
// message is stored once.
type RequestLogMessage struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRequestLogMessage wraps e, assigning an id and timestamp if missing.
func NewRequestLogMessage(e core.LogEntry) *RequestLogMessage {
	msg := &RequestLogMessage{
		ID:        e.ID,
		Level:     e.Level,
		Message:   e.Message,
		Timestamp: e.Timestamp,
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return msg
}

func (m *RequestLogMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Entry converts the message back into a log entry.
func (m *RequestLogMessage) Entry() core.LogEntry {
	return core.LogEntry{
		ID:        m.ID,
		Level:     m.Level,
		Message:   m.Message,
		Timestamp: m.Timestamp,
	}
}

func RequestLogMessageFromJSON(data []byte) (*RequestLogMessage, error) {
	var msg RequestLogMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Message == "" {
		return nil, fmt.Errorf("request log message has no text")
	}
	return &msg, nil
}
