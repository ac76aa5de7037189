package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// ChangeMessage announces that collections were written. Receivers re-read
// the named collections; the message carries no document data.
type ChangeMessage struct {
	Origin    string    `json:"origin"`
	Paths     []string  `json:"paths"`
	Timestamp time.Time `json:"timestamp"`
}

var ErrEmptyChange = errors.New("change message has no paths")

func NewChangeMessage(origin string, paths []string) *ChangeMessage {
	return &ChangeMessage{
		Origin:    origin,
		Paths:     append([]string(nil), paths...),
		Timestamp: time.Now(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if len(msg.Paths) == 0 {
		return nil, ErrEmptyChange
	}
	return &msg, nil
}
