package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reasons attached to a DayChangedMessage.
const (
	ReasonIngest  = "ingest"
	ReasonReplace = "replace"
	ReasonDelete  = "delete"
)

// DayChangedMessage announces that one owner's calendar day was written.
// It carries only the key; consumers read the current day from the store.
type DayChangedMessage struct {
	OwnerID   string    `json:"owner_id"`
	DayKey    string    `json:"day_key"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDayChangedMessage creates a message stamped with the current time.
func NewDayChangedMessage(ownerID, dayKey, reason string) *DayChangedMessage {
	return &DayChangedMessage{
		OwnerID:   ownerID,
		DayKey:    dayKey,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DayChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DayChangedMessageFromJSON decodes and validates a message.
func DayChangedMessageFromJSON(data []byte) (*DayChangedMessage, error) {
	var msg DayChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" || msg.DayKey == "" {
		return nil, fmt.Errorf("day changed message missing owner or day")
	}
	return &msg, nil
}
