package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// RoutingKeyEntriesChanged is the topic every entry change is published under.
const RoutingKeyEntriesChanged = "entries.changed"

// EntriesChangedMessage tells listeners that a user's entry collection
// changed. It carries no entry data; listeners refetch the full collection.
type EntriesChangedMessage struct {
	UserID    string    `json:"user_id"`
	Origin    string    `json:"origin"` // publishing process
	Timestamp time.Time `json:"timestamp"`
}

var errMissingUser = errors.New("message without user_id")

// NewEntriesChangedMessage creates a message stamped with the current time.
func NewEntriesChangedMessage(userID, origin string) *EntriesChangedMessage {
	return &EntriesChangedMessage{
		UserID:    userID,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntriesChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntriesChangedMessageFromJSON decodes a message and checks it names a user.
func EntriesChangedMessageFromJSON(data []byte) (*EntriesChangedMessage, error) {
	var msg EntriesChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errMissingUser
	}
	return &msg, nil
}
